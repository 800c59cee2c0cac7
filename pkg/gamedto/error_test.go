package gamedto

import (
	"encoding/json"
	"testing"
)

func TestDomainErrorMessageFallback(t *testing.T) {
	if got := (DomainError{Code: CodeLockBusy, Message: "login busy"}).Error(); got != "login busy" {
		t.Fatalf("Error() = %q", got)
	}
	if got := (DomainError{Code: CodeLockBusy}).Error(); got != CodeLockBusy {
		t.Fatalf("Error() = %q", got)
	}
	if got := (DomainError{}).Error(); got == "" {
		t.Fatal("empty error must still carry a message")
	}
}

func TestDomainErrorFrame(t *testing.T) {
	env := DomainError{Code: CodeRateLimited, Message: "too many requests"}.ErrorFrame("corr-7")
	if env.Type != TypeError || env.CorrelationID != "corr-7" {
		t.Fatalf("frame header: type=%s corr=%q", env.Type, env.CorrelationID)
	}
	var ep ErrorPayload
	if err := json.Unmarshal(env.Payload, &ep); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ep.Code != CodeRateLimited || ep.Message != "too many requests" || ep.CorrelationID != "corr-7" {
		t.Fatalf("payload: %+v", ep)
	}
}
