package gamedto

// Error codes surfaced to clients. LockBusy is deliberately distinct from
// DuplicateLogin: busy means "nothing happened, try again", duplicate
// means "denied".
const (
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeNotAuthenticated  = "NOT_AUTHENTICATED"
	CodeDuplicateLogin    = "DUPLICATE_LOGIN"
	CodeLockBusy          = "LOCK_BUSY"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeBalanceOverflow   = "BALANCE_OVERFLOW"
	CodeSelfGift          = "SELF_GIFT"
	CodeUnknownAccount    = "UNKNOWN_ACCOUNT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL"
)

// DomainError is a coded boundary error. Every Error frame sent to a
// client is built from one via ErrorFrame, so code and message stay
// paired in one place.
type DomainError struct {
	Code    string
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "session service error"
}

// ErrorFrame wraps the error as an Error envelope echoing correlationID
// both at the envelope level and inside the payload.
func (e DomainError) ErrorFrame(correlationID string) Envelope {
	env, err := NewEnvelope(TypeError, correlationID, ErrorPayload{
		Code:          e.Code,
		Message:       e.Error(),
		CorrelationID: correlationID,
	})
	if err != nil {
		// ErrorPayload cannot fail to marshal; keep a bare frame anyway.
		return Envelope{Type: TypeError, CorrelationID: correlationID}
	}
	return env
}
