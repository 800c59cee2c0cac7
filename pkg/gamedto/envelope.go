package gamedto

import "encoding/json"

// MessageType enumerates every frame kind the gateway speaks. The set is
// closed: the dispatcher switches over all of them and anything else is a
// protocol error.
type MessageType string

const (
	TypeLogin                   MessageType = "Login"
	TypeLoginResponse           MessageType = "LoginResponse"
	TypeUpdateResources         MessageType = "UpdateResources"
	TypeUpdateResourcesResponse MessageType = "UpdateResourcesResponse"
	TypeSendGift                MessageType = "SendGift"
	TypeSendGiftResponse        MessageType = "SendGiftResponse"
	TypeGiftEvent               MessageType = "GiftEvent"
	TypeError                   MessageType = "Error"
)

// Envelope is the single frame shape on the wire. Responses echo the
// request's CorrelationID unchanged; server pushes carry none.
type Envelope struct {
	Type          MessageType     `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// NewEnvelope marshals payload and wraps it. Marshal failures here mean a
// programming error in a payload struct, so they surface as an error
// rather than a panic.
func NewEnvelope(t MessageType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Payload: raw, CorrelationID: correlationID}, nil
}
