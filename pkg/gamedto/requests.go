package gamedto

import "strings"

// ResourceType names a player-held resource kind.
type ResourceType string

const (
	ResourceCoins ResourceType = "coins"
	ResourceRolls ResourceType = "rolls"
)

// ParseResourceType validates a caller-supplied resource name.
func ParseResourceType(s string) (ResourceType, bool) {
	switch ResourceType(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceCoins:
		return ResourceCoins, true
	case ResourceRolls:
		return ResourceRolls, true
	default:
		return "", false
	}
}

type LoginRequest struct {
	DeviceID string `json:"deviceId"`
}

type LoginResponse struct {
	PlayerID string `json:"playerId"`
	Success  bool   `json:"success"`
}

type UpdateResourcesRequest struct {
	ResourceType  string `json:"resourceType"`
	ResourceValue int64  `json:"resourceValue"`
}

type UpdateResourcesResponse struct {
	Success      bool   `json:"success"`
	ResourceType string `json:"resourceType"`
	NewBalance   int64  `json:"newBalance"`
	Reason       string `json:"reason,omitempty"`
}

type SendGiftRequest struct {
	FriendPlayerID string `json:"friendPlayerId"`
	ResourceType   string `json:"resourceType"`
	ResourceValue  int64  `json:"resourceValue"`
}

type SendGiftResponse struct {
	Success          bool   `json:"success"`
	SenderNewBalance int64  `json:"senderNewBalance"`
	Reason           string `json:"reason,omitempty"`
}

// GiftEvent is the unsolicited push sent to a gift recipient. NewBalance
// is captured under the recipient's balance lock at transfer time, but a
// later transfer may still land before this frame does; treat it as
// advisory.
type GiftEvent struct {
	FromPlayerID  string `json:"fromPlayerId"`
	ResourceType  string `json:"resourceType"`
	ResourceValue int64  `json:"resourceValue"`
	NewBalance    int64  `json:"newBalance"`
}

type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}
