package liveserver

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Message types pushed to clients
const (
	TypeRecommendation = "recommendation"
	TypeProfiles       = "profiles"
	TypePrice          = "price"
)

// NewMessage creates a Message
func NewMessage(msgType string, data interface{}) Message {
	return Message{
		Type: msgType,
		Data: data,
	}
}
