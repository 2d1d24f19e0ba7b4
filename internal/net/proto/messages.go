package proto

import (
	"encoding/json"
	"fmt"
)

// Version tracks the revision of the JSON control messages.
const Version = 1

// Client message type identifiers.
const (
	TypePosition  = "position"
	TypeHeartbeat = "heartbeat"
)

// Server message type identifiers.
const (
	TypeWelcome = "welcome"
)

// ClientMessage is the envelope of every text frame a client sends.
type ClientMessage struct {
	Ver    int     `json:"ver,omitempty"`
	Type   string  `json:"type"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Z      float32 `json:"z"`
	SentAt int64   `json:"sentAt,omitempty"`
}

// DecodeClientMessage parses a client text frame.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("decode client message: missing type")
	}
	return msg, nil
}

// Welcome tells a freshly connected client which avatar it controls.
type Welcome struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	AvatarID uint64 `json:"avatarId"`
	Tick     uint64 `json:"tick"`
}

// EncodeWelcome renders a welcome message.
func EncodeWelcome(clientID string, avatarID, tick uint64) ([]byte, error) {
	return json.Marshal(Welcome{Ver: Version, Type: TypeWelcome, ClientID: clientID, AvatarID: avatarID, Tick: tick})
}

// Heartbeat echoes a client heartbeat with the server clock.
type Heartbeat struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// EncodeHeartbeat renders a heartbeat acknowledgement.
func EncodeHeartbeat(serverTime, clientTime int64) ([]byte, error) {
	rtt := serverTime - clientTime
	if clientTime == 0 || rtt < 0 {
		rtt = 0
	}
	return json.Marshal(Heartbeat{Ver: Version, Type: TypeHeartbeat, ServerTime: serverTime, ClientTime: clientTime, RTTMillis: rtt})
}
