// ABOUTME: Monitor feed message type definitions
// ABOUTME: JSON envelope plus the hello and stats payloads sent over /ws
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

// Message types
const (
	TypeSessionHello = "session/hello"
	TypeSessionStats = "session/stats"
)

// Message is the top-level wrapper for all feed messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionHello is sent once when a monitor client connects
type SessionHello struct {
	ServerID   string `json:"server_id"`
	Product    string `json:"product"`
	Version    string `json:"version"`
	SessionID  string `json:"session_id"`
	Stream     string `json:"stream"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Local      string `json:"local"`
	Remote     string `json:"remote"`
	IntervalMS int    `json:"interval_ms"`
}

// SessionStats is sent on every monitor tick
type SessionStats struct {
	// Timestamp is unix milliseconds at the server
	Timestamp int64 `json:"timestamp"`
	bridge.Stats
}

// Encode wraps payload in an envelope of the given type
func Encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}

// Decode parses an envelope and unmarshals its payload into a typed value
func Decode(data []byte) (interface{}, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Type {
	case TypeSessionHello:
		var hello SessionHello
		if err := json.Unmarshal(msg.Payload, &hello); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", msg.Type, err)
		}
		return hello, nil
	case TypeSessionStats:
		var stats SessionStats
		if err := json.Unmarshal(msg.Payload, &stats); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", msg.Type, err)
		}
		return stats, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
