package sim

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of a simulator websocket message.
type MessageType string

const (
	// Core → Simulator requests
	TypeListTargets MessageType = "list_targets"
	TypeMove        MessageType = "move" // move the arm target to a position
	TypeShowMarker  MessageType = "show_marker"
	TypeHideMarker  MessageType = "hide_marker"

	// Simulator → Core responses
	TypeTargets MessageType = "targets"
	TypeAck     MessageType = "ack"

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for all simulator messages. ID correlates a
// request with its response.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates an envelope with the current timestamp.
func NewMessage(msgType MessageType, id string, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// ParseMessage parses an envelope from the wire.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

// MoveData asks the simulator to drive the arm's IK target to a position.
type MoveData struct {
	Position Vec3 `json:"position"`
}

// MarkerData asks the simulator to render the calibration marker over a
// target's screen position.
type MarkerData struct {
	TargetID int    `json:"target_id"`
	Name     string `json:"name"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// TargetsData is the registry response.
type TargetsData struct {
	Targets []Target `json:"targets"`
}

// AckData reports the outcome of a request.
type AckData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
