// Package telemetry defines the wire records exchanged with the driving
// simulator and the "42"-prefixed event framing its websocket speaks.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Telemetry is one measurement sample from the simulator. Waypoints are
// world-frame and paired by index; steering is in radians, wire sign
// convention.
type Telemetry struct {
	PtsX          []float64 `json:"ptsx"`
	PtsY          []float64 `json:"ptsy"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Psi           float64   `json:"psi"`
	Speed         float64   `json:"speed"`
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
}

// Command is the actuation reply. SteeringAngle is normalized to [-1, 1];
// the polylines are local-frame display data for the simulator overlay.
type Command struct {
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
	NextX         []float64 `json:"next_x"`
	NextY         []float64 `json:"next_y"`
	MpcX          []float64 `json:"mpc_x"`
	MpcY          []float64 `json:"mpc_y"`
}

// ErrNotEvent marks frames that are not "42"-prefixed event messages.
var ErrNotEvent = errors.New("telemetry: not an event frame")

const prefix = "42"

// Decode extracts the event name and JSON payload from a raw websocket
// frame. A frame that carries no payload (the simulator sends a bare
// null between telemetry bursts) returns an empty event and no error;
// callers answer those with Manual().
func Decode(msg []byte) (event string, payload json.RawMessage, err error) {
	if len(msg) < 2 || string(msg[:2]) != prefix {
		return "", nil, ErrNotEvent
	}
	body := msg[2:]
	if bytes.Contains(body, []byte("null")) {
		return "", nil, nil
	}
	open := bytes.IndexByte(body, '[')
	end := bytes.LastIndex(body, []byte("}]"))
	if open < 0 || end < 0 || end < open {
		return "", nil, nil
	}
	var frame []json.RawMessage
	if err := json.Unmarshal(body[open:end+2], &frame); err != nil {
		return "", nil, fmt.Errorf("telemetry: malformed event frame: %w", err)
	}
	if len(frame) != 2 {
		return "", nil, fmt.Errorf("telemetry: event frame has %d elements, want 2", len(frame))
	}
	if err := json.Unmarshal(frame[0], &event); err != nil {
		return "", nil, fmt.Errorf("telemetry: event name: %w", err)
	}
	return event, frame[1], nil
}

// Encode wraps an event payload in the simulator framing.
func Encode(event string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	name, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(prefix)
	buf.WriteByte('[')
	buf.Write(name)
	buf.WriteByte(',')
	buf.Write(payload)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Manual is the reply that hands control back to the human driver.
func Manual() []byte {
	return []byte(`42["manual",{}]`)
}
