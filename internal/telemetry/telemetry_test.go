package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

const sampleFrame = `42["telemetry",{"ptsx":[-32.16,-43.49],"ptsy":[113.36,105.94],` +
	`"psi":3.73,"psi_unity":4.12,"x":-40.62,"y":108.73,"speed":10.5,` +
	`"steering_angle":0.05,"throttle":0.3}]`

func TestDecodeTelemetry(t *testing.T) {
	event, payload, err := Decode([]byte(sampleFrame))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event != "telemetry" {
		t.Fatalf("event = %q, want telemetry", event)
	}
	var tm Telemetry
	if err := json.Unmarshal(payload, &tm); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(tm.PtsX) != 2 || len(tm.PtsY) != 2 {
		t.Fatalf("waypoints = %d/%d, want 2/2", len(tm.PtsX), len(tm.PtsY))
	}
	if math.Abs(tm.X - -40.62) > 1e-12 || math.Abs(tm.Psi-3.73) > 1e-12 {
		t.Errorf("state = (%v, psi=%v)", tm.X, tm.Psi)
	}
	if math.Abs(tm.SteeringAngle-0.05) > 1e-12 {
		t.Errorf("steering = %v, want 0.05", tm.SteeringAngle)
	}
}

func TestDecodeIdleFrame(t *testing.T) {
	event, payload, err := Decode([]byte("42null"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event != "" || payload != nil {
		t.Fatalf("idle frame decoded as event %q", event)
	}
}

func TestDecodeNonEvent(t *testing.T) {
	if _, _, err := Decode([]byte("3probe")); !errors.Is(err, ErrNotEvent) {
		t.Fatalf("err = %v, want ErrNotEvent", err)
	}
	if _, _, err := Decode([]byte("4")); !errors.Is(err, ErrNotEvent) {
		t.Fatalf("short frame: err = %v, want ErrNotEvent", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, _, err := Decode([]byte(`42["telemetry",{"x":}]`)); err == nil {
		t.Fatal("malformed payload accepted")
	}
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	cmd := Command{
		SteeringAngle: -0.12,
		Throttle:      0.8,
		NextX:         []float64{5, 10, 15},
		NextY:         []float64{0.1, 0.3, 0.8},
		MpcX:          []float64{1, 2},
		MpcY:          []float64{0, 0.05},
	}
	raw, err := Encode("steer", cmd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(raw), `42["steer",`) {
		t.Fatalf("frame = %s", raw)
	}
	event, payload, err := Decode(raw)
	if err != nil || event != "steer" {
		t.Fatalf("decode back: event=%q err=%v", event, err)
	}
	var got Command
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.SteeringAngle != cmd.SteeringAngle || len(got.NextX) != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestManual(t *testing.T) {
	event, payload, err := Decode(Manual())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event != "manual" || string(payload) != "{}" {
		t.Fatalf("manual frame = %q %s", event, payload)
	}
}
