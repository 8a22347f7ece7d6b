package storage

import (
	"encoding/json"
	"io"

	"mpcdrive/internal/metrics"
	"mpcdrive/internal/sim"
)

type ExportData struct {
	Track       string             `json:"track"`
	TargetSpeed float64            `json:"target_speed"`
	Latency     float64            `json:"latency"`
	Cycles      int                `json:"cycles"`
	Failures    int                `json:"failures"`
	Samples     []metrics.Sample   `json:"samples"`
	Metrics     map[string]float64 `json:"metrics"`
}

// ExportJSON writes a full run as one indented JSON document.
func ExportJSON(w io.Writer, track string, targetSpeed, latency float64, result *sim.Result) error {
	data := ExportData{
		Track:       track,
		TargetSpeed: targetSpeed,
		Latency:     latency,
		Cycles:      result.Cycles,
		Failures:    result.Failures,
		Samples:     result.Samples,
		Metrics:     result.Metrics,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
