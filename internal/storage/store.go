// Package storage archives closed-loop runs on disk, one directory per
// run with a metadata file and the per-cycle samples as CSV.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mpcdrive/internal/metrics"
	"mpcdrive/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Track       string             `json:"track"`
	Timestamp   time.Time          `json:"timestamp"`
	Cycles      int                `json:"cycles"`
	Failures    int                `json:"failures"`
	TargetSpeed float64            `json:"target_speed"`
	Latency     float64            `json:"latency"`
	Metrics     map[string]float64 `json:"metrics"`
}

var sampleHeader = []string{"time", "x", "y", "psi", "speed", "cte", "steer", "throttle", "fallback"}

func (s *Store) Save(track string, targetSpeed, latency float64, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", track, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Track:       track,
		Timestamp:   time.Now(),
		Cycles:      result.Cycles,
		Failures:    result.Failures,
		TargetSpeed: targetSpeed,
		Latency:     latency,
		Metrics:     result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(sampleHeader); err != nil {
		return "", err
	}
	for _, sm := range result.Samples {
		fallback := "0"
		if sm.Fallback {
			fallback = "1"
		}
		row := []string{
			strconv.FormatFloat(sm.T, 'f', 6, 64),
			strconv.FormatFloat(sm.X, 'f', 6, 64),
			strconv.FormatFloat(sm.Y, 'f', 6, 64),
			strconv.FormatFloat(sm.Psi, 'f', 6, 64),
			strconv.FormatFloat(sm.Speed, 'f', 6, 64),
			strconv.FormatFloat(sm.CrossTrack, 'f', 6, 64),
			strconv.FormatFloat(sm.Steer, 'f', 6, 64),
			strconv.FormatFloat(sm.Throttle, 'f', 6, 64),
			fallback,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]metrics.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.Sample{}, nil
	}

	samples := make([]metrics.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(sampleHeader) {
			continue
		}
		vals := make([]float64, len(sampleHeader)-1)
		ok := true
		for i := range vals {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		samples = append(samples, metrics.Sample{
			T:          vals[0],
			X:          vals[1],
			Y:          vals[2],
			Psi:        vals[3],
			Speed:      vals[4],
			CrossTrack: vals[5],
			Steer:      vals[6],
			Throttle:   vals[7],
			Fallback:   record[8] == "1",
		})
	}

	return samples, nil
}
