package sim

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"mpcdrive/internal/config"
	"mpcdrive/internal/metrics"
)

// Sweep runs the same configuration over several tracks concurrently,
// one independent runner per track.
type Sweep struct {
	cfg    *config.Config
	tracks map[string]Track
	log    zerolog.Logger
}

func NewSweep(cfg *config.Config, tracks map[string]Track, log zerolog.Logger) *Sweep {
	return &Sweep{cfg: cfg, tracks: tracks, log: log}
}

// Run returns per-track results keyed by track name. The first error
// encountered is returned; completed results are kept either way.
func (s *Sweep) Run(ctx context.Context, cycles int) (map[string]*Result, error) {
	results := make(map[string]*Result, len(s.tracks))
	errs := make(map[string]error, len(s.tracks))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, track := range s.tracks {
		wg.Add(1)
		go func(name string, track Track) {
			defer wg.Done()
			r := NewRunner(s.cfg, track, s.log.With().Str("track", name).Logger())
			for _, m := range metrics.Standard(s.cfg.TargetSpeed) {
				r.AddMetric(m)
			}
			res, err := r.Run(ctx, cycles)
			mu.Lock()
			results[name] = res
			errs[name] = err
			mu.Unlock()
		}(name, track)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
