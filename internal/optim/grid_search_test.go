package optim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch(
		[]string{"a", "b"},
		[][]float64{{-1, 0, 1, 2}, {0, 3, 6}},
	)
	// Minimum at a=1, b=3.
	params, score, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		return math.Pow(p["a"]-1, 2) + math.Pow(p["b"]-3, 2), nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if params["a"] != 1 || params["b"] != 3 {
		t.Errorf("best params = %v", params)
	}
	if score != 0 {
		t.Errorf("best score = %v, want 0", score)
	}
}

func TestGridSearchSkipsFailedCandidates(t *testing.T) {
	g := NewGridSearch([]string{"a"}, [][]float64{{1, 2, 3}})
	params, score, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["a"] == 1 {
			return 0, errors.New("diverged")
		}
		return p["a"], nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if params["a"] != 2 || score != 2 {
		t.Errorf("best = %v score %v, want a=2 score 2", params, score)
	}
}

func TestGridSearchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch([]string{"a"}, [][]float64{{1, 2}})
	_, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		t.Fatal("evaluate called after cancellation")
		return 0, nil
	})
	if err == nil {
		t.Fatal("cancelled search returned no error")
	}
}
