package sim

import (
	"math"
	"testing"
)

func TestStraightTrackSpacing(t *testing.T) {
	tr := Straight(100, 5)
	if tr.Len() != 21 {
		t.Fatalf("len = %d, want 21", tr.Len())
	}
	for i := 1; i < tr.Len(); i++ {
		d := math.Hypot(tr.Xs[i]-tr.Xs[i-1], tr.Ys[i]-tr.Ys[i-1])
		if math.Abs(d-5) > 1e-9 {
			t.Fatalf("spacing at %d = %v, want 5", i, d)
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"straight", "wave", "loop"} {
		tr, err := ByName(name)
		if err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
		if tr.Len() < 2 {
			t.Errorf("track %q has %d points", name, tr.Len())
		}
	}
	if _, err := ByName("figure-eight"); err == nil {
		t.Error("unknown track accepted")
	}
}

func TestWindowAhead(t *testing.T) {
	tr := Straight(100, 5)
	xs, ys := tr.Window(31, 0.2, 6)
	if len(xs) != 6 || len(ys) != 6 {
		t.Fatalf("window = %d/%d points, want 6/6", len(xs), len(ys))
	}
	if xs[0] != 30 {
		t.Errorf("window starts at x=%v, want 30", xs[0])
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[i-1]+5 {
			t.Errorf("window not consecutive: %v", xs)
		}
	}
}

func TestWindowClampsAtOpenEnd(t *testing.T) {
	tr := Straight(100, 5)
	xs, _ := tr.Window(99, 0, 6)
	if len(xs) != 6 {
		t.Fatalf("window = %d points, want 6", len(xs))
	}
	if xs[len(xs)-1] != 100 {
		t.Errorf("clamped window ends at %v, want 100", xs[len(xs)-1])
	}
}

func TestWindowWrapsOnLoop(t *testing.T) {
	tr := Loop(60, 72)
	// Near the last waypoint the window must wrap to the start.
	xs, ys := tr.Window(tr.Xs[70], tr.Ys[70], 6)
	if len(xs) != 6 {
		t.Fatalf("window = %d points", len(xs))
	}
	wantX, wantY := tr.Xs[0], tr.Ys[0]
	if math.Abs(xs[2]-wantX) > 1e-9 || math.Abs(ys[2]-wantY) > 1e-9 {
		t.Errorf("window[2] = (%v, %v), want wrap to (%v, %v)", xs[2], ys[2], wantX, wantY)
	}
}

func TestCrossTrackSign(t *testing.T) {
	tr := Straight(100, 5)
	// Travel direction is +x, so +y is left of the path.
	if got := tr.CrossTrack(50, 2); math.Abs(got-2) > 1e-9 {
		t.Errorf("left offset = %v, want 2", got)
	}
	if got := tr.CrossTrack(50, -3); math.Abs(got+3) > 1e-9 {
		t.Errorf("right offset = %v, want -3", got)
	}
	if got := tr.CrossTrack(50, 0); math.Abs(got) > 1e-9 {
		t.Errorf("on-path offset = %v, want 0", got)
	}
}
