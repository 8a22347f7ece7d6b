package mpc

// Layout maps the flat decision vector of one horizon solve. The vector
// is six contiguous state blocks of length N (x, y, psi, v, cte, epsi)
// followed by two actuation blocks of length N-1 (steer, accel). The
// offsets are computed once from the horizon length; every reader and
// writer of the vector goes through these accessors so no call site
// derives an index by hand.
type Layout struct {
	N int

	x     int
	y     int
	psi   int
	v     int
	cte   int
	epsi  int
	steer int
	accel int

	// NumVars is 6N + 2(N-1); NumCons is the 6N dynamics/initial rows.
	NumVars int
	NumCons int
}

func NewLayout(n int) Layout {
	return Layout{
		N:       n,
		x:       0,
		y:       n,
		psi:     2 * n,
		v:       3 * n,
		cte:     4 * n,
		epsi:    5 * n,
		steer:   6 * n,
		accel:   6*n + (n - 1),
		NumVars: 6*n + 2*(n-1),
		NumCons: 6 * n,
	}
}

// State block accessors for time step t in [0, N).

func (l Layout) X(t int) int    { return l.x + t }
func (l Layout) Y(t int) int    { return l.y + t }
func (l Layout) Psi(t int) int  { return l.psi + t }
func (l Layout) V(t int) int    { return l.v + t }
func (l Layout) CTE(t int) int  { return l.cte + t }
func (l Layout) EPsi(t int) int { return l.epsi + t }

// Actuation block accessors for time step t in [0, N-1).

func (l Layout) Steer(t int) int { return l.steer + t }
func (l Layout) Accel(t int) int { return l.accel + t }

// SteerStart and AccelStart bound the actuation blocks for range-style
// bound setting.
func (l Layout) SteerStart() int { return l.steer }
func (l Layout) AccelStart() int { return l.accel }
