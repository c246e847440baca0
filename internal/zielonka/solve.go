package zielonka

import "github.com/gitrdm/mucalc-vpg-core/internal/vpg"

// Result holds the winning regions for both players as submaps: Result.Win[Even]
// is the set of (vertex, product) pairs Even wins, and similarly for Odd.
type Result struct {
	Win [2]*Submap
}

// Stats counts the work one solve performed. Collected only when a caller
// opts in via WithStats.
type Stats struct {
	// Recursions is the total number of recursive solve invocations.
	Recursions int
	// MaxDepth is the deepest recursion reached.
	MaxDepth int
	// AttractorIterations is the total number of work-queue pops across
	// every attractor fixpoint.
	AttractorIterations int
}

type solveConfig struct {
	leftOptimized bool
	stats         *Stats
}

// SolveOption tunes a solve, in the same functional-option style the rudd
// BDD package uses for its constructor.
type SolveOption func(*solveConfig)

// LeftOptimized enables the left-optimized variant (spec §4.G): after
// peeling off the m-priority attractor, the opponent's share of the
// recursive result is restricted to products not already live at priority
// m before being attracted, trading a smaller opponent submap for a
// (generally) smaller second recursion. When that restriction leaves
// nothing, the unrestricted share is attracted instead.
func LeftOptimized() SolveOption {
	return func(c *solveConfig) { c.leftOptimized = true }
}

// WithStats records recursion and attractor effort counters into st.
func WithStats(st *Stats) SolveOption {
	return func(c *solveConfig) { c.stats = st }
}

// Solve runs the recursive Zielonka family algorithm over BDD submaps
// (spec §4.G steps 1-9) starting from gamma, the submap of "still
// undecided" vertex/product pairs.
func Solve(g *vpg.Game, preds vpg.Predecessors, gamma *Submap, opts ...SolveOption) Result {
	var cfg solveConfig
	for _, o := range opts {
		o(&cfg)
	}
	return solve(g, preds, gamma, &cfg, 1)
}

// SolveLeftOptimized is Solve with the left-optimized variant enabled.
func SolveLeftOptimized(g *vpg.Game, preds vpg.Predecessors, gamma *Submap) Result {
	return Solve(g, preds, gamma, LeftOptimized())
}

func solve(g *vpg.Game, preds vpg.Predecessors, gamma *Submap, cfg *solveConfig, depth int) Result {
	if cfg.stats != nil {
		cfg.stats.Recursions++
		if depth > cfg.stats.MaxDepth {
			cfg.stats.MaxDepth = depth
		}
	}

	n := gamma.N()
	if gamma.IsEmpty() {
		return Result{Win: [2]*Submap{NewSubmap(g.Mgr, n), NewSubmap(g.Mgr, n)}}
	}

	m, ok := gamma.HighestPriority(g.Prio)
	if !ok {
		return Result{Win: [2]*Submap{NewSubmap(g.Mgr, n), NewSubmap(g.Mgr, n)}}
	}
	x := vpg.Even
	if m%2 != 0 {
		x = vpg.Odd
	}
	notX := x.Opponent()

	mu := gamma.RestrictToPriority(g.Prio, m)
	alpha := attractor(g, preds, x, gamma, mu, cfg.stats)

	rest := solve(g, preds, gamma.Diff(alpha), cfg, depth+1)
	wx := rest.Win[x]
	wNotX := rest.Win[notX]

	if wNotX.IsEmpty() {
		var out Result
		out.Win[x] = wx.Or(alpha)
		out.Win[notX] = NewSubmap(g.Mgr, n)
		return out
	}

	restrictedWNotX := wNotX
	if cfg.leftOptimized {
		// C: the set of products live at priority m, excluded from the
		// opponent's share before it is attracted — the opponent cannot
		// regain ground on a product it already lost at this priority.
		c := g.Mgr.False()
		for v := 0; v < n; v++ {
			if g.Prio[v] == m {
				c = g.Mgr.Or(c, gamma.Get(v))
			}
		}
		restrictedWNotX = wNotX.DiffSingle(c)
		if restrictedWNotX.IsEmpty() {
			// Nothing is left to attract: fall back to the whole share so
			// the second recursion still works on a strictly smaller gamma.
			restrictedWNotX = wNotX
		}
	}

	beta := attractor(g, preds, notX, gamma, restrictedWNotX, cfg.stats)
	rest2 := solve(g, preds, gamma.Diff(beta), cfg, depth+1)

	var out Result
	out.Win[x] = rest2.Win[x]
	out.Win[notX] = rest2.Win[notX].Or(beta)
	return out
}
