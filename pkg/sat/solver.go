// Package sat wraps the incremental SAT solver behind the small interface
// the verifier needs: fresh variables, gate construction, cardinality
// constraints, permanent clauses, one-shot assumptions, and timed solving.
package sat

import (
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// Result is the outcome of one solver query.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

// String returns a string representation of the result.
func (r Result) String() string {
	switch r {
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	default:
		return "UNKNOWN"
	}
}

// Solver is one solver context. It owns a formula arena in which gates and
// cardinality networks are built, and an incremental solver into which the
// arena is flushed lazily before each query. Variable ids are monotonically
// increasing and shared between the arena and the solver. A Solver is not
// safe for concurrent use.
type Solver struct {
	g *gini.Gini
	c *logic.C

	mark    []int8
	roots   []z.Lit
	assumed []z.Lit

	timeout time.Duration
}

// New creates a fresh solver context.
func New() *Solver {
	return &Solver{
		g: gini.New(),
		c: logic.NewC(),
	}
}

// SetTimeout sets a per-query soft deadline. Zero means no deadline.
func (s *Solver) SetTimeout(d time.Duration) { s.timeout = d }

// True returns the constant-true literal.
func (s *Solver) True() z.Lit { return s.c.T }

// False returns the constant-false literal.
func (s *Solver) False() z.Lit { return s.c.F }

// NewVar allocates a fresh variable and returns its positive literal.
func (s *Solver) NewVar() z.Lit { return s.c.Lit() }

// Not returns the negation of m.
func (s *Solver) Not(m z.Lit) z.Lit { return m.Not() }

// And returns a literal constrained to a AND b.
func (s *Solver) And(a, b z.Lit) z.Lit { return s.gate(s.c.And(a, b)) }

// Or returns a literal constrained to a OR b.
func (s *Solver) Or(a, b z.Lit) z.Lit { return s.gate(s.c.Or(a, b)) }

// Xor returns a literal constrained to a XOR b.
func (s *Solver) Xor(a, b z.Lit) z.Lit { return s.gate(s.c.Xor(a, b)) }

// Eq returns a literal constrained to a XNOR b.
func (s *Solver) Eq(a, b z.Lit) z.Lit { return s.gate(s.c.Xor(a, b).Not()) }

// Mux returns a literal constrained to (sel ? b : a).
func (s *Solver) Mux(sel, a, b z.Lit) z.Lit { return s.gate(s.c.Choice(sel, b, a)) }

// Ands returns the conjunction of ms, or true for an empty list.
func (s *Solver) Ands(ms ...z.Lit) z.Lit {
	if len(ms) == 0 {
		return s.c.T
	}
	return s.gate(s.c.Ands(ms...))
}

// Ors returns the disjunction of ms, or false for an empty list.
func (s *Solver) Ors(ms ...z.Lit) z.Lit {
	if len(ms) == 0 {
		return s.c.F
	}
	return s.gate(s.c.Ors(ms...))
}

// AtMost returns a literal that is true iff at most k of ms are true.
func (s *Solver) AtMost(ms []z.Lit, k int) z.Lit {
	if len(ms) == 0 {
		return s.c.T
	}
	return s.gate(s.c.CardSort(ms).Leq(k))
}

// AtLeast returns a literal that is true iff at least k of ms are true.
func (s *Solver) AtLeast(ms []z.Lit, k int) z.Lit {
	if k <= 0 {
		return s.c.T
	}
	if len(ms) == 0 {
		return s.c.F
	}
	return s.gate(s.c.CardSort(ms).Geq(k))
}

func (s *Solver) gate(m z.Lit) z.Lit {
	s.roots = append(s.roots, m)
	return m
}

// AddClause adds a permanent clause over the given literals.
func (s *Solver) AddClause(ms ...z.Lit) {
	s.roots = append(s.roots, ms...)
	for _, m := range ms {
		s.g.Add(m)
	}
	s.g.Add(z.LitNull)
}

// Assume adds one-shot assumptions consumed by the next Solve.
func (s *Solver) Assume(ms ...z.Lit) {
	s.roots = append(s.roots, ms...)
	s.assumed = append(s.assumed, ms...)
}

// flush emits the definitional clauses of every gate cone referenced since
// the previous flush. Clauses must reach the solver before assumptions are
// installed.
func (s *Solver) flush() {
	if len(s.roots) == 0 {
		return
	}
	s.mark, _ = s.c.CnfSince(s.g, s.mark, s.roots...)
	s.roots = s.roots[:0]
}

// Solve runs one query under the pending assumptions and reports the result
// together with the elapsed wall-clock time. A query hitting the deadline
// reports Unknown.
func (s *Solver) Solve() (Result, time.Duration) {
	s.flush()
	s.g.Assume(s.assumed...)
	s.assumed = s.assumed[:0]

	start := time.Now()
	var outcome int
	if s.timeout > 0 {
		outcome = s.g.GoSolve().Try(s.timeout)
	} else {
		outcome = s.g.Solve()
	}
	elapsed := time.Since(start)

	switch outcome {
	case 1:
		return Sat, elapsed
	case -1:
		return Unsat, elapsed
	default:
		return Unknown, elapsed
	}
}

// Value returns the truth value of m in the model of the last Sat result.
// Only literals that were in the problem before that query have meaningful
// values.
func (s *Solver) Value(m z.Lit) bool {
	if m == s.c.T {
		return true
	}
	if m == s.c.F {
		return false
	}
	if m.Var() > s.g.MaxVar() {
		return false
	}
	return s.g.Value(m)
}
