package model

import (
	"fmt"
	"strings"
)

// CyclePolicy decides what happens when hop-by-hop forwarding rules of a
// demand form a cycle.
type CyclePolicy int

const (
	// CycleReject refuses any forwarding rule that would close a cycle.
	CycleReject CyclePolicy = iota
	// CycleIterate accepts cycles and solves the flow by bounded fixed-point
	// iteration. Traffic trapped in closed cycles is treated as lost.
	CycleIterate
)

func (p CyclePolicy) String() string {
	switch p {
	case CycleReject:
		return "reject"
	case CycleIterate:
		return "iterate"
	default:
		return fmt.Sprintf("CyclePolicy(%d)", int(p))
	}
}

// ParseCyclePolicy accepts "reject" or "iterate" (case-insensitive).
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return CycleReject, nil
	case "iterate":
		return CycleIterate, nil
	default:
		return CycleReject, fmt.Errorf("unknown cycle policy %q", s)
	}
}

// Options carries the numeric tolerances and policies of a design instance.
type Options struct {
	// Epsilon is the absolute tolerance used when comparing capacities,
	// forwarding fraction sums and recomputed traffic figures.
	Epsilon float64
	// CyclePolicy governs hop-by-hop forwarding cycles.
	CyclePolicy CyclePolicy
	// MaxIterations bounds the fixed-point solver used under CycleIterate.
	MaxIterations int
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{
		Epsilon:       1e-6,
		CyclePolicy:   CycleReject,
		MaxIterations: 1000,
	}
}

// Validate reports whether the options are usable.
func (o Options) Validate() error {
	if !(o.Epsilon > 0) || o.Epsilon >= 1 {
		return fmt.Errorf("epsilon must be in (0, 1), got %v", o.Epsilon)
	}
	if o.CyclePolicy != CycleReject && o.CyclePolicy != CycleIterate {
		return fmt.Errorf("unknown cycle policy %d", int(o.CyclePolicy))
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	return nil
}
