package model

import (
	"fmt"
	"strings"
)

// RoutingType is the traffic-delivery discipline of a network layer.
type RoutingType int

const (
	// SourceRouting carries demand traffic only through explicit Routes.
	SourceRouting RoutingType = iota
	// HopByHopRouting carries demand traffic through fractional forwarding rules.
	HopByHopRouting
)

func (t RoutingType) String() string {
	switch t {
	case SourceRouting:
		return "SOURCE_ROUTING"
	case HopByHopRouting:
		return "HOP_BY_HOP_ROUTING"
	default:
		return fmt.Sprintf("RoutingType(%d)", int(t))
	}
}

// ParseRoutingType maps the persisted/textual representation back to a
// RoutingType. Matching is case-insensitive.
func ParseRoutingType(s string) (RoutingType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SOURCE_ROUTING", "SOURCE":
		return SourceRouting, nil
	case "HOP_BY_HOP_ROUTING", "HOP_BY_HOP":
		return HopByHopRouting, nil
	default:
		return SourceRouting, fmt.Errorf("unknown routing type %q", s)
	}
}

// RoutingCycleType classifies the forwarding graph of a hop-by-hop demand.
type RoutingCycleType int

const (
	// Loopless means no forwarding rule of the demand closes a cycle.
	Loopless RoutingCycleType = iota
	// OpenCycles means cycles exist but traffic can leave every one of them.
	OpenCycles
	// ClosedCycles means some cycle traps traffic that never reaches the egress.
	ClosedCycles
)

func (t RoutingCycleType) String() string {
	switch t {
	case Loopless:
		return "LOOPLESS"
	case OpenCycles:
		return "OPEN_CYCLES"
	case ClosedCycles:
		return "CLOSED_CYCLES"
	default:
		return fmt.Sprintf("RoutingCycleType(%d)", int(t))
	}
}
