package core

import (
	"cmp"
	"maps"
	"slices"

	"github.com/signalsfoundry/netdesign/model"
)

// ruleEdge is a positive forwarding rule seen from the link origin node.
type ruleEdge struct {
	link     int64
	dest     int64
	fraction float64
}

func sortRuleEdges(edges []ruleEdge) {
	slices.SortFunc(edges, func(a, b ruleEdge) int { return cmp.Compare(a.link, b.link) })
}

// forwardingGraph returns the demand positive rules grouped by origin node.
func (dem *Demand) forwardingGraph() map[int64][]ruleEdge {
	return forwardingGraphOf(dem.d, dem.id, dem.Layer().rules)
}

func forwardingGraphOf(d *Design, demandID int64, rules map[ruleKey]float64) map[int64][]ruleEdge {
	fwd := make(map[int64][]ruleEdge)
	for k, f := range rules {
		if k.demand != demandID || f <= 0 {
			continue
		}
		l := d.LinkByID(k.link)
		fwd[l.originID] = append(fwd[l.originID], ruleEdge{link: l.id, dest: l.destID, fraction: f})
	}
	for n := range fwd {
		sortRuleEdges(fwd[n])
	}
	return fwd
}

// ForwardingRule returns the fraction of the demand forwarded over link.
func (dem *Demand) ForwardingRule(link *Link) float64 {
	if dem.d == nil || link == nil {
		return 0
	}
	return dem.Layer().rules[ruleKey{demand: dem.id, link: link.id}]
}

// ForwardingRules returns the demand's non-zero rules keyed by link.
func (dem *Demand) ForwardingRules() map[*Link]float64 {
	out := make(map[*Link]float64)
	if dem.d == nil {
		return out
	}
	for k, f := range dem.Layer().rules {
		if k.demand == dem.id {
			out[dem.d.LinkByID(k.link)] = f
		}
	}
	return out
}

// SetForwardingRule sets the fraction of the demand traffic entering the
// link origin node that is forwarded over link. A zero fraction removes the
// rule.
func (dem *Demand) SetForwardingRule(link *Link, fraction float64) error {
	return dem.updateRules("SetForwardingRule", map[*Link]float64{link: fraction}, false)
}

// SetForwardingRules replaces every rule of the demand atomically.
func (dem *Demand) SetForwardingRules(rules map[*Link]float64) error {
	return dem.updateRules("SetForwardingRules", rules, true)
}

// RemoveForwardingRules drops every rule of the demand.
func (dem *Demand) RemoveForwardingRules() error {
	return dem.updateRules("RemoveForwardingRules", nil, true)
}

func (dem *Demand) updateRules(op string, changes map[*Link]float64, replace bool) error {
	if dem.d == nil {
		return domainErr(op, dem, ErrElementRemoved)
	}
	d := dem.d
	layer := dem.Layer()
	if layer.routingType != model.HopByHopRouting {
		return domainErr(op, dem, ErrRoutingType)
	}
	candidate := make(map[ruleKey]float64)
	if !replace {
		for k, f := range layer.rules {
			if k.demand == dem.id {
				candidate[k] = f
			}
		}
	}
	for link, f := range changes {
		if err := d.owns(op, link); err != nil {
			return err
		}
		if link.layerID != dem.layerID {
			return domainErr(op, link, ErrLayerMismatch)
		}
		if !(f >= 0 && f <= 1+d.opts.Epsilon) {
			return opErr(op, ErrForwardingFraction, "fraction %v for link %d outside [0,1]", f, link.id)
		}
		k := ruleKey{demand: dem.id, link: link.id}
		if f == 0 {
			delete(candidate, k)
		} else {
			candidate[k] = min(f, 1)
		}
	}
	if err := checkRuleSet(d, dem, candidate, op); err != nil {
		return err
	}
	for k := range layer.rules {
		if k.demand == dem.id {
			delete(layer.rules, k)
		}
	}
	for k, f := range candidate {
		layer.rules[k] = f
	}
	d.touch()
	return nil
}

// checkRuleSet validates the rules of dem found in rules: fractions out of
// each node sum to at most one, nothing leaves the egress node and, under
// the reject policy, the rules form no cycle.
func checkRuleSet(d *Design, dem *Demand, rules map[ruleKey]float64, op string) error {
	fwd := forwardingGraphOf(d, dem.id, rules)
	for _, n := range slices.Sorted(maps.Keys(fwd)) {
		if n == dem.egressID {
			return opErr(op, ErrInvalidArgument, "demand %d forwards traffic out of its egress node %d", dem.id, n)
		}
		sum := 0.0
		for _, e := range fwd[n] {
			sum += e.fraction
		}
		if sum > 1+d.opts.Epsilon {
			return opErr(op, ErrForwardingFraction, "demand %d forwards %v of the traffic at node %d", dem.id, sum, n)
		}
	}
	if d.opts.CyclePolicy == model.CycleReject && hasForwardingCycle(fwd) {
		return opErr(op, ErrForwardingCycle, "demand %d", dem.id)
	}
	return nil
}

func hasForwardingCycle(fwd map[int64][]ruleEdge) bool {
	const (
		white = iota
		grey
		black
	)
	color := make(map[int64]int)
	var visit func(n int64) bool
	visit = func(n int64) bool {
		color[n] = grey
		for _, e := range fwd[n] {
			switch color[e.dest] {
			case grey:
				return true
			case white:
				if visit(e.dest) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, n := range slices.Sorted(maps.Keys(fwd)) {
		if color[n] == white && visit(n) {
			return true
		}
	}
	return false
}
