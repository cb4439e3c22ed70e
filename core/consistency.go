package core

import (
	"context"
	"maps"
	"math"
	"slices"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// CheckCachesConsistency rebuilds every index from the element lists and
// panics with an *InvariantViolation if any cache diverges. It never
// mutates the design.
func (d *Design) CheckCachesConsistency() {
	if err := d.VerifyCaches(); err != nil {
		d.log.Error(context.Background(), "design caches diverged", logging.Err(err))
		panic(err)
	}
}

// VerifyCaches is CheckCachesConsistency returning the violation instead of
// panicking. The returned error, if any, is an *InvariantViolation.
func (d *Design) VerifyCaches() error {
	checks := []func() error{
		d.verifyRegistry,
		d.verifyLayers,
		d.verifyNodes,
		d.verifyLinks,
		d.verifyDemands,
		d.verifyRoutes,
		d.verifyRules,
		d.verifyMulticast,
		d.verifyResources,
		d.verifySRGs,
		d.verifyTraffic,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func verifyList[T Element](d *Design, check, scope string, list []T) (int, error) {
	for i, e := range list {
		b := e.base()
		if b.index != i {
			return 0, violation(check, "%s %s %d has index %d at position %d", scope, e.Kind(), b.id, b.index, i)
		}
		if b.d != d {
			return 0, violation(check, "%s %s %d is not owned by this design", scope, e.Kind(), b.id)
		}
		if got, ok := d.elements[b.id]; !ok || got != Element(e) {
			return 0, violation(check, "%s %s %d missing from the id map", scope, e.Kind(), b.id)
		}
		if b.id >= d.nextID {
			return 0, violation(check, "%s id %d not below next id %d", e.Kind(), b.id, d.nextID)
		}
	}
	return len(list), nil
}

func (d *Design) verifyRegistry() error {
	const check = "registry"
	total := 0
	add := func(n int, err error) error {
		total += n
		return err
	}
	if len(d.layers) == 0 {
		return violation(check, "design has no layer")
	}
	if d.DefaultLayer() == nil {
		return violation(check, "default layer %d does not exist", d.defaultLayerID)
	}
	for _, err := range []error{
		add(verifyList(d, check, "design", d.layers)),
		add(verifyList(d, check, "design", d.nodes)),
		add(verifyList(d, check, "design", d.resources)),
		add(verifyList(d, check, "design", d.srgs)),
	} {
		if err != nil {
			return err
		}
	}
	for _, l := range d.layers {
		for _, err := range []error{
			add(verifyList(d, check, "layer", l.links)),
			add(verifyList(d, check, "layer", l.demands)),
			add(verifyList(d, check, "layer", l.routes)),
			add(verifyList(d, check, "layer", l.mdemands)),
			add(verifyList(d, check, "layer", l.trees)),
		} {
			if err != nil {
				return err
			}
		}
	}
	if total != len(d.elements) {
		return violation(check, "id map holds %d elements, lists hold %d", len(d.elements), total)
	}
	return nil
}

func (d *Design) verifyLayers() error {
	for _, l := range d.layers {
		if l.routingType != model.SourceRouting && l.routingType != model.HopByHopRouting {
			return violation("layers", "layer %d has routing type %d", l.id, int(l.routingType))
		}
		if l.router != strategyFor(l.routingType) {
			return violation("layers", "layer %d strategy does not match routing type %s", l.id, l.routingType)
		}
		if l.routingType == model.HopByHopRouting && len(l.routes) > 0 {
			return violation("layers", "hop-by-hop layer %d holds %d routes", l.id, len(l.routes))
		}
		if l.routingType == model.SourceRouting && len(l.rules) > 0 {
			return violation("layers", "source-routed layer %d holds %d forwarding rules", l.id, len(l.rules))
		}
	}
	return nil
}

func (d *Design) verifyNodes() error {
	const check = "nodes"
	out := make(map[int64]idSet)
	in := make(map[int64]idSet)
	hosted := make(map[int64]idSet)
	srgs := make(map[int64]idSet)
	for _, l := range d.layers {
		for _, link := range l.links {
			addTo(out, link.originID, link.id)
			addTo(in, link.destID, link.id)
		}
	}
	for _, r := range d.resources {
		addTo(hosted, r.hostID, r.id)
	}
	for _, s := range d.srgs {
		for _, id := range s.nodes.ToArray() {
			addTo(srgs, int64(id), s.id)
		}
	}
	for _, n := range d.nodes {
		if !n.outLinks.equal(orEmpty(out[n.id])) {
			return violation(check, "node %d outgoing links %v, expected %v", n.id, n.outLinks.sorted(), orEmpty(out[n.id]).sorted())
		}
		if !n.inLinks.equal(orEmpty(in[n.id])) {
			return violation(check, "node %d incoming links %v, expected %v", n.id, n.inLinks.sorted(), orEmpty(in[n.id]).sorted())
		}
		if !n.resources.equal(orEmpty(hosted[n.id])) {
			return violation(check, "node %d resources %v, expected %v", n.id, n.resources.sorted(), orEmpty(hosted[n.id]).sorted())
		}
		if !n.srgs.equal(orEmpty(srgs[n.id])) {
			return violation(check, "node %d srgs %v, expected %v", n.id, n.srgs.sorted(), orEmpty(srgs[n.id]).sorted())
		}
	}
	return nil
}

func (d *Design) verifyLinks() error {
	const check = "links"
	traversals := make(map[int64]map[int64]int)
	for _, l := range d.layers {
		for _, r := range l.routes {
			for _, h := range r.hops {
				if h.resource {
					continue
				}
				if traversals[h.id] == nil {
					traversals[h.id] = make(map[int64]int)
				}
				traversals[h.id][r.id]++
			}
		}
	}
	trees := make(map[int64]idSet)
	for _, l := range d.layers {
		for _, t := range l.trees {
			for id := range t.links {
				addTo(trees, id, t.id)
			}
		}
	}
	srgs := make(map[int64]idSet)
	for _, s := range d.srgs {
		for _, id := range s.links.ToArray() {
			addTo(srgs, int64(id), s.id)
		}
	}
	for _, l := range d.layers {
		for _, link := range l.links {
			if link.layerID != l.id {
				return violation(check, "link %d listed in layer %d claims layer %d", link.id, l.id, link.layerID)
			}
			if d.NodeByID(link.originID) == nil || d.NodeByID(link.destID) == nil {
				return violation(check, "link %d end node missing", link.id)
			}
			if !maps.Equal(link.routes, orEmptyCounts(traversals[link.id])) {
				return violation(check, "link %d traversing routes %v, expected %v", link.id, link.routes, traversals[link.id])
			}
			if !link.trees.equal(orEmpty(trees[link.id])) {
				return violation(check, "link %d trees %v, expected %v", link.id, link.trees.sorted(), orEmpty(trees[link.id]).sorted())
			}
			if !link.srgs.equal(orEmpty(srgs[link.id])) {
				return violation(check, "link %d srgs %v, expected %v", link.id, link.srgs.sorted(), orEmpty(srgs[link.id]).sorted())
			}
			if link.coupledDemandID != noID && link.coupledMDemandID != noID {
				return violation(check, "link %d coupled twice", link.id)
			}
			if link.coupledDemandID != noID {
				dem := d.DemandByID(link.coupledDemandID)
				if dem == nil || dem.coupledLinkID != link.id {
					return violation(check, "link %d coupling to demand %d is not mirrored", link.id, link.coupledDemandID)
				}
			}
			if link.coupledMDemandID != noID {
				md := d.MulticastDemandByID(link.coupledMDemandID)
				if md == nil || md.coupledLinks[link.destID] != link.id {
					return violation(check, "link %d coupling to multicast demand %d is not mirrored", link.id, link.coupledMDemandID)
				}
			}
		}
	}
	return nil
}

func (d *Design) verifyDemands() error {
	const check = "demands"
	routes := make(map[int64]idSet)
	for _, l := range d.layers {
		for _, r := range l.routes {
			addTo(routes, r.demandID, r.id)
		}
	}
	for _, l := range d.layers {
		for _, dem := range l.demands {
			if dem.layerID != l.id {
				return violation(check, "demand %d listed in layer %d claims layer %d", dem.id, l.id, dem.layerID)
			}
			if d.NodeByID(dem.ingressID) == nil || d.NodeByID(dem.egressID) == nil {
				return violation(check, "demand %d end node missing", dem.id)
			}
			if !dem.routes.equal(orEmpty(routes[dem.id])) {
				return violation(check, "demand %d routes %v, expected %v", dem.id, dem.routes.sorted(), orEmpty(routes[dem.id]).sorted())
			}
			if dem.coupledLinkID != noID {
				link := d.LinkByID(dem.coupledLinkID)
				if link == nil || link.coupledDemandID != dem.id {
					return violation(check, "demand %d coupling to link %d is not mirrored", dem.id, dem.coupledLinkID)
				}
			}
		}
	}
	return nil
}

func (d *Design) verifyRoutes() error {
	const check = "routes"
	for _, l := range d.layers {
		for _, r := range l.routes {
			dem := d.DemandByID(r.demandID)
			if dem == nil || dem.layerID != l.id || r.layerID != l.id {
				return violation(check, "route %d demand %d not in layer %d", r.id, r.demandID, l.id)
			}
			if len(r.hops) == 0 || len(r.hops) != len(r.occupation) {
				return violation(check, "route %d has %d hops and %d occupations", r.id, len(r.hops), len(r.occupation))
			}
			at := dem.ingressID
			var chain []string
			for _, h := range r.hops {
				if h.resource {
					res := d.ResourceByID(h.id)
					if res == nil || res.hostID != at {
						return violation(check, "route %d resource %d missing or off path", r.id, h.id)
					}
					chain = append(chain, res.typ)
					if _, ok := res.routes[r.id]; !ok {
						return violation(check, "route %d missing from resource %d", r.id, h.id)
					}
					continue
				}
				link := d.LinkByID(h.id)
				if link == nil || link.layerID != l.id || link.originID != at {
					return violation(check, "route %d link %d missing or not contiguous", r.id, h.id)
				}
				at = link.destID
			}
			if at != dem.egressID {
				return violation(check, "route %d ends at node %d, not the demand egress", r.id, at)
			}
			if !slices.Equal(chain, dem.serviceChain) {
				return violation(check, "route %d traverses %v, demand %d requires %v", r.id, chain, dem.id, dem.serviceChain)
			}
			for _, h := range r.initialHops {
				if (h.resource && d.ResourceByID(h.id) == nil) || (!h.resource && d.LinkByID(h.id) == nil) {
					return violation(check, "route %d initial path element %d missing", r.id, h.id)
				}
			}
			for _, b := range r.backups {
				br := d.RouteByID(b)
				if br == nil || !br.primaries.has(r.id) || br.demandID != r.demandID {
					return violation(check, "route %d backup %d is not mirrored", r.id, b)
				}
			}
			for p := range r.primaries {
				pr := d.RouteByID(p)
				if pr == nil || !slices.Contains(pr.backups, r.id) {
					return violation(check, "route %d primary %d is not mirrored", r.id, p)
				}
			}
		}
	}
	return nil
}

func (d *Design) verifyRules() error {
	const check = "forwarding"
	eps := d.opts.Epsilon
	for _, l := range d.layers {
		sums := make(map[ruleKey]float64) // keyed by demand and origin node
		for k, f := range l.rules {
			dem, link := d.DemandByID(k.demand), d.LinkByID(k.link)
			if dem == nil || link == nil || dem.layerID != l.id || link.layerID != l.id {
				return violation(check, "rule (%d, %d) of layer %d does not resolve", k.demand, k.link, l.id)
			}
			if !(f > 0 && f <= 1+eps) {
				return violation(check, "rule (%d, %d) fraction %v", k.demand, k.link, f)
			}
			sums[ruleKey{demand: k.demand, link: link.originID}] += f
		}
		for k, s := range sums {
			if s > 1+eps {
				return violation(check, "demand %d forwards %v at node %d", k.demand, s, k.link)
			}
		}
	}
	return nil
}

func (d *Design) verifyMulticast() error {
	const check = "multicast"
	trees := make(map[int64]idSet)
	for _, l := range d.layers {
		for _, t := range l.trees {
			md := d.MulticastDemandByID(t.demandID)
			if md == nil || md.layerID != l.id || t.layerID != l.id {
				return violation(check, "tree %d demand %d not in layer %d", t.id, t.demandID, l.id)
			}
			for _, set := range []idSet{t.links, t.initialLinks} {
				for id := range set {
					if link := d.LinkByID(id); link == nil || link.layerID != l.id {
						return violation(check, "tree %d link %d missing", t.id, id)
					}
				}
			}
			addTo(trees, t.demandID, t.id)
		}
	}
	for _, l := range d.layers {
		for _, md := range l.mdemands {
			if md.layerID != l.id || d.NodeByID(md.ingressID) == nil {
				return violation(check, "multicast demand %d ingress or layer missing", md.id)
			}
			for id := range md.egress {
				if d.NodeByID(id) == nil {
					return violation(check, "multicast demand %d egress node %d missing", md.id, id)
				}
			}
			if !md.trees.equal(orEmpty(trees[md.id])) {
				return violation(check, "multicast demand %d trees %v, expected %v", md.id, md.trees.sorted(), orEmpty(trees[md.id]).sorted())
			}
			for egress, lid := range md.coupledLinks {
				link := d.LinkByID(lid)
				if link == nil || link.coupledMDemandID != md.id || link.destID != egress {
					return violation(check, "multicast demand %d coupling to link %d is not mirrored", md.id, lid)
				}
			}
		}
	}
	return nil
}

func (d *Design) verifyResources() error {
	const check = "resources"
	uppers := make(map[int64]idSet)
	occupation := make(map[int64]map[int64]float64)
	for _, l := range d.layers {
		for _, r := range l.routes {
			for i, h := range r.hops {
				if !h.resource {
					continue
				}
				if occupation[h.id] == nil {
					occupation[h.id] = make(map[int64]float64)
				}
				occupation[h.id][r.id] += r.occupation[i]
			}
		}
	}
	for _, r := range d.resources {
		if d.NodeByID(r.hostID) == nil {
			return violation(check, "resource %d host %d missing", r.id, r.hostID)
		}
		for b := range r.bases {
			base := d.ResourceByID(b)
			if base == nil || base.hostID != r.hostID {
				return violation(check, "resource %d base %d missing or on another host", r.id, b)
			}
			addTo(uppers, b, r.id)
		}
		if r.dependsOn(r.id) {
			return violation(check, "resource %d is part of a composition cycle", r.id)
		}
	}
	for _, r := range d.resources {
		if !r.uppers.equal(orEmpty(uppers[r.id])) {
			return violation(check, "resource %d uppers %v, expected %v", r.id, r.uppers.sorted(), orEmpty(uppers[r.id]).sorted())
		}
		want := occupation[r.id]
		if len(want) != len(r.routes) {
			return violation(check, "resource %d traversed by %d routes, expected %d", r.id, len(r.routes), len(want))
		}
		for id, v := range want {
			if !closeTo(r.routes[id], v, d.opts.Epsilon) {
				return violation(check, "resource %d occupation by route %d is %v, expected %v", r.id, id, r.routes[id], v)
			}
		}
	}
	return nil
}

func (d *Design) verifySRGs() error {
	for _, s := range d.srgs {
		for _, id := range s.nodes.ToArray() {
			if d.NodeByID(int64(id)) == nil {
				return violation("srgs", "srg %d node %d missing", s.id, id)
			}
		}
		for _, id := range s.links.ToArray() {
			if d.LinkByID(int64(id)) == nil {
				return violation("srgs", "srg %d link %d missing", s.id, id)
			}
		}
	}
	return nil
}

// verifyTraffic compares a cached, current traffic state against a fresh
// derivation. A stale or absent cache has nothing to drift from.
func (d *Design) verifyTraffic() error {
	const check = "traffic"
	cached := d.traffic
	if cached == nil || cached.epoch != d.epoch {
		return nil
	}
	fresh := d.computeTraffic()
	eps := d.opts.Epsilon
	for _, pair := range []struct {
		name      string
		got, want map[int64]float64
	}{
		{"link carried", cached.linkCarried, fresh.linkCarried},
		{"link occupied", cached.linkOccupied, fresh.linkOccupied},
		{"demand carried", cached.demandCarried, fresh.demandCarried},
		{"multicast carried", cached.mdemandCarried, fresh.mdemandCarried},
		{"resource occupied", cached.resourceOccupied, fresh.resourceOccupied},
	} {
		for _, id := range sortedKeys(unionKeys(pair.got, pair.want)) {
			if !closeTo(pair.got[id], pair.want[id], eps) {
				return violation(check, "%s of %d is %v, recomputed %v", pair.name, id, pair.got[id], pair.want[id])
			}
		}
	}
	if !maps.Equal(cached.routeDown, fresh.routeDown) || !maps.Equal(cached.treeDown, fresh.treeDown) {
		return violation(check, "cached down states differ from recomputed ones")
	}
	if !maps.Equal(cached.demandCycle, fresh.demandCycle) {
		return violation(check, "cached routing cycle types differ from recomputed ones")
	}
	return nil
}

func addTo(m map[int64]idSet, key, id int64) {
	if m[key] == nil {
		m[key] = newIDSet()
	}
	m[key].add(id)
}

func orEmpty(s idSet) idSet {
	if s == nil {
		return idSet{}
	}
	return s
}

func orEmptyCounts(m map[int64]int) map[int64]int {
	if m == nil {
		return map[int64]int{}
	}
	return m
}

func unionKeys(a, b map[int64]float64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func closeTo(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
