package core

import (
	"maps"
	"slices"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// ruleKey addresses a forwarding rule: the fraction of a demand's traffic
// forwarded over a link at the link's origin node.
type ruleKey struct {
	demand int64
	link   int64
}

// Layer is a named partition of the topology and traffic.
type Layer struct {
	elementBase

	name          string
	description   string
	demandUnits   string
	capacityUnits string
	routingType   model.RoutingType
	router        trafficStrategy

	links    []*Link
	demands  []*Demand
	routes   []*Route
	mdemands []*MulticastDemand
	trees    []*MulticastTree
	rules    map[ruleKey]float64
}

func (*Layer) Kind() ElementKind { return KindLayer }

// AddLayer appends a new layer using the given routing discipline.
func (d *Design) AddLayer(name, description string, routing model.RoutingType) (*Layer, error) {
	return d.addLayer(noID, name, description, "Gbps", "Gbps", routing)
}

func (d *Design) addLayer(id int64, name, description, demandUnits, capacityUnits string, routing model.RoutingType) (*Layer, error) {
	const op = "AddLayer"
	if routing != model.SourceRouting && routing != model.HopByHopRouting {
		return nil, opErr(op, ErrInvalidArgument, "unknown routing type %d", int(routing))
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	l := &Layer{
		elementBase:   newBase(d, d.newID(id), len(d.layers)),
		name:          name,
		description:   description,
		demandUnits:   demandUnits,
		capacityUnits: capacityUnits,
		routingType:   routing,
		router:        strategyFor(routing),
		rules:         make(map[ruleKey]float64),
	}
	d.layers = append(d.layers, l)
	d.register(l)
	if d.defaultLayerID == noID {
		d.defaultLayerID = l.id
	}
	return l, nil
}

func (l *Layer) Name() string                  { return l.name }
func (l *Layer) Description() string           { return l.description }
func (l *Layer) DemandTrafficUnits() string    { return l.demandUnits }
func (l *Layer) LinkCapacityUnits() string     { return l.capacityUnits }
func (l *Layer) RoutingType() model.RoutingType { return l.routingType }

func (l *Layer) SetName(name string) error {
	if l.d == nil {
		return domainErr("SetName", l, ErrElementRemoved)
	}
	l.name = name
	return nil
}

func (l *Layer) SetDescription(desc string) error {
	if l.d == nil {
		return domainErr("SetDescription", l, ErrElementRemoved)
	}
	l.description = desc
	return nil
}

// SetUnits changes the traffic and capacity units labels.
func (l *Layer) SetUnits(demandUnits, capacityUnits string) error {
	if l.d == nil {
		return domainErr("SetUnits", l, ErrElementRemoved)
	}
	l.demandUnits = demandUnits
	l.capacityUnits = capacityUnits
	return nil
}

// IsDefault reports whether l is the design's default layer.
func (l *Layer) IsDefault() bool { return l.d != nil && l.d.defaultLayerID == l.id }

func (l *Layer) Links() []*Link                       { return append([]*Link(nil), l.links...) }
func (l *Layer) Demands() []*Demand                   { return append([]*Demand(nil), l.demands...) }
func (l *Layer) Routes() []*Route                     { return append([]*Route(nil), l.routes...) }
func (l *Layer) MulticastDemands() []*MulticastDemand { return append([]*MulticastDemand(nil), l.mdemands...) }
func (l *Layer) MulticastTrees() []*MulticastTree     { return append([]*MulticastTree(nil), l.trees...) }

func (l *Layer) NumberOfLinks() int            { return len(l.links) }
func (l *Layer) NumberOfDemands() int          { return len(l.demands) }
func (l *Layer) NumberOfRoutes() int           { return len(l.routes) }
func (l *Layer) NumberOfForwardingRules() int  { return len(l.rules) }
func (l *Layer) NumberOfMulticastDemands() int { return len(l.mdemands) }
func (l *Layer) NumberOfMulticastTrees() int   { return len(l.trees) }

// ForwardingRules returns every rule of the layer keyed by demand and link.
func (l *Layer) ForwardingRules() map[*Demand]map[*Link]float64 {
	out := make(map[*Demand]map[*Link]float64)
	for k, f := range l.rules {
		dem := l.d.DemandByID(k.demand)
		link := l.d.LinkByID(k.link)
		if out[dem] == nil {
			out[dem] = make(map[*Link]float64)
		}
		out[dem][link] = f
	}
	return out
}

// SetRoutingType switches the layer discipline. Routing state is converted:
// routes become forwarding rules carrying the same per-link traffic, and
// loopless forwarding rules are decomposed into routes. Forwarding paths
// never traverse resources, so a demand with a service chain and forwarding
// rules blocks the switch to source routing. The switch is atomic; if
// conversion fails the layer is left untouched.
func (l *Layer) SetRoutingType(t model.RoutingType) error {
	const op = "SetRoutingType"
	if l.d == nil {
		return domainErr(op, l, ErrElementRemoved)
	}
	if t != model.SourceRouting && t != model.HopByHopRouting {
		return domainErr(op, l, ErrInvalidArgument)
	}
	if t == l.routingType {
		return nil
	}
	d := l.d
	if t == model.HopByHopRouting {
		for _, r := range l.routes {
			for _, h := range r.hops {
				if h.resource {
					return domainErr(op, r, ErrRoutingType)
				}
			}
		}
		rules, err := l.rulesFromRoutes()
		if err != nil {
			return err
		}
		for len(l.routes) > 0 {
			l.routes[len(l.routes)-1].remove()
		}
		l.routingType = t
		l.router = strategyFor(t)
		l.rules = rules
		d.touch()
		return nil
	}

	paths := l.routesFromRules()
	for _, p := range paths {
		dem := d.DemandByID(p.demand)
		if len(dem.serviceChain) > 0 {
			return opErr(op, ErrServiceChain, "demand %d: forwarding path traverses [], required %v", dem.id, dem.serviceChain)
		}
	}
	l.rules = make(map[ruleKey]float64)
	l.routingType = t
	l.router = strategyFor(t)
	for _, p := range paths {
		dem := d.DemandByID(p.demand)
		hops := make([]hop, len(p.links))
		occ := make([]float64, len(p.links))
		for i, id := range p.links {
			hops[i] = hop{id: id}
			occ[i] = p.traffic
		}
		d.attachRoute(noID, dem, p.traffic, hops, occ)
	}
	d.touch()
	return nil
}

// rulesFromRoutes computes, for every demand, the fraction of the traffic
// entering each node that its routes forward over each outgoing link.
func (l *Layer) rulesFromRoutes() (map[ruleKey]float64, error) {
	d := l.d
	rules := make(map[ruleKey]float64)
	for _, dem := range l.demands {
		linkFlow := make(map[int64]float64)
		for _, rid := range dem.routes.sorted() {
			r := d.RouteByID(rid)
			for _, h := range r.hops {
				if !h.resource {
					linkFlow[h.id] += r.carried
				}
			}
		}
		flowLinks := slices.Sorted(maps.Keys(linkFlow))
		inflow := map[int64]float64{dem.ingressID: dem.offered}
		for _, lid := range flowLinks {
			inflow[d.LinkByID(lid).destID] += linkFlow[lid]
		}
		for _, lid := range flowLinks {
			f := linkFlow[lid]
			if f <= 0 {
				continue
			}
			link := d.LinkByID(lid)
			if link.originID == dem.egressID {
				continue
			}
			in := inflow[link.originID]
			if in <= 0 {
				continue
			}
			rules[ruleKey{demand: dem.id, link: lid}] = f / in
		}
		if err := checkRuleSet(d, dem, rules, "SetRoutingType"); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

type hopPath struct {
	demand  int64
	links   []int64
	traffic float64
}

// routesFromRules decomposes each demand's forwarding rules into paths from
// the ingress to the egress. Demands whose rules contain cycles contribute
// only the loopless paths.
func (l *Layer) routesFromRules() []hopPath {
	d := l.d
	var out []hopPath
	for _, dem := range l.demands {
		fwd := forwardingGraphOf(d, dem.id, l.rules)
		visited := newIDSet(dem.ingressID)
		var walk func(node int64, links []int64, share float64)
		walk = func(node int64, links []int64, share float64) {
			if node == dem.egressID {
				out = append(out, hopPath{demand: dem.id, links: append([]int64(nil), links...), traffic: dem.offered * share})
				return
			}
			for _, e := range fwd[node] {
				if visited.has(e.dest) {
					continue
				}
				visited.add(e.dest)
				walk(e.dest, append(links, e.link), share*e.fraction)
				visited.remove(e.dest)
			}
		}
		walk(dem.ingressID, nil, 1)
	}
	return out
}

// Remove deletes the layer and everything it contains. The last layer
// cannot be removed; removing the default layer promotes the first
// remaining layer.
func (l *Layer) Remove() error {
	const op = "RemoveLayer"
	if l.d == nil {
		return domainErr(op, l, ErrElementRemoved)
	}
	d := l.d
	if len(d.layers) == 1 {
		return domainErr(op, l, ErrLastLayer)
	}
	for len(l.trees) > 0 {
		l.trees[len(l.trees)-1].remove()
	}
	for len(l.mdemands) > 0 {
		l.mdemands[len(l.mdemands)-1].remove()
	}
	for len(l.routes) > 0 {
		l.routes[len(l.routes)-1].remove()
	}
	for len(l.demands) > 0 {
		l.demands[len(l.demands)-1].remove()
	}
	for len(l.links) > 0 {
		l.links[len(l.links)-1].remove()
	}
	d.layers = removeFromList(d.layers, l.index)
	if d.defaultLayerID == l.id {
		d.defaultLayerID = d.layers[0].id
	}
	d.debug("layer removed", logging.ElementID("layer", l.id))
	d.unregister(l)
	return nil
}
