package core

import (
	"slices"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// PathElement is a Link or a Resource traversed by a Route.
type PathElement interface {
	Element
	pathElement()
}

func (*Link) pathElement()     {}
func (*Resource) pathElement() {}

// hop is a resolved path element: a link id or a resource id.
type hop struct {
	id       int64
	resource bool
}

// Route is an explicit path carrying traffic of a source-routed demand.
type Route struct {
	elementBase

	layerID  int64
	demandID int64

	hops       []hop
	occupation []float64
	carried    float64

	initialHops       []hop
	initialOccupation []float64
	initialCarried    float64

	backups   []int64 // ordered backup route ids
	primaries idSet   // routes this route backs up
}

func (*Route) Kind() ElementKind { return KindRoute }

// AddRoute creates a route for demand over path. occupation gives the
// capacity occupied in each path element; nil occupies carried on every
// element.
func (d *Design) AddRoute(demand *Demand, carried float64, path []PathElement, occupation []float64) (*Route, error) {
	hops, occ, err := d.validateRoute("AddRoute", demand, carried, path, occupation)
	if err != nil {
		return nil, err
	}
	return d.attachRoute(noID, demand, carried, hops, occ), nil
}

// AddRouteOverLinks is AddRoute for a path made only of links, each
// occupying the same capacity.
func (d *Design) AddRouteOverLinks(demand *Demand, carried, occupied float64, links []*Link) (*Route, error) {
	path := make([]PathElement, len(links))
	occ := make([]float64, len(links))
	for i, l := range links {
		path[i] = l
		occ[i] = occupied
	}
	return d.AddRoute(demand, carried, path, occ)
}

// validateRoute checks a candidate path for demand and resolves it to hops.
func (d *Design) validateRoute(op string, dem *Demand, carried float64, path []PathElement, occupation []float64) ([]hop, []float64, error) {
	if err := d.owns(op, dem); err != nil {
		return nil, nil, err
	}
	if dem.Layer().routingType != model.SourceRouting {
		return nil, nil, domainErr(op, dem, ErrRoutingType)
	}
	if !finiteNonNegative(carried) {
		return nil, nil, opErr(op, ErrInvalidArgument, "carried traffic must be finite and non-negative, got %v", carried)
	}
	if len(path) == 0 {
		return nil, nil, opErr(op, ErrNotContiguous, "empty path")
	}
	if occupation == nil {
		occupation = make([]float64, len(path))
		for i := range occupation {
			occupation[i] = carried
		}
	}
	if len(occupation) != len(path) {
		return nil, nil, opErr(op, ErrInvalidArgument, "%d occupation values for %d path elements", len(occupation), len(path))
	}
	hops := make([]hop, len(path))
	at := dem.ingressID
	var chain []string
	for i, e := range path {
		if err := d.owns(op, e); err != nil {
			return nil, nil, err
		}
		if !finiteNonNegative(occupation[i]) {
			return nil, nil, opErr(op, ErrInvalidArgument, "occupation %v at position %d", occupation[i], i)
		}
		switch v := e.(type) {
		case *Link:
			if v.layerID != dem.layerID {
				return nil, nil, domainErr(op, v, ErrLayerMismatch)
			}
			if v.originID != at {
				return nil, nil, opErr(op, ErrNotContiguous, "link %d does not start at node %d", v.id, at)
			}
			at = v.destID
			hops[i] = hop{id: v.id}
		case *Resource:
			if v.hostID != at {
				return nil, nil, opErr(op, ErrNotContiguous, "resource %d is not hosted at node %d", v.id, at)
			}
			chain = append(chain, v.typ)
			hops[i] = hop{id: v.id, resource: true}
		}
	}
	if at != dem.egressID {
		return nil, nil, opErr(op, ErrNotContiguous, "path ends at node %d, demand egress is %d", at, dem.egressID)
	}
	if !slices.Equal(chain, dem.serviceChain) {
		return nil, nil, opErr(op, ErrServiceChain, "traversed %v, required %v", chain, dem.serviceChain)
	}
	return hops, slices.Clone(occupation), nil
}

// attachRoute creates a validated route and registers it in every cache.
func (d *Design) attachRoute(id int64, dem *Demand, carried float64, hops []hop, occ []float64) *Route {
	layer := dem.Layer()
	r := &Route{
		elementBase:       newBase(d, d.newID(id), len(layer.routes)),
		layerID:           layer.id,
		demandID:          dem.id,
		hops:              hops,
		occupation:        occ,
		carried:           carried,
		initialHops:       slices.Clone(hops),
		initialOccupation: slices.Clone(occ),
		initialCarried:    carried,
		primaries:         newIDSet(),
	}
	layer.routes = append(layer.routes, r)
	dem.routes.add(r.id)
	r.attachHops()
	d.register(r)
	return r
}

func (r *Route) attachHops() {
	for i, h := range r.hops {
		if h.resource {
			r.d.ResourceByID(h.id).routes[r.id] += r.occupation[i]
		} else {
			r.d.LinkByID(h.id).routes[r.id]++
		}
	}
}

func (r *Route) detachHops() {
	for _, h := range r.hops {
		if h.resource {
			delete(r.d.ResourceByID(h.id).routes, r.id)
			continue
		}
		l := r.d.LinkByID(h.id)
		if l.routes[r.id]--; l.routes[r.id] <= 0 {
			delete(l.routes, r.id)
		}
	}
}

func (r *Route) Layer() *Layer      { return r.d.LayerByID(r.layerID) }
func (r *Route) Demand() *Demand    { return r.d.DemandByID(r.demandID) }
func (r *Route) IngressNode() *Node { return r.Demand().IngressNode() }
func (r *Route) EgressNode() *Node  { return r.Demand().EgressNode() }
func (r *Route) NumberOfHops() int  { return len(r.SeqLinks()) }
func (r *Route) IsUp() bool         { return !r.IsDown() }

// Path returns the traversed links and resources in order.
func (r *Route) Path() []PathElement { return r.resolve(r.hops) }

// InitialPath returns the path the route was created with.
func (r *Route) InitialPath() []PathElement { return r.resolve(r.initialHops) }

func (r *Route) resolve(hops []hop) []PathElement {
	out := make([]PathElement, len(hops))
	for i, h := range hops {
		if h.resource {
			out[i] = r.d.ResourceByID(h.id)
		} else {
			out[i] = r.d.LinkByID(h.id)
		}
	}
	return out
}

func (r *Route) initiallyTraverses(h hop) bool {
	return slices.Contains(r.initialHops, h)
}

// SeqLinks returns the traversed links in order.
func (r *Route) SeqLinks() []*Link {
	var out []*Link
	for _, h := range r.hops {
		if !h.resource {
			out = append(out, r.d.LinkByID(h.id))
		}
	}
	return out
}

// SeqResources returns the traversed resources in order.
func (r *Route) SeqResources() []*Resource {
	var out []*Resource
	for _, h := range r.hops {
		if h.resource {
			out = append(out, r.d.ResourceByID(h.id))
		}
	}
	return out
}

// SeqNodes returns the ingress node followed by the destination of every link.
func (r *Route) SeqNodes() []*Node {
	out := []*Node{r.IngressNode()}
	for _, l := range r.SeqLinks() {
		out = append(out, l.DestinationNode())
	}
	return out
}

// SeqOccupation returns the capacity occupied in each path element.
func (r *Route) SeqOccupation() []float64 { return slices.Clone(r.occupation) }

// HasLoops reports whether the route visits a node twice.
func (r *Route) HasLoops() bool {
	seen := newIDSet()
	for _, n := range r.SeqNodes() {
		if seen.has(n.id) {
			return true
		}
		seen.add(n.id)
	}
	return false
}

// LengthKm sums the traversed link lengths.
func (r *Route) LengthKm() float64 {
	total := 0.0
	for _, l := range r.SeqLinks() {
		total += l.lengthKm
	}
	return total
}

// PropagationDelayMs sums link propagation delays and resource processing
// times along the path.
func (r *Route) PropagationDelayMs() float64 {
	total := 0.0
	for _, e := range r.Path() {
		switch v := e.(type) {
		case *Link:
			total += v.PropagationDelayMs()
		case *Resource:
			total += v.processingTimeMs
		}
	}
	return total
}

// IsDown reports whether any traversed link, node or resource is down.
func (r *Route) IsDown() bool { return r.d.derived().routeDown[r.id] }

// CarriedTraffic returns the carried traffic, zero while the route is down.
func (r *Route) CarriedTraffic() float64 {
	if r.d == nil || r.IsDown() {
		return 0
	}
	return r.carried
}

// CarriedTrafficInNoFailureState returns the last explicitly set carried
// traffic regardless of failures.
func (r *Route) CarriedTrafficInNoFailureState() float64 { return r.carried }

// OccupiedCapacity returns the capacity occupied in e, zero while the route
// is down. A link traversed twice reports the sum of both occupations.
func (r *Route) OccupiedCapacity(e PathElement) float64 {
	if r.d == nil || r.IsDown() {
		return 0
	}
	return r.OccupiedCapacityInNoFailureState(e)
}

// OccupiedCapacityInNoFailureState returns the declared occupation in e.
func (r *Route) OccupiedCapacityInNoFailureState(e PathElement) float64 {
	if e == nil {
		return 0
	}
	_, isResource := e.(*Resource)
	total := 0.0
	for i, h := range r.hops {
		if h.id == e.ID() && h.resource == isResource {
			total += r.occupation[i]
		}
	}
	return total
}

// SetCarriedTraffic updates the carried traffic and, when occupation is
// non-nil, the per-element occupation.
func (r *Route) SetCarriedTraffic(carried float64, occupation []float64) error {
	const op = "SetCarriedTraffic"
	if r.d == nil {
		return domainErr(op, r, ErrElementRemoved)
	}
	if !finiteNonNegative(carried) {
		return domainErr(op, r, ErrInvalidArgument)
	}
	if occupation != nil {
		if len(occupation) != len(r.hops) {
			return opErr(op, ErrInvalidArgument, "%d occupation values for %d path elements", len(occupation), len(r.hops))
		}
		for _, v := range occupation {
			if !finiteNonNegative(v) {
				return domainErr(op, r, ErrInvalidArgument)
			}
		}
		r.detachHops()
		r.occupation = slices.Clone(occupation)
		r.attachHops()
	}
	r.carried = carried
	r.d.touch()
	return nil
}

// SetPath replaces the path, carried traffic and occupation. The new path
// is validated like AddRoute.
func (r *Route) SetPath(carried float64, path []PathElement, occupation []float64) error {
	const op = "SetPath"
	if r.d == nil {
		return domainErr(op, r, ErrElementRemoved)
	}
	hops, occ, err := r.d.validateRoute(op, r.Demand(), carried, path, occupation)
	if err != nil {
		return err
	}
	r.replacePath(carried, hops, occ)
	return nil
}

// RevertToInitialState restores the path, occupation and carried traffic
// the route was created with.
func (r *Route) RevertToInitialState() error {
	if r.d == nil {
		return domainErr("RevertToInitialState", r, ErrElementRemoved)
	}
	r.replacePath(r.initialCarried, slices.Clone(r.initialHops), slices.Clone(r.initialOccupation))
	return nil
}

func (r *Route) replacePath(carried float64, hops []hop, occ []float64) {
	r.detachHops()
	r.hops = hops
	r.occupation = occ
	r.carried = carried
	r.attachHops()
	r.d.touch()
}

// AddBackupRoute registers backup as a backup of r. Both routes must serve
// the same demand; a backup cannot have backups and a route with backups
// cannot be a backup.
func (r *Route) AddBackupRoute(backup *Route) error {
	const op = "AddBackupRoute"
	if r.d == nil {
		return domainErr(op, r, ErrElementRemoved)
	}
	if err := r.d.owns(op, backup); err != nil {
		return err
	}
	switch {
	case backup == r:
		return opErr(op, ErrBackupRoute, "route %d cannot back up itself", r.id)
	case backup.demandID != r.demandID:
		return opErr(op, ErrBackupRoute, "routes %d and %d serve different demands", r.id, backup.id)
	case len(r.primaries) > 0:
		return opErr(op, ErrBackupRoute, "route %d is itself a backup", r.id)
	case len(backup.backups) > 0:
		return opErr(op, ErrBackupRoute, "route %d has backups of its own", backup.id)
	case slices.Contains(r.backups, backup.id):
		return nil
	}
	r.backups = append(r.backups, backup.id)
	backup.primaries.add(r.id)
	return nil
}

// RemoveBackupRoute drops backup from the backups of r.
func (r *Route) RemoveBackupRoute(backup *Route) error {
	const op = "RemoveBackupRoute"
	if r.d == nil {
		return domainErr(op, r, ErrElementRemoved)
	}
	if err := r.d.owns(op, backup); err != nil {
		return err
	}
	i := slices.Index(r.backups, backup.id)
	if i < 0 {
		return opErr(op, ErrBackupRoute, "route %d is not a backup of route %d", backup.id, r.id)
	}
	r.backups = slices.Delete(r.backups, i, i+1)
	backup.primaries.remove(r.id)
	return nil
}

// BackupRoutes returns the backups of r in registration order.
func (r *Route) BackupRoutes() []*Route {
	out := make([]*Route, len(r.backups))
	for i, id := range r.backups {
		out[i] = r.d.RouteByID(id)
	}
	return out
}

// RoutesIAmBackup returns the routes r backs up.
func (r *Route) RoutesIAmBackup() []*Route {
	out := make([]*Route, 0, len(r.primaries))
	for _, id := range r.primaries.sorted() {
		out = append(out, r.d.RouteByID(id))
	}
	return out
}

func (r *Route) IsBackupRoute() bool   { return len(r.primaries) > 0 }
func (r *Route) HasBackupRoutes() bool { return len(r.backups) > 0 }

// SRGs returns the shared-risk groups containing any traversed link, any
// node on the path or the host of any traversed resource.
func (r *Route) SRGs() []*SRG {
	if r.d == nil {
		return nil
	}
	links, nodes := newIDSet(), newIDSet(r.Demand().ingressID)
	for _, h := range r.hops {
		if h.resource {
			nodes.add(r.d.ResourceByID(h.id).hostID)
			continue
		}
		l := r.d.LinkByID(h.id)
		links.add(l.id)
		nodes.add(l.originID)
		nodes.add(l.destID)
	}
	return r.d.srgsTouching(links, nodes)
}

// Remove deletes the route and releases its occupation.
func (r *Route) Remove() error {
	if r.d == nil {
		return domainErr("RemoveRoute", r, ErrElementRemoved)
	}
	r.remove()
	return nil
}

func (r *Route) remove() {
	d := r.d
	r.detachHops()
	for _, id := range r.backups {
		d.RouteByID(id).primaries.remove(r.id)
	}
	for _, id := range r.primaries.sorted() {
		p := d.RouteByID(id)
		p.backups = slices.DeleteFunc(p.backups, func(b int64) bool { return b == r.id })
	}
	d.DemandByID(r.demandID).routes.remove(r.id)
	layer := r.Layer()
	layer.routes = removeFromList(layer.routes, r.index)
	d.debug("route removed", logging.ElementID("route", r.id), logging.ElementID("demand", r.demandID))
	d.unregister(r)
}

// routeDown evaluates the failure state of r against current node and link
// states.
func (d *Design) routeDown(r *Route) bool {
	if !d.NodeByID(d.DemandByID(r.demandID).ingressID).up {
		return true
	}
	for _, h := range r.hops {
		if h.resource {
			if !d.NodeByID(d.ResourceByID(h.id).hostID).up {
				return true
			}
			continue
		}
		if !d.LinkByID(h.id).isTraversable() {
			return true
		}
	}
	return false
}
