package core

import (
	"math"

	"github.com/signalsfoundry/netdesign/internal/logging"
)

// Resource is a capacity pool hosted at a node. A resource may be built on
// base resources of the same host, occupying a fixed amount of capacity in
// each; the composition graph is acyclic.
type Resource struct {
	elementBase

	typ              string
	name             string
	hostID           int64
	capacity         float64
	units            string
	processingTimeMs float64

	bases  map[int64]float64 // base resource id -> capacity occupied in it
	uppers idSet             // resources built on this one
	routes map[int64]float64 // traversing route id -> occupied capacity
}

func (*Resource) Kind() ElementKind { return KindResource }

// AddResource creates a resource of type typ hosted at host. bases maps each
// base resource to the fixed capacity this resource occupies in it. The
// amount is debited while the host is up, whatever traffic the resource
// itself carries.
func (d *Design) AddResource(typ, name string, host *Node, capacity float64, units string, bases map[*Resource]float64, processingTimeMs float64) (*Resource, error) {
	return d.addResource(noID, typ, name, host, capacity, units, bases, processingTimeMs)
}

func (d *Design) addResource(id int64, typ, name string, host *Node, capacity float64, units string, bases map[*Resource]float64, processingTimeMs float64) (*Resource, error) {
	const op = "AddResource"
	if err := d.owns(op, host); err != nil {
		return nil, err
	}
	if typ == "" {
		return nil, opErr(op, ErrInvalidArgument, "empty resource type")
	}
	if !finiteNonNegative(capacity) || !finiteNonNegative(processingTimeMs) {
		return nil, opErr(op, ErrInvalidArgument, "capacity and processing time must be finite and non-negative")
	}
	resolved, err := d.validateBases(op, nil, host.id, bases)
	if err != nil {
		return nil, err
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	r := &Resource{
		elementBase:      newBase(d, d.newID(id), len(d.resources)),
		typ:              typ,
		name:             name,
		hostID:           host.id,
		capacity:         capacity,
		units:            units,
		processingTimeMs: processingTimeMs,
		bases:            resolved,
		uppers:           newIDSet(),
		routes:           make(map[int64]float64),
	}
	d.resources = append(d.resources, r)
	host.resources.add(r.id)
	for b := range resolved {
		d.ResourceByID(b).uppers.add(r.id)
	}
	d.register(r)
	return r, nil
}

// validateBases resolves a base occupation map for self (nil when the
// resource does not exist yet) hosted at host.
func (d *Design) validateBases(op string, self *Resource, host int64, bases map[*Resource]float64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(bases))
	for b, amount := range bases {
		if err := d.owns(op, b); err != nil {
			return nil, err
		}
		if b.hostID != host {
			return nil, opErr(op, ErrInvalidArgument, "base resource %d is hosted at another node", b.id)
		}
		if !finiteNonNegative(amount) {
			return nil, opErr(op, ErrInvalidArgument, "occupation %v in base resource %d", amount, b.id)
		}
		if self != nil && (b == self || b.dependsOn(self.id)) {
			return nil, opErr(op, ErrResourceCycle, "resource %d cannot be built on resource %d", self.id, b.id)
		}
		out[b.id] = amount
	}
	return out, nil
}

// dependsOn reports whether id is a direct or transitive base of r.
func (r *Resource) dependsOn(id int64) bool {
	seen := newIDSet()
	stack := []int64{r.id}
	for len(stack) > 0 {
		cur := r.d.ResourceByID(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		for b := range cur.bases {
			if b == id {
				return true
			}
			if !seen.has(b) {
				seen.add(b)
				stack = append(stack, b)
			}
		}
	}
	return false
}

func (r *Resource) Type() string              { return r.typ }
func (r *Resource) Name() string              { return r.name }
func (r *Resource) HostNode() *Node           { return r.d.NodeByID(r.hostID) }
func (r *Resource) Capacity() float64         { return r.capacity }
func (r *Resource) CapacityUnits() string     { return r.units }
func (r *Resource) ProcessingTimeMs() float64 { return r.processingTimeMs }

func (r *Resource) SetName(name string) error {
	if r.d == nil {
		return domainErr("SetName", r, ErrElementRemoved)
	}
	r.name = name
	return nil
}

// SetProcessingTimeMs updates the processing time added to route latency.
func (r *Resource) SetProcessingTimeMs(ms float64) error {
	if r.d == nil {
		return domainErr("SetProcessingTimeMs", r, ErrElementRemoved)
	}
	if !finiteNonNegative(ms) {
		return domainErr("SetProcessingTimeMs", r, ErrInvalidArgument)
	}
	r.processingTimeMs = ms
	return nil
}

// SetCapacity sets the capacity and, when bases is non-nil, replaces the
// base occupation map in the same step.
func (r *Resource) SetCapacity(capacity float64, bases map[*Resource]float64) error {
	const op = "SetCapacity"
	if r.d == nil {
		return domainErr(op, r, ErrElementRemoved)
	}
	if !finiteNonNegative(capacity) {
		return domainErr(op, r, ErrInvalidArgument)
	}
	d := r.d
	if bases != nil {
		resolved, err := d.validateBases(op, r, r.hostID, bases)
		if err != nil {
			return err
		}
		for b := range r.bases {
			d.ResourceByID(b).uppers.remove(r.id)
		}
		r.bases = resolved
		for b := range resolved {
			d.ResourceByID(b).uppers.add(r.id)
		}
	}
	r.capacity = capacity
	d.touch()
	return nil
}

// BaseResources returns the base resources and the capacity occupied in each.
func (r *Resource) BaseResources() map[*Resource]float64 {
	out := make(map[*Resource]float64, len(r.bases))
	for id, v := range r.bases {
		out[r.d.ResourceByID(id)] = v
	}
	return out
}

// CapacityOccupiedInBase returns the capacity r occupies in base.
func (r *Resource) CapacityOccupiedInBase(base *Resource) float64 {
	if base == nil {
		return 0
	}
	return r.bases[base.id]
}

// UpperResources returns the resources built on r ordered by id.
func (r *Resource) UpperResources() []*Resource {
	out := make([]*Resource, 0, len(r.uppers))
	for _, id := range r.uppers.sorted() {
		out = append(out, r.d.ResourceByID(id))
	}
	return out
}

// TraversingRoutes returns the routes traversing r ordered by id.
func (r *Resource) TraversingRoutes() []*Route {
	out := make([]*Route, 0, len(r.routes))
	for _, id := range sortedKeys(r.routes) {
		out = append(out, r.d.RouteByID(id))
	}
	return out
}

// OccupiedCapacityByRoute returns the capacity route declares in r,
// regardless of failures.
func (r *Resource) OccupiedCapacityByRoute(route *Route) float64 {
	if route == nil {
		return 0
	}
	return r.routes[route.id]
}

// OccupiedCapacity returns the capacity consumed by up traversing routes and
// by resources built on r.
func (r *Resource) OccupiedCapacity() float64 { return r.d.derived().resourceOccupied[r.id] }

// Utilization returns occupied capacity over capacity.
func (r *Resource) Utilization() float64 {
	occ := r.OccupiedCapacity()
	if r.capacity == 0 {
		if occ == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return occ / r.capacity
}

// IsOversubscribed reports occupied capacity above capacity beyond epsilon.
func (r *Resource) IsOversubscribed() bool {
	if r.d == nil {
		return false
	}
	return r.OccupiedCapacity() > r.capacity+r.d.opts.Epsilon
}

// IsDown reports whether the host node is down.
func (r *Resource) IsDown() bool {
	if r.d == nil {
		return false
	}
	return !r.d.NodeByID(r.hostID).up
}

// Remove deletes the resource, every resource built on it and every route
// whose current or initial path traverses any of them.
func (r *Resource) Remove() error {
	if r.d == nil {
		return domainErr("RemoveResource", r, ErrElementRemoved)
	}
	r.remove()
	return nil
}

func (r *Resource) remove() {
	d := r.d
	for _, id := range r.uppers.sorted() {
		if up := d.ResourceByID(id); up != nil {
			up.remove()
		}
	}
	for _, id := range sortedKeys(r.routes) {
		if route := d.RouteByID(id); route != nil {
			route.remove()
		}
	}
	for _, l := range d.layers {
		for i := len(l.routes) - 1; i >= 0; i-- {
			if route := l.routes[i]; route.initiallyTraverses(hop{id: r.id, resource: true}) {
				route.remove()
			}
		}
	}
	for b := range r.bases {
		d.ResourceByID(b).uppers.remove(r.id)
	}
	d.NodeByID(r.hostID).resources.remove(r.id)
	d.resources = removeFromList(d.resources, r.index)
	d.debug("resource removed", logging.ElementID("resource", r.id), logging.String("type", r.typ))
	d.unregister(r)
}
