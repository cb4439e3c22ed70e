// Package core implements the multi-layer network design model: an arena of
// layers, nodes, links, demands, routes, forwarding rules, multicast demands
// and trees, resources and shared-risk groups, addressed by stable integer
// ids, together with the derived traffic state, the consistency checker and
// structural copy/equality.
//
// A Design is not safe for concurrent use. One owner mutates it at a time;
// callers needing isolation work on Copy() and swap the result in with
// AssignFrom.
package core

import (
	"context"
	"maps"

	"github.com/google/uuid"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// Design is the in-memory network design.
type Design struct {
	instanceID  uuid.UUID
	name        string
	description string
	attrs       map[string]string

	opts model.Options
	log  logging.Logger

	nextID   int64
	epoch    uint64
	elements map[int64]Element

	layers         []*Layer
	defaultLayerID int64
	nodes          []*Node
	resources      []*Resource
	srgs           []*SRG

	traffic *trafficState
}

// Option customises Design construction.
type Option func(*Design)

// WithOptions overrides the numeric tolerances and cycle policy.
func WithOptions(o model.Options) Option {
	return func(d *Design) {
		if o.Validate() == nil {
			d.opts = o
		}
	}
}

// WithLogger attaches a structured logger for cascade and consistency events.
func WithLogger(l logging.Logger) Option {
	return func(d *Design) {
		if l != nil {
			d.log = l
		}
	}
}

// WithName sets the design name.
func WithName(name string) Option {
	return func(d *Design) { d.name = name }
}

// New creates a design holding a single, default, source-routed layer.
func New(opts ...Option) *Design {
	d := newEmpty()
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	layer, _ := d.addLayer(noID, "Layer 0", "", "Gbps", "Gbps", model.SourceRouting)
	d.defaultLayerID = layer.id
	return d
}

func newEmpty() *Design {
	return &Design{
		instanceID:     uuid.New(),
		attrs:          make(map[string]string),
		opts:           model.DefaultOptions(),
		log:            logging.Noop(),
		elements:       make(map[int64]Element),
		defaultLayerID: noID,
	}
}

// InstanceID identifies this design instance. Copies get a fresh id; it is
// never part of structural equality.
func (d *Design) InstanceID() uuid.UUID { return d.instanceID }

// Options returns the tolerances and policies in effect.
func (d *Design) Options() model.Options { return d.opts }

// SetOptions replaces the tolerances and policies.
func (d *Design) SetOptions(o model.Options) error {
	if err := o.Validate(); err != nil {
		return opErr("SetOptions", ErrInvalidArgument, "%v", err)
	}
	d.opts = o
	d.touch()
	return nil
}

func (d *Design) Name() string        { return d.name }
func (d *Design) SetName(name string) { d.name = name }

func (d *Design) Description() string        { return d.description }
func (d *Design) SetDescription(desc string) { d.description = desc }

func (d *Design) Attribute(key string) (string, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

func (d *Design) Attributes() map[string]string { return maps.Clone(d.attrs) }

func (d *Design) SetAttribute(key, value string) error {
	if key == "" {
		return opErr("SetAttribute", ErrInvalidArgument, "empty attribute key")
	}
	d.attrs[key] = value
	return nil
}

func (d *Design) RemoveAttribute(key string) { delete(d.attrs, key) }

// Epoch is bumped by every mutation that can change derived traffic state.
func (d *Design) Epoch() uint64 { return d.epoch }

// touch invalidates every derived quantity.
func (d *Design) touch() { d.epoch++ }

//
// ---------- Registry ----------
//

// newID allocates a fresh id, or reserves a restored one when loading.
func (d *Design) newID(restored int64) int64 {
	if restored == noID {
		id := d.nextID
		d.nextID++
		return id
	}
	if restored >= d.nextID {
		d.nextID = restored + 1
	}
	return restored
}

func (d *Design) checkRestoredID(op string, restored int64) error {
	if restored == noID {
		return nil
	}
	if restored < 0 {
		return opErr(op, ErrFormat, "negative id %d", restored)
	}
	if _, taken := d.elements[restored]; taken {
		return opErr(op, ErrFormat, "duplicate id %d", restored)
	}
	return nil
}

func (d *Design) register(e Element) {
	d.elements[e.ID()] = e
	d.touch()
}

func (d *Design) unregister(e Element) {
	delete(d.elements, e.ID())
	e.base().d = nil
	d.touch()
}

// owns validates that e is a live element of this design.
func (d *Design) owns(op string, e Element) error {
	if e == nil || isNilElement(e) {
		return opErr(op, ErrInvalidArgument, "nil element")
	}
	b := e.base()
	if b.d == nil {
		return domainErr(op, e, ErrElementRemoved)
	}
	if b.d != d {
		return domainErr(op, e, ErrWrongDesign)
	}
	return nil
}

func isNilElement(e Element) bool {
	switch v := e.(type) {
	case *Layer:
		return v == nil
	case *Node:
		return v == nil
	case *Link:
		return v == nil
	case *Demand:
		return v == nil
	case *Route:
		return v == nil
	case *MulticastDemand:
		return v == nil
	case *MulticastTree:
		return v == nil
	case *Resource:
		return v == nil
	case *SRG:
		return v == nil
	}
	return false
}

// ElementByID returns the live element with the given id.
func (d *Design) ElementByID(id int64) (Element, bool) {
	e, ok := d.elements[id]
	return e, ok
}

func lookup[T Element](d *Design, id int64) T {
	var zero T
	if d == nil {
		return zero
	}
	e, ok := d.elements[id]
	if !ok {
		return zero
	}
	t, ok := e.(T)
	if !ok {
		return zero
	}
	return t
}

func (d *Design) LayerByID(id int64) *Layer                     { return lookup[*Layer](d, id) }
func (d *Design) NodeByID(id int64) *Node                       { return lookup[*Node](d, id) }
func (d *Design) LinkByID(id int64) *Link                       { return lookup[*Link](d, id) }
func (d *Design) DemandByID(id int64) *Demand                   { return lookup[*Demand](d, id) }
func (d *Design) RouteByID(id int64) *Route                     { return lookup[*Route](d, id) }
func (d *Design) MulticastDemandByID(id int64) *MulticastDemand { return lookup[*MulticastDemand](d, id) }
func (d *Design) MulticastTreeByID(id int64) *MulticastTree     { return lookup[*MulticastTree](d, id) }
func (d *Design) ResourceByID(id int64) *Resource               { return lookup[*Resource](d, id) }
func (d *Design) SRGByID(id int64) *SRG                         { return lookup[*SRG](d, id) }

// NextElementID returns the id the next created element will receive.
func (d *Design) NextElementID() int64 { return d.nextID }

//
// ---------- Listings ----------
//

func (d *Design) Layers() []*Layer       { return append([]*Layer(nil), d.layers...) }
func (d *Design) Nodes() []*Node         { return append([]*Node(nil), d.nodes...) }
func (d *Design) Resources() []*Resource { return append([]*Resource(nil), d.resources...) }
func (d *Design) SRGs() []*SRG           { return append([]*SRG(nil), d.srgs...) }

func (d *Design) NumberOfLayers() int    { return len(d.layers) }
func (d *Design) NumberOfNodes() int     { return len(d.nodes) }
func (d *Design) NumberOfResources() int { return len(d.resources) }
func (d *Design) NumberOfSRGs() int      { return len(d.srgs) }

// DefaultLayer returns the layer used when callers do not name one.
func (d *Design) DefaultLayer() *Layer { return d.LayerByID(d.defaultLayerID) }

// SetDefaultLayer marks layer as the default one.
func (d *Design) SetDefaultLayer(layer *Layer) error {
	if err := d.owns("SetDefaultLayer", layer); err != nil {
		return err
	}
	d.defaultLayerID = layer.id
	return nil
}

// LayerByName returns the first layer with the given name, or nil.
func (d *Design) LayerByName(name string) *Layer {
	for _, l := range d.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

// NodeByName returns the first node with the given name, or nil.
func (d *Design) NodeByName(name string) *Node {
	for _, n := range d.nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// ResourcesOfType returns the resources with the given type, in index order.
func (d *Design) ResourcesOfType(typ string) []*Resource {
	var out []*Resource
	for _, r := range d.resources {
		if r.typ == typ {
			out = append(out, r)
		}
	}
	return out
}

// Links returns the links of the layer, or of the default layer when nil.
func (d *Design) Links(layer *Layer) []*Link {
	if l := d.resolveLayer(layer); l != nil {
		return l.Links()
	}
	return nil
}

// Demands returns the demands of the layer, or of the default layer when nil.
func (d *Design) Demands(layer *Layer) []*Demand {
	if l := d.resolveLayer(layer); l != nil {
		return l.Demands()
	}
	return nil
}

// Routes returns the routes of the layer, or of the default layer when nil.
func (d *Design) Routes(layer *Layer) []*Route {
	if l := d.resolveLayer(layer); l != nil {
		return l.Routes()
	}
	return nil
}

// MulticastDemands returns the multicast demands of the layer, or of the
// default layer when nil.
func (d *Design) MulticastDemands(layer *Layer) []*MulticastDemand {
	if l := d.resolveLayer(layer); l != nil {
		return l.MulticastDemands()
	}
	return nil
}

// MulticastTrees returns the multicast trees of the layer, or of the default
// layer when nil.
func (d *Design) MulticastTrees(layer *Layer) []*MulticastTree {
	if l := d.resolveLayer(layer); l != nil {
		return l.MulticastTrees()
	}
	return nil
}

func (d *Design) resolveLayer(layer *Layer) *Layer {
	if layer == nil {
		return d.DefaultLayer()
	}
	if layer.d != d {
		return nil
	}
	return layer
}

// Summary digests the design for metrics and the API.
func (d *Design) Summary() model.Summary {
	s := model.Summary{
		Name:      d.name,
		Layers:    len(d.layers),
		Nodes:     len(d.nodes),
		Resources: len(d.resources),
		SRGs:      len(d.srgs),
	}
	eps := d.opts.Epsilon
	for _, n := range d.nodes {
		if !n.up {
			s.DownNodes++
		}
	}
	for _, l := range d.layers {
		s.Links += len(l.links)
		s.Demands += len(l.demands)
		s.Routes += len(l.routes)
		s.ForwardingRules += len(l.rules)
		s.MulticastDemands += len(l.mdemands)
		s.MulticastTrees += len(l.trees)
		for _, link := range l.links {
			if !link.up {
				s.DownLinks++
			}
			if link.OccupiedCapacity() > link.Capacity()+eps {
				s.OversubscribedLinks++
			}
		}
		for _, dem := range l.demands {
			s.OfferedTraffic += dem.offered
			s.CarriedTraffic += dem.CarriedTraffic()
		}
		for _, md := range l.mdemands {
			s.OfferedTraffic += md.offered
			s.CarriedTraffic += md.CarriedTraffic()
		}
	}
	s.BlockedTraffic = s.OfferedTraffic - s.CarriedTraffic
	if s.BlockedTraffic < 0 {
		s.BlockedTraffic = 0
	}
	for _, r := range d.resources {
		if r.IsOversubscribed() {
			s.OversubscribedResources++
		}
	}
	return s
}

func (d *Design) debug(msg string, fields ...logging.Field) {
	d.log.Debug(context.Background(), msg, fields...)
}
