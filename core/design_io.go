package core

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang/snappy"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/netdesign/model"
)

// Format is an on-disk encoding of a design document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	// FormatCompressed is JSON compressed with snappy.
	FormatCompressed
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCompressed:
		return "ndz"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatForPath picks the format from the file extension: .json, .yaml or
// .yml, and .ndz.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".ndz":
		return FormatCompressed, nil
	default:
		return FormatJSON, opErr("FormatForPath", ErrInvalidArgument, "unknown design file extension %q", filepath.Ext(path))
	}
}

// ParseFormat maps "json", "yaml"/"yml" and "ndz" to a Format.
func ParseFormat(s string) (Format, error) {
	return FormatForPath("." + s)
}

var docValidator = validator.New()

func ioErr(op string, sentinel, cause error) error {
	return &DomainError{Op: op, ID: noID, Cause: fmt.Errorf("%w: %w", sentinel, cause)}
}

// Save writes d to w as a version 2 document.
func Save(d *Design, w io.Writer, f Format) error {
	const op = "Save"
	if d == nil {
		return opErr(op, ErrInvalidArgument, "nil design")
	}
	doc := d.document()
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(doc)
	case FormatCompressed:
		data, err = json.Marshal(doc)
		if err == nil {
			data = snappy.Encode(nil, data)
		}
	default:
		return opErr(op, ErrInvalidArgument, "unknown format %s", f)
	}
	if err != nil {
		return ioErr(op, ErrFormat, err)
	}
	if _, err := w.Write(data); err != nil {
		return ioErr(op, ErrIO, err)
	}
	return nil
}

// Load reads a document of any supported version from r. Options and
// logger are applied to the returned design; the document's own options
// win for numeric tolerances.
func Load(r io.Reader, f Format, opts ...Option) (*Design, error) {
	const op = "Load"
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioErr(op, ErrIO, err)
	}
	var unmarshal, decode func([]byte, any) error
	switch f {
	case FormatJSON:
		unmarshal, decode = json.Unmarshal, decodeJSON
	case FormatYAML:
		unmarshal, decode = yaml.Unmarshal, decodeYAML
	case FormatCompressed:
		if data, err = snappy.Decode(nil, data); err != nil {
			return nil, ioErr(op, ErrFormat, err)
		}
		unmarshal, decode = json.Unmarshal, decodeJSON
	default:
		return nil, opErr(op, ErrInvalidArgument, "unknown format %s", f)
	}

	var hdr documentHeader
	if err := unmarshal(data, &hdr); err != nil {
		return nil, ioErr(op, ErrFormat, err)
	}
	if hdr.Format != documentFormat {
		return nil, opErr(op, ErrFormat, "not a design document (format %q)", hdr.Format)
	}
	var doc *designDoc
	switch hdr.Version {
	case 1:
		var v1 designDocV1
		if err := decodeStrict(decode, data, &v1); err != nil {
			return nil, ioErr(op, ErrFormat, err)
		}
		doc = upgradeV1(&v1)
	case documentVersion:
		doc = new(designDoc)
		if err := decodeStrict(decode, data, doc); err != nil {
			return nil, ioErr(op, ErrFormat, err)
		}
	default:
		return nil, opErr(op, ErrFormat, "unsupported document version %d", hdr.Version)
	}

	d := newEmpty()
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if err := d.restore(doc); err != nil {
		var de *DomainError
		if errors.As(err, &de) && errors.Is(err, ErrFormat) {
			return nil, err
		}
		return nil, ioErr(op, ErrFormat, err)
	}
	return d, nil
}

// decodeStrict decodes data into v, rejecting unknown fields, and validates
// the result.
func decodeStrict(decode func([]byte, any) error, data []byte, v any) error {
	if err := decode(data, v); err != nil {
		return err
	}
	return docValidator.Struct(v)
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// SaveFile writes d to path in the format implied by its extension.
func SaveFile(d *Design, path string) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Save(d, &buf, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return ioErr("SaveFile", ErrIO, err)
	}
	return nil
}

// LoadFile reads the design stored at path.
func LoadFile(path string, opts ...Option) (*Design, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, ioErr("LoadFile", ErrIO, err)
	}
	defer file.Close()
	return Load(file, f, opts...)
}

//
// ---------- Encoding ----------
//

func attrsDoc(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

func (d *Design) document() *designDoc {
	doc := &designDoc{
		Format:       documentFormat,
		Version:      documentVersion,
		Name:         d.name,
		Description:  d.description,
		Attributes:   attrsDoc(d.attrs),
		NextID:       d.nextID,
		DefaultLayer: d.defaultLayerID,
		Options: optionsDoc{
			Epsilon:       d.opts.Epsilon,
			CyclePolicy:   d.opts.CyclePolicy.String(),
			MaxIterations: d.opts.MaxIterations,
		},
	}
	for _, n := range d.nodes {
		nd := nodeDoc{ID: n.id, Name: n.name, Up: n.up, Attributes: attrsDoc(n.attrs)}
		if len(n.positions) > 0 {
			nd.Positions = make(map[string]pointDoc, len(n.positions))
			for k, p := range n.positions {
				nd.Positions[k] = pointDoc{X: p.X, Y: p.Y}
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, r := range d.resources {
		rd := resourceDoc{
			ID: r.id, Type: r.typ, Name: r.name, Host: r.hostID, Capacity: r.capacity,
			Units: r.units, ProcessingTimeMs: r.processingTimeMs, Attributes: attrsDoc(r.attrs),
		}
		for _, b := range sortedKeys(r.bases) {
			rd.Bases = append(rd.Bases, baseDoc{Resource: b, Occupation: r.bases[b]})
		}
		doc.Resources = append(doc.Resources, rd)
	}
	for _, s := range d.srgs {
		sd := srgDoc{ID: s.id, MTTFHours: s.mttfHours, MTTRHours: s.mttrHours, Attributes: attrsDoc(s.attrs)}
		for _, id := range s.nodes.ToArray() {
			sd.Nodes = append(sd.Nodes, int64(id))
		}
		for _, id := range s.links.ToArray() {
			sd.Links = append(sd.Links, int64(id))
		}
		doc.SRGs = append(doc.SRGs, sd)
	}
	for _, l := range d.layers {
		doc.Layers = append(doc.Layers, l.document())
	}
	return doc
}

func hopsDoc(hops []hop, occ []float64) []hopDoc {
	out := make([]hopDoc, len(hops))
	for i, h := range hops {
		out[i] = hopDoc{Resource: h.resource, ID: h.id, Occupation: occ[i]}
	}
	return out
}

func (l *Layer) document() layerDoc {
	ld := layerDoc{
		ID: l.id, Name: l.name, Description: l.description,
		DemandUnits: l.demandUnits, CapacityUnits: l.capacityUnits,
		RoutingType: l.routingType.String(), Attributes: attrsDoc(l.attrs),
	}
	for _, link := range l.links {
		ld.Links = append(ld.Links, linkDoc{
			ID: link.id, Origin: link.originID, Destination: link.destID,
			Capacity: link.capacity, LengthKm: link.lengthKm, PropagationSpeed: link.propSpeed,
			Up: link.up, Attributes: attrsDoc(link.attrs),
		})
	}
	for _, dem := range l.demands {
		dd := demandDoc{
			ID: dem.id, Ingress: dem.ingressID, Egress: dem.egressID, Offered: dem.offered,
			ServiceChain: slices.Clone(dem.serviceChain), MaxLatencyMs: dem.maxLatencyMs,
			Attributes: attrsDoc(dem.attrs),
		}
		if dem.coupledLinkID != noID {
			id := dem.coupledLinkID
			dd.CoupledLink = &id
		}
		ld.Demands = append(ld.Demands, dd)
	}
	for _, r := range l.routes {
		ld.Routes = append(ld.Routes, routeDoc{
			ID: r.id, Demand: r.demandID, Carried: r.carried,
			Path:           hopsDoc(r.hops, r.occupation),
			InitialCarried: r.initialCarried,
			InitialPath:    hopsDoc(r.initialHops, r.initialOccupation),
			Backups:        slices.Clone(r.backups),
			Attributes:     attrsDoc(r.attrs),
		})
	}
	keys := slices.SortedFunc(maps.Keys(l.rules), func(a, b ruleKey) int {
		return cmp.Or(cmp.Compare(a.demand, b.demand), cmp.Compare(a.link, b.link))
	})
	for _, k := range keys {
		ld.ForwardingRules = append(ld.ForwardingRules, ruleDoc{Demand: k.demand, Link: k.link, Fraction: l.rules[k]})
	}
	for _, md := range l.mdemands {
		mdd := mdemandDoc{
			ID: md.id, Ingress: md.ingressID, Egress: md.egress.sorted(),
			Offered: md.offered, Attributes: attrsDoc(md.attrs),
		}
		for _, egress := range sortedKeys(md.coupledLinks) {
			mdd.CoupledLinks = append(mdd.CoupledLinks, md.coupledLinks[egress])
		}
		ld.MulticastDemands = append(ld.MulticastDemands, mdd)
	}
	for _, t := range l.trees {
		ld.MulticastTrees = append(ld.MulticastTrees, treeDoc{
			ID: t.id, Demand: t.demandID, Carried: t.carried, Occupied: t.occupied,
			Links: t.links.sorted(), InitialLinks: t.initialLinks.sorted(),
			Attributes: attrsDoc(t.attrs),
		})
	}
	return ld
}

//
// ---------- Decoding ----------
//

// upgradeV1 lifts a single-layer version 1 document to version 2. The layer
// gets the first id above every element id of the document.
func upgradeV1(v1 *designDocV1) *designDoc {
	var maxID int64 = -1
	bump := func(id int64) {
		maxID = max(maxID, id)
	}
	for _, n := range v1.Nodes {
		bump(n.ID)
	}
	for _, l := range v1.Links {
		bump(l.ID)
	}
	for _, dem := range v1.Demands {
		bump(dem.ID)
	}
	for _, r := range v1.Routes {
		bump(r.ID)
	}
	for _, s := range v1.SRGs {
		bump(s.ID)
	}
	layerID := maxID + 1
	defaults := model.DefaultOptions()
	doc := &designDoc{
		Format:       documentFormat,
		Version:      documentVersion,
		Name:         v1.Name,
		NextID:       layerID + 1,
		DefaultLayer: layerID,
		Options: optionsDoc{
			Epsilon:       defaults.Epsilon,
			CyclePolicy:   defaults.CyclePolicy.String(),
			MaxIterations: defaults.MaxIterations,
		},
		SRGs: v1.SRGs,
	}
	for _, n := range v1.Nodes {
		doc.Nodes = append(doc.Nodes, nodeDoc{
			ID: n.ID, Name: n.Name, Up: !n.Down,
			Positions: map[string]pointDoc{model.DefaultLayout: {X: n.X, Y: n.Y}},
		})
	}
	layer := layerDoc{
		ID: layerID, Name: "Layer 0", DemandUnits: "Gbps", CapacityUnits: "Gbps",
		RoutingType: model.SourceRouting.String(),
	}
	for _, l := range v1.Links {
		layer.Links = append(layer.Links, linkDoc{
			ID: l.ID, Origin: l.Origin, Destination: l.Destination, Capacity: l.Capacity,
			LengthKm: l.LengthKm, PropagationSpeed: DefaultPropagationSpeedKmPerSec, Up: !l.Down,
		})
	}
	for _, dem := range v1.Demands {
		layer.Demands = append(layer.Demands, demandDoc{ID: dem.ID, Ingress: dem.Ingress, Egress: dem.Egress, Offered: dem.Offered})
	}
	for _, r := range v1.Routes {
		path := make([]hopDoc, len(r.Links))
		for i, id := range r.Links {
			path[i] = hopDoc{ID: id, Occupation: r.Occupied}
		}
		layer.Routes = append(layer.Routes, routeDoc{
			ID: r.ID, Demand: r.Demand, Carried: r.Carried, Path: path,
			InitialCarried: r.Carried, InitialPath: slices.Clone(path),
		})
	}
	doc.Layers = []layerDoc{layer}
	return doc
}

func restoreAttrs(e Element, attrs map[string]string) {
	b := e.base()
	b.attrs = make(map[string]string, len(attrs))
	maps.Copy(b.attrs, attrs)
}

// restore rebuilds the design described by doc into the empty design d.
// Elements are created through the same validating constructors as the
// public API, with their persisted ids.
func (d *Design) restore(doc *designDoc) error {
	const op = "Load"
	policy, err := model.ParseCyclePolicy(doc.Options.CyclePolicy)
	if err != nil {
		return opErr(op, ErrFormat, "%v", err)
	}
	opts := model.Options{Epsilon: doc.Options.Epsilon, CyclePolicy: policy, MaxIterations: doc.Options.MaxIterations}
	if err := opts.Validate(); err != nil {
		return opErr(op, ErrFormat, "%v", err)
	}
	d.opts = opts
	d.name = doc.Name
	d.description = doc.Description
	maps.Copy(d.attrs, doc.Attributes)

	for _, ld := range doc.Layers {
		rt, err := model.ParseRoutingType(ld.RoutingType)
		if err != nil {
			return opErr(op, ErrFormat, "%v", err)
		}
		l, err := d.addLayer(ld.ID, ld.Name, ld.Description, ld.DemandUnits, ld.CapacityUnits, rt)
		if err != nil {
			return err
		}
		restoreAttrs(l, ld.Attributes)
	}
	if d.LayerByID(doc.DefaultLayer) == nil {
		return opErr(op, ErrFormat, "default layer %d not found", doc.DefaultLayer)
	}
	d.defaultLayerID = doc.DefaultLayer

	for _, nd := range doc.Nodes {
		positions := make(map[string]model.Point, len(nd.Positions))
		for k, p := range nd.Positions {
			positions[k] = model.Point{X: p.X, Y: p.Y}
		}
		n, err := d.addNode(nd.ID, nd.Name, positions, nd.Up)
		if err != nil {
			return err
		}
		restoreAttrs(n, nd.Attributes)
	}
	if err := d.restoreResources(doc.Resources); err != nil {
		return err
	}
	for i, ld := range doc.Layers {
		if err := d.restoreLayer(d.layers[i], ld); err != nil {
			return err
		}
	}
	if err := d.restoreCouplingsAndBackups(doc.Layers); err != nil {
		return err
	}
	if err := d.restoreSRGs(doc.SRGs); err != nil {
		return err
	}
	if doc.NextID < d.nextID {
		return opErr(op, ErrFormat, "next id %d is not above every element id", doc.NextID)
	}
	d.nextID = doc.NextID
	d.touch()
	if err := d.VerifyCaches(); err != nil {
		return opErr(op, ErrFormat, "%v", err)
	}
	return nil
}

func (d *Design) restoreResources(docs []resourceDoc) error {
	const op = "Load"
	for _, rd := range docs {
		host := d.NodeByID(rd.Host)
		if host == nil {
			return opErr(op, ErrFormat, "resource %d host %d not found", rd.ID, rd.Host)
		}
		r, err := d.addResource(rd.ID, rd.Type, rd.Name, host, rd.Capacity, rd.Units, nil, rd.ProcessingTimeMs)
		if err != nil {
			return err
		}
		restoreAttrs(r, rd.Attributes)
	}
	for i, rd := range docs {
		if len(rd.Bases) == 0 {
			continue
		}
		r := d.resources[i]
		bases := make(map[*Resource]float64, len(rd.Bases))
		for _, b := range rd.Bases {
			base := d.ResourceByID(b.Resource)
			if base == nil {
				return opErr(op, ErrFormat, "resource %d base %d not found", rd.ID, b.Resource)
			}
			bases[base] = b.Occupation
		}
		resolved, err := d.validateBases(op, r, r.hostID, bases)
		if err != nil {
			return err
		}
		r.bases = resolved
		for b := range resolved {
			d.ResourceByID(b).uppers.add(r.id)
		}
	}
	return nil
}

func (d *Design) resolveHops(docs []hopDoc) ([]PathElement, []float64, error) {
	path := make([]PathElement, len(docs))
	occ := make([]float64, len(docs))
	for i, h := range docs {
		var e PathElement
		if h.Resource {
			if r := d.ResourceByID(h.ID); r != nil {
				e = r
			}
		} else if l := d.LinkByID(h.ID); l != nil {
			e = l
		}
		if e == nil {
			return nil, nil, opErr("Load", ErrFormat, "path element %d not found", h.ID)
		}
		path[i] = e
		occ[i] = h.Occupation
	}
	return path, occ, nil
}

func (d *Design) restoreLayer(l *Layer, ld layerDoc) error {
	const op = "Load"
	for _, lk := range ld.Links {
		origin, dest := d.NodeByID(lk.Origin), d.NodeByID(lk.Destination)
		if origin == nil || dest == nil {
			return opErr(op, ErrFormat, "link %d end node not found", lk.ID)
		}
		link, err := d.addLink(lk.ID, origin, dest, lk.Capacity, lk.LengthKm, lk.PropagationSpeed, l, lk.Up)
		if err != nil {
			return err
		}
		restoreAttrs(link, lk.Attributes)
	}
	for _, dd := range ld.Demands {
		in, eg := d.NodeByID(dd.Ingress), d.NodeByID(dd.Egress)
		if in == nil || eg == nil {
			return opErr(op, ErrFormat, "demand %d end node not found", dd.ID)
		}
		dem, err := d.addDemand(dd.ID, in, eg, dd.Offered, dd.ServiceChain, dd.MaxLatencyMs, l)
		if err != nil {
			return err
		}
		restoreAttrs(dem, dd.Attributes)
	}
	for _, rd := range ld.Routes {
		dem := d.DemandByID(rd.Demand)
		if dem == nil || dem.layerID != l.id {
			return opErr(op, ErrFormat, "route %d demand %d not found in layer %d", rd.ID, rd.Demand, l.id)
		}
		if err := d.checkRestoredID(op, rd.ID); err != nil {
			return err
		}
		initPath, initOcc, err := d.resolveHops(rd.InitialPath)
		if err != nil {
			return err
		}
		initHops, initOcc, err := d.validateRoute(op, dem, rd.InitialCarried, initPath, initOcc)
		if err != nil {
			return err
		}
		path, occ, err := d.resolveHops(rd.Path)
		if err != nil {
			return err
		}
		hops, occ, err := d.validateRoute(op, dem, rd.Carried, path, occ)
		if err != nil {
			return err
		}
		r := d.attachRoute(rd.ID, dem, rd.Carried, hops, occ)
		r.initialHops, r.initialOccupation, r.initialCarried = initHops, initOcc, rd.InitialCarried
		restoreAttrs(r, rd.Attributes)
	}
	if len(ld.ForwardingRules) > 0 {
		if l.routingType != model.HopByHopRouting {
			return opErr(op, ErrFormat, "forwarding rules in source-routed layer %d", l.id)
		}
		rules := make(map[ruleKey]float64, len(ld.ForwardingRules))
		for _, rd := range ld.ForwardingRules {
			dem, link := d.DemandByID(rd.Demand), d.LinkByID(rd.Link)
			if dem == nil || link == nil || dem.layerID != l.id || link.layerID != l.id {
				return opErr(op, ErrFormat, "forwarding rule (%d, %d) does not resolve in layer %d", rd.Demand, rd.Link, l.id)
			}
			rules[ruleKey{demand: rd.Demand, link: rd.Link}] = rd.Fraction
		}
		for _, dem := range l.demands {
			if err := checkRuleSet(d, dem, rules, op); err != nil {
				return err
			}
		}
		l.rules = rules
	}
	for _, md := range ld.MulticastDemands {
		in := d.NodeByID(md.Ingress)
		if in == nil {
			return opErr(op, ErrFormat, "multicast demand %d ingress not found", md.ID)
		}
		egress := make([]*Node, len(md.Egress))
		for i, id := range md.Egress {
			if egress[i] = d.NodeByID(id); egress[i] == nil {
				return opErr(op, ErrFormat, "multicast demand %d egress %d not found", md.ID, id)
			}
		}
		m, err := d.addMulticastDemand(md.ID, in, egress, md.Offered, l)
		if err != nil {
			return err
		}
		restoreAttrs(m, md.Attributes)
	}
	for _, td := range ld.MulticastTrees {
		md := d.MulticastDemandByID(td.Demand)
		if md == nil || md.layerID != l.id {
			return opErr(op, ErrFormat, "tree %d multicast demand %d not found in layer %d", td.ID, td.Demand, l.id)
		}
		links, err := d.linksByID(td.Links)
		if err != nil {
			return err
		}
		initial, err := d.linksByID(td.InitialLinks)
		if err != nil {
			return err
		}
		t, err := d.addMulticastTree(td.ID, md, td.Carried, td.Occupied, links, initial)
		if err != nil {
			return err
		}
		restoreAttrs(t, td.Attributes)
	}
	return nil
}

func (d *Design) linksByID(ids []int64) ([]*Link, error) {
	out := make([]*Link, len(ids))
	for i, id := range ids {
		if out[i] = d.LinkByID(id); out[i] == nil {
			return nil, opErr("Load", ErrFormat, "link %d not found", id)
		}
	}
	return out, nil
}

func (d *Design) restoreCouplingsAndBackups(layers []layerDoc) error {
	const op = "Load"
	for _, ld := range layers {
		for _, dd := range ld.Demands {
			if dd.CoupledLink == nil {
				continue
			}
			dem, link := d.DemandByID(dd.ID), d.LinkByID(*dd.CoupledLink)
			if link == nil {
				return opErr(op, ErrFormat, "demand %d coupled link %d not found", dd.ID, *dd.CoupledLink)
			}
			if link.originID != dem.ingressID || link.destID != dem.egressID {
				return opErr(op, ErrFormat, "demand %d and coupled link %d join different nodes", dd.ID, link.id)
			}
			if err := d.checkCoupling(op, dem.layerID, link); err != nil {
				return err
			}
			dem.coupledLinkID = link.id
			link.coupledDemandID = dem.id
		}
		for _, mdd := range ld.MulticastDemands {
			if len(mdd.CoupledLinks) == 0 {
				continue
			}
			md := d.MulticastDemandByID(mdd.ID)
			for _, lid := range mdd.CoupledLinks {
				link := d.LinkByID(lid)
				if link == nil || link.originID != md.ingressID || !md.egress.has(link.destID) {
					return opErr(op, ErrFormat, "multicast demand %d coupled link %d invalid", mdd.ID, lid)
				}
				if _, dup := md.coupledLinks[link.destID]; dup {
					return opErr(op, ErrFormat, "multicast demand %d has two coupled links to node %d", mdd.ID, link.destID)
				}
				if err := d.checkCoupling(op, md.layerID, link); err != nil {
					return err
				}
				md.coupledLinks[link.destID] = link.id
				link.coupledMDemandID = md.id
			}
		}
		for _, rd := range ld.Routes {
			r := d.RouteByID(rd.ID)
			for _, b := range rd.Backups {
				backup := d.RouteByID(b)
				if backup == nil {
					return opErr(op, ErrFormat, "route %d backup %d not found", rd.ID, b)
				}
				if err := r.AddBackupRoute(backup); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Design) restoreSRGs(docs []srgDoc) error {
	const op = "Load"
	for _, sd := range docs {
		s, err := d.addSRG(sd.ID, sd.MTTFHours, sd.MTTRHours)
		if err != nil {
			return err
		}
		restoreAttrs(s, sd.Attributes)
		for _, id := range sd.Nodes {
			n := d.NodeByID(id)
			if n == nil {
				return opErr(op, ErrFormat, "srg %d node %d not found", sd.ID, id)
			}
			s.nodes.Add(uint64(id))
			n.srgs.add(s.id)
		}
		for _, id := range sd.Links {
			l := d.LinkByID(id)
			if l == nil {
				return opErr(op, ErrFormat, "srg %d link %d not found", sd.ID, id)
			}
			s.links.Add(uint64(id))
			l.srgs.add(s.id)
		}
	}
	return nil
}
