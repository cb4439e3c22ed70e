package core

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signalsfoundry/netdesign/model"
)

const opKinds = 16

func pick[T any](list []T, sel int) (T, bool) {
	var zero T
	if len(list) == 0 {
		return zero, false
	}
	return list[sel%len(list)], true
}

// applyOp runs one randomly chosen mutation. Rejected mutations are part of
// the exercise: a failed call must leave the caches consistent too.
func applyOp(d *Design, code int) {
	sel := code / opKinds
	layers := d.Layers()
	layer, _ := pick(layers, sel)
	switch code % opKinds {
	case 0:
		_, _ = d.AddNode("n", model.Point{X: float64(sel)})
	case 1:
		nodes := d.Nodes()
		a, ok := pick(nodes, sel)
		b, ok2 := pick(nodes, sel/7+1)
		if ok && ok2 {
			_, _ = d.AddLink(a, b, float64(sel%50), 10, DefaultPropagationSpeedKmPerSec, layer)
		}
	case 2:
		if l, ok := pick(layer.Links(), sel); ok {
			dem, err := d.AddDemand(l.OriginNode(), l.DestinationNode(), float64(sel%20), layer)
			if err == nil && layer.RoutingType() == model.SourceRouting {
				_, _ = d.AddRouteOverLinks(dem, float64(sel%20), float64(sel%30), []*Link{l})
			} else if err == nil {
				_ = dem.SetForwardingRule(l, 1)
			}
		}
	case 3:
		if n, ok := pick(d.Nodes(), sel); ok {
			_ = n.Remove()
		}
	case 4:
		if l, ok := pick(layer.Links(), sel); ok {
			_ = l.SetFailureState(sel%2 == 0)
		}
	case 5:
		if l, ok := pick(layer.Links(), sel); ok {
			_ = l.Remove()
		}
	case 6:
		if n, ok := pick(d.Nodes(), sel); ok {
			bases := map[*Resource]float64{}
			if hosted, ok := pick(n.Resources(), sel); ok {
				bases[hosted] = float64(sel % 5)
			}
			_, _ = d.AddResource("R", "r", n, 10, "u", bases, 0)
		}
	case 7:
		if r, ok := pick(d.Resources(), sel); ok {
			_ = r.Remove()
		}
	case 8:
		if l, ok := pick(layer.Links(), sel); ok {
			md, err := d.AddMulticastDemand(l.OriginNode(), []*Node{l.DestinationNode()}, 1, layer)
			if err == nil {
				_, _ = d.AddMulticastTree(md, 1, 2, []*Link{l})
			}
		}
	case 9:
		s, ok := pick(d.SRGs(), sel)
		if !ok || sel%3 == 0 {
			s, _ = d.AddSRG(float64(sel), 1)
		}
		if l, ok := pick(layer.Links(), sel); ok {
			_ = s.AddLink(l)
		}
		if sel%4 == 0 {
			_ = s.SetAsFailed()
		}
	case 10:
		if len(layers) < 3 && sel%2 == 0 {
			_, _ = d.AddLayer("L", "", model.RoutingType(sel/2%2))
		} else if dem, ok := pick(layer.Demands(), sel); ok {
			if upper, ok := pick(layers, sel/3); ok {
				_, _ = dem.CoupleToNewLinkCreated(upper)
			}
		}
	case 11:
		if sel%5 == 0 {
			_ = layer.Remove()
		} else if dem, ok := pick(layer.Demands(), sel); ok {
			_ = dem.Remove()
		}
	case 12:
		_ = layer.SetRoutingType(model.RoutingType(1 - int(layer.RoutingType())))
	case 13:
		// multi-hop and possibly cyclic forwarding
		if dem, ok := pick(layer.Demands(), sel); ok {
			if l, ok := pick(layer.Links(), sel/3); ok {
				_ = dem.SetForwardingRule(l, float64(sel%3)/2)
			}
		}
	case 14:
		if r, ok := pick(layer.Routes(), sel); ok {
			if sel%3 == 0 {
				_ = r.SetPath(r.CarriedTrafficInNoFailureState(), r.InitialPath(), nil)
			} else if b, err := d.AddRoute(r.Demand(), float64(sel%10), r.Path(), nil); err == nil {
				_ = r.AddBackupRoute(b)
			}
		}
	case 15:
		if dem, ok := pick(layer.Demands(), sel); ok {
			if res, ok := pick(dem.IngressNode().Resources(), sel); ok {
				_ = dem.SetServiceChain([]string{res.Type()})
				if l, ok := pick(dem.IngressNode().OutgoingLinks(layer), sel); ok {
					_, _ = d.AddRoute(dem, 1, []PathElement{res, l}, nil)
				}
			}
		}
	}
}

// newRandomDesign applies ops to an empty design and checks every cache,
// derived traffic included, after each step.
func newRandomDesign(ops []int) (*Design, bool) {
	opts := model.DefaultOptions()
	if len(ops) > 0 && ops[0]%2 == 1 {
		opts.CyclePolicy = model.CycleIterate
		opts.MaxIterations = 50
	}
	d := New(WithOptions(opts))
	for _, op := range ops {
		applyOp(d, op)
		_ = d.Summary()
		if d.VerifyCaches() != nil {
			return d, false
		}
	}
	return d, true
}

func TestRandomMutationsKeepCachesConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("caches stay consistent and checking is idempotent", prop.ForAll(
		func(ops []int) bool {
			d, ok := newRandomDesign(ops)
			if !ok {
				return false
			}
			epoch := d.Epoch()
			if d.VerifyCaches() != nil || d.VerifyCaches() != nil {
				return false
			}
			return d.Epoch() == epoch
		},
		gen.SliceOfN(80, gen.IntRange(0, 10_000)),
	))

	properties.Property("copy and persistence preserve structure", prop.ForAll(
		func(ops []int) bool {
			d, ok := newRandomDesign(ops)
			if !ok {
				return false
			}
			if !d.Copy().IsDeepCopy(d) {
				return false
			}
			var buf bytes.Buffer
			if err := Save(d, &buf, FormatCompressed); err != nil {
				return false
			}
			loaded, err := Load(&buf, FormatCompressed)
			return err == nil && loaded.IsDeepCopy(d) && d.IsDeepCopy(loaded)
		},
		gen.SliceOfN(60, gen.IntRange(0, 10_000)),
	))

	properties.TestingRun(t)
}
