package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/netdesign/model"
)

type resourceFixture struct {
	d           *Design
	host        *Node
	base, upper *Resource
	baseChain   *Route
	upperChain  *Route
	baseDemand  *Demand
	upperDemand *Demand
	link        *Link
}

// newResourceFixture builds a CPU base resource of capacity 10, a VNF built
// on it occupying 5, and one service chain through each, occupying 1.
func newResourceFixture(t *testing.T) *resourceFixture {
	t.Helper()
	d, nodes, links := lineDesign(t, 2, 100)
	f := &resourceFixture{d: d, host: nodes[0], link: links[0]}
	var err error
	f.base, err = d.AddResource("CPU", "cpu", nodes[0], 10, "cores", nil, 0)
	require.NoError(t, err)
	f.upper, err = d.AddResource("VNF", "vnf", nodes[0], 10, "units", map[*Resource]float64{f.base: 5}, 0)
	require.NoError(t, err)

	f.baseDemand, err = d.AddDemand(nodes[0], nodes[1], 1, nil)
	require.NoError(t, err)
	require.NoError(t, f.baseDemand.SetServiceChain([]string{"CPU"}))
	f.baseChain, err = d.AddRoute(f.baseDemand, 1, []PathElement{f.base, f.link}, []float64{1, 1})
	require.NoError(t, err)

	f.upperDemand, err = d.AddDemand(nodes[0], nodes[1], 1, nil)
	require.NoError(t, err)
	require.NoError(t, f.upperDemand.SetServiceChain([]string{"VNF"}))
	f.upperChain, err = d.AddRoute(f.upperDemand, 1, []PathElement{f.upper, f.link}, []float64{1, 1})
	require.NoError(t, err)
	return f
}

func TestResourceOccupation(t *testing.T) {
	f := newResourceFixture(t)
	assert.InDelta(t, 6, f.base.OccupiedCapacity(), 1e-9)
	assert.InDelta(t, 1, f.upper.OccupiedCapacity(), 1e-9)
	assert.InDelta(t, 0.6, f.base.Utilization(), 1e-9)
	assert.InDelta(t, 5, f.upper.CapacityOccupiedInBase(f.base), 1e-9)
	assert.Equal(t, []*Resource{f.upper}, f.base.UpperResources())
	assert.Equal(t, []*Resource{f.base, f.upper}, f.host.Resources())
	assert.False(t, f.base.IsOversubscribed())

	require.NoError(t, f.upper.SetCapacity(10, map[*Resource]float64{f.base: 12}))
	assert.True(t, f.base.IsOversubscribed())

	require.NoError(t, f.host.SetFailureState(false))
	assert.True(t, f.base.IsDown())
	assert.InDelta(t, 0, f.base.OccupiedCapacity(), 1e-9)
	f.d.CheckCachesConsistency()
}

func TestRemovingBaseResourceRemovesBothChains(t *testing.T) {
	f := newResourceFixture(t)
	require.NoError(t, f.base.Remove())
	assert.True(t, f.upper.IsRemoved())
	assert.True(t, f.baseChain.IsRemoved())
	assert.True(t, f.upperChain.IsRemoved())
	assert.False(t, f.baseDemand.IsRemoved())
	assert.Zero(t, f.d.NumberOfResources())
	assert.Empty(t, f.link.TraversingRoutes())
	f.d.CheckCachesConsistency()
}

func TestRemovingUpperResourceKeepsBaseChain(t *testing.T) {
	f := newResourceFixture(t)
	require.NoError(t, f.upper.Remove())
	assert.True(t, f.upperChain.IsRemoved())
	assert.False(t, f.baseChain.IsRemoved())
	assert.Empty(t, f.base.UpperResources())
	assert.InDelta(t, 1, f.base.OccupiedCapacity(), 1e-9)
	assert.Equal(t, []*Route{f.baseChain}, f.link.TraversingRoutes())
	f.d.CheckCachesConsistency()
}

func TestResourceCompositionRules(t *testing.T) {
	f := newResourceFixture(t)
	requireDomainErr(t, f.base.SetCapacity(10, map[*Resource]float64{f.upper: 1}), ErrResourceCycle)
	requireDomainErr(t, f.base.SetCapacity(10, map[*Resource]float64{f.base: 1}), ErrResourceCycle)

	other, err := f.d.AddNode("elsewhere", model.Point{})
	require.NoError(t, err)
	_, err = f.d.AddResource("VM", "vm", other, 1, "units", map[*Resource]float64{f.base: 1}, 0)
	requireDomainErr(t, err, ErrInvalidArgument)

	_, err = f.d.AddResource("", "anonymous", other, 1, "units", nil, 0)
	requireDomainErr(t, err, ErrInvalidArgument)

	// a nil base map keeps the current bases
	require.NoError(t, f.upper.SetCapacity(20, nil))
	assert.InDelta(t, 20, f.upper.Capacity(), 1e-9)
	assert.InDelta(t, 5, f.upper.CapacityOccupiedInBase(f.base), 1e-9)
	f.d.CheckCachesConsistency()
}

func TestRemovingHostRemovesResources(t *testing.T) {
	f := newResourceFixture(t)
	require.NoError(t, f.host.Remove())
	assert.True(t, f.base.IsRemoved())
	assert.True(t, f.upper.IsRemoved())
	assert.True(t, f.baseDemand.IsRemoved())
	assert.Zero(t, f.d.NumberOfResources())
	f.d.CheckCachesConsistency()
}

func TestBaseOccupationIgnoresUpperLoad(t *testing.T) {
	f := newResourceFixture(t)
	require.NoError(t, f.upper.SetCapacity(100, map[*Resource]float64{f.base: 0.5}))
	require.NoError(t, f.upperChain.SetCarriedTraffic(1, []float64{40, 1}))

	assert.InDelta(t, 40, f.upper.OccupiedCapacity(), 1e-9)
	// the base chain occupies 1, the upper a fixed 0.5
	assert.InDelta(t, 1.5, f.base.OccupiedCapacity(), 1e-9)

	require.NoError(t, f.upperChain.SetCarriedTraffic(1, []float64{0, 1}))
	assert.InDelta(t, 0, f.upper.OccupiedCapacity(), 1e-9)
	assert.InDelta(t, 1.5, f.base.OccupiedCapacity(), 1e-9)

	require.NoError(t, f.host.SetFailureState(false))
	assert.InDelta(t, 0, f.base.OccupiedCapacity(), 1e-9)
	f.d.CheckCachesConsistency()
}
