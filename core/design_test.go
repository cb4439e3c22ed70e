package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/signalsfoundry/netdesign/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// lineDesign builds n nodes in a row joined by forward links of the given
// capacity in the default layer.
func lineDesign(t *testing.T, n int, capacity float64) (*Design, []*Node, []*Link) {
	t.Helper()
	d := New(WithName("line"))
	nodes := make([]*Node, n)
	for i := range nodes {
		node, err := d.AddNode("n"+string(rune('a'+i)), model.Point{X: float64(i)})
		require.NoError(t, err)
		nodes[i] = node
	}
	links := make([]*Link, 0, n-1)
	for i := 0; i+1 < n; i++ {
		l, err := d.AddLink(nodes[i], nodes[i+1], capacity, 100, DefaultPropagationSpeedKmPerSec, nil)
		require.NoError(t, err)
		links = append(links, l)
	}
	return d, nodes, links
}

func requireDomainErr(t *testing.T, err, sentinel error) {
	t.Helper()
	require.Error(t, err)
	var de *DomainError
	require.True(t, errors.As(err, &de), "expected *DomainError, got %T", err)
	require.ErrorIs(t, err, sentinel)
}

func TestNewDesignHasDefaultLayer(t *testing.T) {
	d := New()
	require.Equal(t, 1, d.NumberOfLayers())
	l := d.DefaultLayer()
	require.NotNil(t, l)
	assert.True(t, l.IsDefault())
	assert.Equal(t, model.SourceRouting, l.RoutingType())
	assert.Equal(t, 0, l.Index())
	d.CheckCachesConsistency()
}

func TestIDsAreNeverReused(t *testing.T) {
	d, nodes, _ := lineDesign(t, 3, 10)
	removed := nodes[2].ID()
	require.NoError(t, nodes[2].Remove())
	n, err := d.AddNode("again", model.Point{})
	require.NoError(t, err)
	assert.Greater(t, n.ID(), removed)
	assert.Nil(t, d.NodeByID(removed))
	assert.True(t, nodes[2].IsRemoved())
	d.CheckCachesConsistency()
}

func TestRemovalRenumbersIndices(t *testing.T) {
	d, nodes, _ := lineDesign(t, 4, 10)
	require.NoError(t, nodes[1].Remove())
	for i, n := range d.Nodes() {
		assert.Equal(t, i, n.Index())
	}
	// the links touching the removed node are gone
	assert.Equal(t, 1, d.DefaultLayer().NumberOfLinks())
	d.CheckCachesConsistency()
}

func TestElementFromOtherDesignIsRejected(t *testing.T) {
	d1, n1, _ := lineDesign(t, 2, 10)
	d2, n2, _ := lineDesign(t, 2, 10)
	_, err := d1.AddLink(n1[0], n2[1], 1, 1, DefaultPropagationSpeedKmPerSec, nil)
	requireDomainErr(t, err, ErrWrongDesign)
	d1.CheckCachesConsistency()
	d2.CheckCachesConsistency()
}

func TestRemovedElementIsRejected(t *testing.T) {
	d, nodes, _ := lineDesign(t, 3, 10)
	require.NoError(t, nodes[0].Remove())
	_, err := d.AddDemand(nodes[0], nodes[2], 1, nil)
	requireDomainErr(t, err, ErrElementRemoved)
	requireDomainErr(t, nodes[0].Remove(), ErrElementRemoved)
}

func TestSettersRejectRemovedElements(t *testing.T) {
	d, nodes, _ := lineDesign(t, 3, 10)
	res, err := d.AddResource("CPU", "cpu", nodes[1], 4, "cores", nil, 0)
	require.NoError(t, err)
	layer, err := d.AddLayer("IP", "", model.SourceRouting)
	require.NoError(t, err)

	require.NoError(t, res.Remove())
	require.NoError(t, layer.Remove())
	require.NoError(t, nodes[0].Remove())

	requireDomainErr(t, nodes[0].SetName("x"), ErrElementRemoved)
	requireDomainErr(t, nodes[0].SetPosition("", model.Point{X: 1}), ErrElementRemoved)
	requireDomainErr(t, layer.SetName("x"), ErrElementRemoved)
	requireDomainErr(t, layer.SetDescription("x"), ErrElementRemoved)
	requireDomainErr(t, layer.SetUnits("Gbps", "Gbps"), ErrElementRemoved)
	requireDomainErr(t, res.SetName("x"), ErrElementRemoved)

	require.NoError(t, nodes[1].SetName("renamed"))
	require.NoError(t, nodes[1].SetPosition("", model.Point{X: 2}))
	assert.Equal(t, "renamed", nodes[1].Name())
	assert.Equal(t, model.Point{X: 2}, nodes[1].Position())
	d.CheckCachesConsistency()
}

func TestAttributes(t *testing.T) {
	d, nodes, _ := lineDesign(t, 2, 10)
	require.NoError(t, nodes[0].SetAttribute("site", "north"))
	v, ok := nodes[0].Attribute("site")
	require.True(t, ok)
	assert.Equal(t, "north", v)
	requireDomainErr(t, nodes[0].SetAttribute("", "x"), ErrInvalidArgument)

	attrs := nodes[0].Attributes()
	attrs["site"] = "mutated"
	v, _ = nodes[0].Attribute("site")
	assert.Equal(t, "north", v)

	nodes[0].RemoveAttribute("site")
	_, ok = nodes[0].Attribute("site")
	assert.False(t, ok)
	require.NoError(t, d.SetAttribute("owner", "ops"))
}

func TestSummary(t *testing.T) {
	d, nodes, links := lineDesign(t, 3, 10)
	dem, err := d.AddDemand(nodes[0], nodes[2], 8, nil)
	require.NoError(t, err)
	_, err = d.AddRouteOverLinks(dem, 6, 12, links)
	require.NoError(t, err)

	s := d.Summary()
	assert.Equal(t, "line", s.Name)
	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 2, s.Links)
	assert.Equal(t, 1, s.Routes)
	assert.InDelta(t, 8, s.OfferedTraffic, 1e-9)
	assert.InDelta(t, 6, s.CarriedTraffic, 1e-9)
	assert.InDelta(t, 2, s.BlockedTraffic, 1e-9)
	assert.Equal(t, 2, s.OversubscribedLinks)
}

func TestLayerRemoval(t *testing.T) {
	d, nodes, _ := lineDesign(t, 2, 10)
	upper, err := d.AddLayer("IP", "", model.SourceRouting)
	require.NoError(t, err)
	_, err = d.AddLink(nodes[0], nodes[1], 5, 1, DefaultPropagationSpeedKmPerSec, upper)
	require.NoError(t, err)

	require.NoError(t, d.DefaultLayer().Remove())
	assert.Equal(t, upper, d.DefaultLayer())
	assert.Equal(t, 0, upper.Index())
	assert.Len(t, nodes[0].OutgoingLinks(nil), 1)
	requireDomainErr(t, upper.Remove(), ErrLastLayer)
	d.CheckCachesConsistency()
}
