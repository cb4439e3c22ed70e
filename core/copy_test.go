package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/netdesign/model"
)

// richDesign exercises every element kind and relation: two layers with
// different routing types, a coupling between them, resources on a service
// chain, backup routes, multicast, SRGs, attributes and failures.
func richDesign(t *testing.T) *Design {
	t.Helper()
	d := New(WithName("rich"))
	d.SetDescription("two-layer test network")
	require.NoError(t, d.SetAttribute("region", "eu-west"))
	wdm := d.DefaultLayer()
	require.NoError(t, wdm.SetName("WDM"))
	ip, err := d.AddLayer("IP", "packet layer", model.HopByHopRouting)
	require.NoError(t, err)

	var nodes []*Node
	for i, name := range []string{"lon", "par", "ams", "fra"} {
		n, err := d.AddNode(name, model.Point{X: float64(i) * 1.5, Y: 51.5 - float64(i)})
		require.NoError(t, err)
		require.NoError(t, n.SetPosition("schematic", model.Point{X: float64(i), Y: 0}))
		nodes = append(nodes, n)
	}
	require.NoError(t, nodes[2].SetAttribute("pop", "true"))

	lp, pl, err := d.AddLinkBidirectional(nodes[0], nodes[1], 100, 344, DefaultPropagationSpeedKmPerSec, wdm)
	require.NoError(t, err)
	pa, err := d.AddLink(nodes[1], nodes[2], 100, 430, DefaultPropagationSpeedKmPerSec, wdm)
	require.NoError(t, err)
	la, err := d.AddLink(nodes[0], nodes[2], 40, 358, DefaultPropagationSpeedKmPerSec, wdm)
	require.NoError(t, err)
	af, err := d.AddLink(nodes[2], nodes[3], 100, 360, DefaultPropagationSpeedKmPerSec, wdm)
	require.NoError(t, err)
	require.NoError(t, la.SetAttribute("fiber", "G.652"))

	cpu, err := d.AddResource("CPU", "lon-cpu", nodes[0], 32, "cores", nil, 0)
	require.NoError(t, err)
	fw, err := d.AddResource("FW", "lon-fw", nodes[0], 10, "Gbps", map[*Resource]float64{cpu: 4}, 0.2)
	require.NoError(t, err)

	lightpath, err := d.AddDemand(nodes[0], nodes[2], 40, wdm)
	require.NoError(t, err)
	primary, err := d.AddRouteOverLinks(lightpath, 40, 40, []*Link{la})
	require.NoError(t, err)
	backup, err := d.AddRouteOverLinks(lightpath, 0, 40, []*Link{lp, pa})
	require.NoError(t, err)
	require.NoError(t, primary.AddBackupRoute(backup))
	require.NoError(t, primary.SetAttribute("protection", "1+1"))

	secured, err := d.AddDemand(nodes[0], nodes[1], 5, wdm)
	require.NoError(t, err)
	require.NoError(t, secured.SetServiceChain([]string{"FW"}))
	require.NoError(t, secured.SetMaxLatencyMs(12.5))
	chain, err := d.AddRoute(secured, 5, []PathElement{fw, lp}, []float64{2.5, 5})
	require.NoError(t, err)
	require.NoError(t, chain.SetCarriedTraffic(4, []float64{2, 4}))

	ipLink, err := lightpath.CoupleToNewLinkCreated(ip)
	require.NoError(t, err)
	ipParFra, err := d.AddLink(nodes[2], nodes[3], 10, 360, DefaultPropagationSpeedKmPerSec, ip)
	require.NoError(t, err)
	ipDem, err := d.AddDemand(nodes[0], nodes[3], 8, ip)
	require.NoError(t, err)
	require.NoError(t, ipDem.SetForwardingRules(map[*Link]float64{ipLink: 1, ipParFra: 0.75}))

	video, err := d.AddMulticastDemand(nodes[0], []*Node{nodes[2], nodes[3]}, 3, wdm)
	require.NoError(t, err)
	tree, err := d.AddMulticastTree(video, 3, 3, []*Link{la, af})
	require.NoError(t, err)
	require.NoError(t, tree.SetLinks([]*Link{lp, pa}))

	duct, err := d.AddSRG(8760, 12)
	require.NoError(t, err)
	require.NoError(t, duct.AddLink(lp))
	require.NoError(t, duct.AddLink(pl))
	site, err := d.AddSRG(0, 0)
	require.NoError(t, err)
	require.NoError(t, site.AddNode(nodes[3]))
	require.NoError(t, site.SetAttribute("kind", "building"))

	require.NoError(t, af.SetFailureState(false))
	d.CheckCachesConsistency()
	return d
}

func TestCopyIsDeepCopyBothWays(t *testing.T) {
	d := richDesign(t)
	c := d.Copy()
	require.NoError(t, d.deepCopyDiff(c))
	require.NoError(t, c.deepCopyDiff(d))
	assert.True(t, d.IsDeepCopy(c))
	assert.True(t, c.IsDeepCopy(d))
	assert.NotEqual(t, d.InstanceID(), c.InstanceID())
	c.CheckCachesConsistency()
}

func TestCopySharesNoState(t *testing.T) {
	d := richDesign(t)
	c := d.Copy()
	cn := c.NodeByName("par")
	require.NoError(t, cn.SetFailureState(false))
	require.NoError(t, c.NodeByName("lon").SetAttribute("pop", "false"))

	assert.False(t, d.IsDeepCopy(c))
	assert.True(t, d.NodeByName("par").IsUp())
	_, ok := d.NodeByName("lon").Attribute("pop")
	assert.False(t, ok)
	assert.Same(t, c, cn.Design())

	require.NoError(t, c.DefaultLayer().Links()[0].Remove())
	assert.Equal(t, 5, d.DefaultLayer().NumberOfLinks())
	d.CheckCachesConsistency()
	c.CheckCachesConsistency()
}

func TestCopyDerivedTrafficMatches(t *testing.T) {
	d := richDesign(t)
	c := d.Copy()
	for i, dem := range d.DefaultLayer().Demands() {
		assert.InDelta(t, dem.CarriedTraffic(), c.DefaultLayer().Demands()[i].CarriedTraffic(), 1e-12)
	}
	for i, l := range d.Layers()[1].Links() {
		assert.InDelta(t, l.Capacity(), c.Layers()[1].Links()[i].Capacity(), 1e-12)
	}
}

func TestAssignFromReplacesContent(t *testing.T) {
	d := richDesign(t)
	oldNode := d.NodeByName("lon")
	id := d.InstanceID()
	epoch := d.Epoch()

	target := richDesign(t)
	require.NoError(t, target.NodeByName("ams").Remove())

	require.NoError(t, d.AssignFrom(target))
	assert.True(t, oldNode.IsRemoved())
	assert.Equal(t, id, d.InstanceID())
	assert.Greater(t, d.Epoch(), epoch)
	assert.True(t, d.IsDeepCopy(target))
	assert.Nil(t, d.NodeByName("ams"))
	assert.Same(t, d, d.NodeByName("lon").Design())
	d.CheckCachesConsistency()

	requireDomainErr(t, d.AssignFrom(nil), ErrInvalidArgument)
}

func TestVerifyCachesDetectsCorruption(t *testing.T) {
	d := richDesign(t)
	require.NoError(t, d.VerifyCaches())

	d.NodeByName("lon").outLinks.add(9999)
	err := d.VerifyCaches()
	require.Error(t, err)
	var v *InvariantViolation
	require.ErrorAs(t, err, &v)
	assert.PanicsWithError(t, err.Error(), d.CheckCachesConsistency)
}
