package core

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/netdesign/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML, FormatCompressed} {
		t.Run(f.String(), func(t *testing.T) {
			d := richDesign(t)
			var buf bytes.Buffer
			require.NoError(t, Save(d, &buf, f))

			loaded, err := Load(&buf, f)
			require.NoError(t, err)
			require.NoError(t, d.deepCopyDiff(loaded))
			require.NoError(t, loaded.deepCopyDiff(d))
			loaded.CheckCachesConsistency()

			assert.InDelta(t, d.Summary().CarriedTraffic, loaded.Summary().CarriedTraffic, 1e-9)
			assert.Equal(t, d.NextElementID(), loaded.NextElementID())
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	d := richDesign(t)
	for _, name := range []string{"design.json", "design.yaml", "design.yml", "design.ndz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveFile(d, path))
		loaded, err := LoadFile(path)
		require.NoError(t, err, name)
		assert.True(t, loaded.IsDeepCopy(d), name)
	}
}

func TestLoadedDesignKeepsWorking(t *testing.T) {
	d := richDesign(t)
	var buf bytes.Buffer
	require.NoError(t, Save(d, &buf, FormatJSON))
	loaded, err := Load(&buf, FormatJSON)
	require.NoError(t, err)

	n, err := loaded.AddNode("mad", model.Point{})
	require.NoError(t, err)
	assert.Equal(t, d.NextElementID(), n.ID())
	require.NoError(t, loaded.NodeByName("lon").Remove())
	loaded.CheckCachesConsistency()
}

func TestLoadVersion1Document(t *testing.T) {
	const v1 = `{
  "format": "netdesign",
  "version": 1,
  "name": "legacy",
  "nodes": [
    {"id": 0, "name": "a", "x": 1, "y": 2},
    {"id": 1, "name": "b"},
    {"id": 2, "name": "c", "down": true}
  ],
  "links": [
    {"id": 3, "origin": 0, "destination": 1, "capacity": 10, "lengthKm": 20},
    {"id": 4, "origin": 1, "destination": 2, "capacity": 10, "lengthKm": 20, "down": true}
  ],
  "demands": [
    {"id": 5, "ingress": 0, "egress": 2, "offeredTraffic": 10},
    {"id": 6, "ingress": 0, "egress": 1, "offeredTraffic": 3}
  ],
  "routes": [
    {"id": 7, "demand": 5, "carriedTraffic": 7, "occupiedCapacity": 8, "links": [3, 4]},
    {"id": 8, "demand": 6, "carriedTraffic": 3, "occupiedCapacity": 3, "links": [3]}
  ],
  "srgs": [{"id": 9, "mttfHours": 100, "mttrHours": 1, "links": [3]}]
}`
	d, err := Load(strings.NewReader(v1), FormatJSON)
	require.NoError(t, err)
	d.CheckCachesConsistency()

	require.Equal(t, 1, d.NumberOfLayers())
	layer := d.DefaultLayer()
	assert.Equal(t, int64(10), layer.ID())
	assert.Equal(t, model.SourceRouting, layer.RoutingType())
	assert.Equal(t, int64(11), d.NextElementID())
	assert.Equal(t, "legacy", d.Name())

	a := d.NodeByID(0)
	assert.Equal(t, model.Point{X: 1, Y: 2}, a.Position())
	assert.True(t, d.NodeByID(2).IsDown())
	assert.True(t, d.LinkByID(4).IsDown())
	assert.InDelta(t, DefaultPropagationSpeedKmPerSec, d.LinkByID(3).PropagationSpeed(), 1e-9)

	r := d.RouteByID(7)
	assert.True(t, r.IsDown())
	assert.Equal(t, []float64{8, 8}, r.SeqOccupation())
	assert.InDelta(t, 3, d.LinkByID(3).CarriedTraffic(), 1e-9)
	assert.InDelta(t, 3, d.DemandByID(6).CarriedTraffic(), 1e-9)
	assert.Equal(t, []*SRG{d.SRGByID(9)}, d.LinkByID(3).SRGs())

	// written back as the current version
	var buf bytes.Buffer
	require.NoError(t, Save(d, &buf, FormatJSON))
	assert.Contains(t, buf.String(), `"version": 2`)
	again, err := Load(&buf, FormatJSON)
	require.NoError(t, err)
	assert.True(t, again.IsDeepCopy(d))
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"format": `,
		"wrong format":     `{"format": "other", "version": 2}`,
		"future version":   `{"format": "netdesign", "version": 3}`,
		"no layers":        `{"format": "netdesign", "version": 2, "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 0, "defaultLayer": 0, "layers": []}`,
		"bad epsilon":      `{"format": "netdesign", "version": 2, "options": {"epsilon": 0, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 1, "defaultLayer": 0, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING"}]}`,
		"missing default":  `{"format": "netdesign", "version": 2, "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 2, "defaultLayer": 1, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING"}]}`,
		"stale next id":    `{"format": "netdesign", "version": 2, "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 0, "defaultLayer": 0, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING"}]}`,
		"dangling link":    `{"format": "netdesign", "version": 2, "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 5, "defaultLayer": 0, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING", "links": [{"id": 3, "origin": 1, "destination": 2, "capacity": 1, "lengthKm": 1, "propagationSpeedKmPerSec": 1, "up": true}]}]}`,
		"unknown field":    `{"format": "netdesign", "version": 2, "colour": "red", "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 1, "defaultLayer": 0, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING"}]}`,
		"unknown v1 field": `{"format": "netdesign", "version": 1, "nodes": [{"id": 0, "name": "a", "z": 3}], "links": [], "demands": [], "routes": []}`,
		"duplicate id":     `{"format": "netdesign", "version": 2, "options": {"epsilon": 1e-6, "cyclePolicy": "reject", "maxIterations": 10}, "nextId": 5, "defaultLayer": 0, "layers": [{"id": 0, "name": "L", "routingType": "SOURCE_ROUTING"}], "nodes": [{"id": 0, "name": "n", "up": true}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc), FormatJSON)
			requireDomainErr(t, err, ErrFormat)
		})
	}
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	const doc = `format: netdesign
version: 2
options: {epsilon: 1.0e-6, cyclePolicy: reject, maxIterations: 10}
nextId: 1
defaultLayer: 0
layers:
  - {id: 0, name: L, routingType: SOURCE_ROUTING}
`
	d, err := Load(strings.NewReader(doc), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "L", d.DefaultLayer().Name())

	_, err = Load(strings.NewReader(doc+"owner: ops\n"), FormatYAML)
	requireDomainErr(t, err, ErrFormat)
}

func TestCompressedFormatRejectsPlainJSON(t *testing.T) {
	_, err := Load(strings.NewReader(`{"format":"netdesign","version":2}`), FormatCompressed)
	requireDomainErr(t, err, ErrFormat)
}

func TestFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	requireDomainErr(t, err, ErrIO)

	_, err = FormatForPath("design.xml")
	requireDomainErr(t, err, ErrInvalidArgument)

	f, err := ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	err = SaveFile(New(), filepath.Join(t.TempDir(), "no-such-dir", "d.json"))
	requireDomainErr(t, err, ErrIO)
}
