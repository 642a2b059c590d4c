package cluster

import (
	"errors"
	"testing"

	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/refset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, p graph.Provider, opts Options) (*Result, error) {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e.Generate(p)
}

func TestNew_InvalidLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		_, err := New(Options{Limit: limit})
		require.ErrorIs(t, err, ErrInvalidLimit)
	}
}

func TestExtract(t *testing.T) {
	u := refset.NewUniverse()
	const input = graph.SourceID("Dummy.esp")

	self := makeRecord(0x800, input, "Fallout4.esm", "DLCRobot.esm")
	assert.Equal(t, []graph.SourceID{"DLCRobot.esm", "Fallout4.esm"}, Extract(self, input, u).Members())

	override := makeRecord(0xA000, "Fallout4.esm", "DLCCoast.esm")
	assert.Equal(t, []graph.SourceID{"DLCCoast.esm", "Fallout4.esm"}, Extract(override, input, u).Members())

	bare := makeRecord(0x801, input)
	assert.Zero(t, Extract(bare, input, u).Count())

	// Links into the input never count as a master.
	selfLink := makeRecord(0x802, input, "A.esm", input)
	assert.Equal(t, []graph.SourceID{"A.esm"}, Extract(selfLink, input, u).Members())
	assert.True(t, LinksInput(selfLink, input))
	assert.False(t, LinksInput(self, input))

	overrideLink := makeRecord(0xA001, "Fallout4.esm", input)
	assert.Equal(t, []graph.SourceID{"Fallout4.esm"}, Extract(overrideLink, input, u).Members())
	assert.True(t, LinksInput(overrideLink, input))
}

func TestGenerate_BinPackingPlaceAny(t *testing.T) {
	res, err := generate(t, binPackInput("Bins.esp"), Options{Limit: 10, Placement: PlaceAny})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 5)
	assertClusterInvariants(t, res, 10)
	for i, c := range res.Clusters {
		require.Len(t, c.Records, 2, "cluster %d", i)
		assert.Len(t, c.Records[0].Links, 7, "cluster %d should start with a 7-master record", i)
		assert.Len(t, c.Records[1].Links, 3, "cluster %d should end with a 3-master record", i)
		assert.Equal(t, 10, c.Masters.Count())
	}
	assert.Equal(t, 10, res.Stats.SelfOriginated)
	assert.Equal(t, 5, res.Stats.ClustersCreated)
}

func TestGenerate_BinPackingPlacePrimaryFails(t *testing.T) {
	_, err := generate(t, binPackInput("Bins.esp"), Options{Limit: 10, Placement: PlacePrimary})
	require.Error(t, err)

	var tooMany *TooManyMastersError
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, graph.SourceID("Bins.esp"), tooMany.Source)
	assert.Equal(t, graph.FormKey{Local: 0x801, Source: "Bins.esp"}, tooMany.Record)
	assert.Len(t, tooMany.Masters, 14, "accumulated masters plus the record's own")
	assert.Equal(t, 10, tooMany.Limit)
}

func TestGenerate_IdentityOverrideSplit(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0x800, input, "Fallout4.esm"),
		makeRecord(0x801, input),
		makeRecord(0xA000, "Fallout4.esm", "DLCCoast.esm"),
		makeRecord(0xA001, "Fallout4.esm"),
	}}

	res, err := generate(t, p, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	assertClusterInvariants(t, res, DefaultLimit)
	assert.Len(t, res.Clusters[0].Records, 4)
	assert.Equal(t, []graph.SourceID{"DLCCoast.esm", "Fallout4.esm"}, res.Clusters[0].MasterList())
	assert.Equal(t, 2, res.Stats.SelfOriginated)
	assert.Equal(t, 2, res.Stats.Overrides)
}

func TestGenerate_FatalSelfOriginated(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0x800, input, sources("Big", 5)...),
	}}

	_, err := generate(t, p, Options{Limit: 3})
	require.ErrorIs(t, err, ErrTooManyMasters)

	var tooMany *TooManyMastersError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, sources("Big", 5), tooMany.Masters)
	assert.Equal(t, 3, tooMany.Limit)
	assert.Contains(t, err.Error(), "generated forms of Dummy.esp have too many masters")
	assert.Contains(t, err.Error(), "5 > 3")
}

func TestGenerate_FatalOverride(t *testing.T) {
	// origin plus three links: four masters for one record
	p := &sliceProvider{source: "Dummy.esp", recs: []graph.Record{
		makeRecord(0xA000, "Fallout4.esm", sources("Dep", 3)...),
	}}

	_, err := generate(t, p, Options{Limit: 3, Placement: PlacePrimary})
	require.ErrorIs(t, err, ErrTooManyMasters)
}

func TestGenerate_SelfOriginatedPlacedBeforeOverrides(t *testing.T) {
	// The override comes first in input order. If it were placed first it
	// would fill cluster 0 and the self-originated record could not fit.
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0xA000, "Fallout4.esm", "A.esm", "B.esm"),
		makeRecord(0x800, input, "C.esm", "D.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 3})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assertClusterInvariants(t, res, 3)
	assert.Equal(t, graph.FormKey{Local: 0x800, Source: input}, res.Clusters[0].Records[0].Key)
	assert.Equal(t, graph.FormKey{Local: 0xA000, Source: "Fallout4.esm"}, res.Clusters[1].Records[0].Key)
}

func TestGenerate_OverridesFirstFit(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0xA000, "A.esm", "B.esm"),
		makeRecord(0xB000, "C.esm", "D.esm"),
		makeRecord(0xA001, "A.esm"),
		makeRecord(0xD000, "D.esm", "C.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 2})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assertClusterInvariants(t, res, 2)
	assert.Len(t, res.Clusters[0].Records, 2)
	assert.Len(t, res.Clusters[1].Records, 2)
	assert.Equal(t, []graph.SourceID{"A.esm", "B.esm"}, res.Clusters[0].MasterList())
	assert.Equal(t, []graph.SourceID{"C.esm", "D.esm"}, res.Clusters[1].MasterList())
	// {D, C} repeats {C, D} in another order.
	assert.Equal(t, 1, res.Stats.CacheHits)
}

func TestGenerate_CacheHitFollowsGrownCluster(t *testing.T) {
	// A set cached on cluster 0 stays valid after cluster 0 grows.
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0xA000, "A.esm"),
		makeRecord(0xB000, "B.esm"),
		makeRecord(0xA001, "A.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0].Records, 3)
	assert.Equal(t, 1, res.Stats.CacheHits)
	assert.Equal(t, 2, res.Stats.Scans)
}

func TestGenerate_Deterministic(t *testing.T) {
	keys := func(res *Result) [][]graph.FormKey {
		var out [][]graph.FormKey
		for _, c := range res.Clusters {
			var ks []graph.FormKey
			for _, rec := range c.Records {
				ks = append(ks, rec.Key)
			}
			out = append(out, ks)
		}
		return out
	}

	first, err := generate(t, binPackInput("Bins.esp"), Options{Limit: 10, Placement: PlaceAny})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := generate(t, binPackInput("Bins.esp"), Options{Limit: 10, Placement: PlaceAny})
		require.NoError(t, err)
		assert.Equal(t, keys(first), keys(again))
	}
}

func TestGenerate_EmptyInput(t *testing.T) {
	res, err := generate(t, &sliceProvider{source: "Empty.esp"}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Empty(t, res.Clusters[0].Records)
	assert.Zero(t, res.Clusters[0].Masters.Count())
}

func TestGenerate_ProviderError(t *testing.T) {
	p := &sliceProvider{
		source: "Dummy.esp",
		recs:   []graph.Record{makeRecord(0x800, "Dummy.esp")},
		err:    errBroken,
	}
	_, err := generate(t, p, DefaultOptions())
	require.ErrorIs(t, err, errBroken)
	assert.Contains(t, err.Error(), "Dummy.esp")
}

func TestParsePlacement(t *testing.T) {
	got, err := ParsePlacement("ANY")
	require.NoError(t, err)
	assert.Equal(t, PlaceAny, got)

	got, err = ParsePlacement("")
	require.NoError(t, err)
	assert.Equal(t, PlacePrimary, got)

	_, err = ParsePlacement("first")
	require.Error(t, err)
}

func TestGenerate_SelfLinksDoNotChargeThePrimary(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		withLinks(makeRecord(0x800, input, "A.esm", "B.esm"), graph.FormKey{Local: 0x801, Source: input}),
		makeRecord(0x801, input, "A.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 2})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	assertClusterInvariants(t, res, 2)
	assert.Equal(t, []graph.SourceID{"A.esm", "B.esm"}, res.Clusters[0].MasterList())
}

func TestGenerate_OverflowNeverListsTheInput(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		withLinks(makeRecord(0x800, input, sources("Big", 3)...), graph.FormKey{Local: 0x801, Source: input}),
	}}

	_, err := generate(t, p, Options{Limit: 2})
	var tooMany *TooManyMastersError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, sources("Big", 3), tooMany.Masters)
}

func TestGenerate_SecondaryClusterDeclaresInput(t *testing.T) {
	// The override links to a record that stays in the primary unit, so the
	// secondary unit it lands in must declare the input.
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0x800, input, "A.esm", "B.esm"),
		withLinks(makeRecord(0xA000, "Fallout4.esm"), graph.FormKey{Local: 0x800, Source: input}),
		makeRecord(0xA001, "Fallout4.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 2})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assertClusterInvariants(t, res, 2)
	assert.Equal(t, []graph.SourceID{"Dummy.esp", "Fallout4.esm"}, res.Clusters[1].MasterList())
	// Same masters without the link: it fits the secondary cluster too, but is
	// cached separately.
	assert.Len(t, res.Clusters[1].Records, 2)
	assert.Zero(t, res.Stats.CacheHits)
}

func TestGenerate_PlaceAnyPinsLinkedRecords(t *testing.T) {
	// 0x800 links to 0x801, so neither may leave cluster 0 under PlaceAny.
	// Only 0x802 is free to move.
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		makeRecord(0x802, input, "Z1.esm", "Z2.esm"),
		withLinks(makeRecord(0x800, input, "X1.esm", "X2.esm"), graph.FormKey{Local: 0x801, Source: input}),
		makeRecord(0x801, input, "Y1.esm"),
	}}

	res, err := generate(t, p, Options{Limit: 3, Placement: PlaceAny})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assertClusterInvariants(t, res, 3)
	var primary []uint32
	for _, rec := range res.Clusters[0].Records {
		primary = append(primary, rec.Key.Local)
	}
	assert.Equal(t, []uint32{0x800, 0x801}, primary)
	assert.Equal(t, graph.FormKey{Local: 0x802, Source: input}, res.Clusters[1].Records[0].Key)
	assert.Equal(t, 2, res.Stats.Pinned)
}

func TestGenerate_PlaceAnyPinnedOverflowIsFatal(t *testing.T) {
	const input = graph.SourceID("Dummy.esp")
	p := &sliceProvider{source: input, recs: []graph.Record{
		withLinks(makeRecord(0x800, input, "X1.esm", "X2.esm"), graph.FormKey{Local: 0x801, Source: input}),
		makeRecord(0x801, input, "Y1.esm", "Y2.esm"),
	}}

	_, err := generate(t, p, Options{Limit: 3, Placement: PlaceAny})
	require.ErrorIs(t, err, ErrTooManyMasters)
}
