package callgraph

import (
	"testing"

	"reachgraph/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_Idempotent(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("pkg.mod.func", "pkg.mod"))
	before := g.Extended()

	require.NoError(t, g.AddNode("pkg.mod.func", "pkg.mod"))

	assert.Equal(t, before, g.Extended())
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "pkg.mod", g.Modules()["pkg.mod.func"])
}

func TestAddNode_ModuleFirstNonEmptyWins(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("n", ""))
	require.NoError(t, g.AddNode("n", "m1"))
	require.NoError(t, g.AddNode("n", "m2"))
	require.NoError(t, g.AddNode("n", ""))

	assert.Equal(t, "m1", g.Modules()["n"])
	assert.Equal(t, "m1", g.Extended()["n"].Meta.Module)
}

func TestAddNode_EmptyName(t *testing.T) {
	g := New()
	err := g.AddNode("", "mod")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStructural))
	assert.Equal(t, 0, g.NodeCount())
}

func TestAddEdge_ProvenanceLogGrowsAdjacencyDoesNot(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a.main", "a.helper", 3, "a", ""))
	require.NoError(t, g.AddEdge("a.main", "a.helper", 3, "a", ""))
	require.NoError(t, g.AddEdge("a.main", "a.helper", 7, "a", ""))

	assert.Equal(t, []string{"a.helper"}, g.Get()["a.main"])
	dsts := g.Extended()["a.main"].Dsts
	require.Len(t, dsts, 3)
	assert.Equal(t, 3, dsts[0].Line)
	assert.Equal(t, 7, dsts[2].Line)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestAddEdge_EndpointModules(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a.main", "os.path.join", UnknownLine, "a", "os"))

	mods := g.Modules()
	assert.Equal(t, "a", mods["a.main"])
	assert.Equal(t, "", mods["os.path.join"])

	rec := g.Extended()["a.main"].Dsts[0]
	assert.Equal(t, EdgeRecord{Dst: "os.path.join", Line: -1, Module: "a", ExtModule: "os"}, rec)
}

func TestAddEdge_EmptyDestination(t *testing.T) {
	g := New()
	err := g.AddEdge("a.main", "", 1, "a", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStructural))
}

func TestEdges_Flattened(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("b", "c", 1, "", ""))
	require.NoError(t, g.AddEdge("a", "c", 1, "", ""))
	require.NoError(t, g.AddEdge("a", "b", 2, "", ""))

	assert.ElementsMatch(t, [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}, g.Edges())
}

func TestEntrypoints(t *testing.T) {
	g := New()
	_, ok := g.LatestEntrypoint()
	assert.False(t, ok)

	g.AddEntrypoint("pkg.a", "pkg.a")
	g.AddEntrypoint("pkg.b", "pkg.b")

	assert.Equal(t, []EntryPoint{{Name: "pkg.a", Module: "pkg.a"}, {Name: "pkg.b", Module: "pkg.b"}}, g.Entrypoints())
	latest, ok := g.LatestEntrypoint()
	require.True(t, ok)
	assert.Equal(t, "pkg.b", latest.Name)
}

func TestReachable(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("m", "m.f", 1, "m", ""))
	require.NoError(t, g.AddEdge("m.f", "m.g", 2, "m", ""))
	require.NoError(t, g.AddEdge("m.g", "m.f", 3, "m", ""))
	require.NoError(t, g.AddNode("m.unused", "m"))

	assert.Equal(t, []string{"m", "m.f", "m.g"}, g.Reachable("m"))
	assert.Empty(t, g.Reachable("missing"))
}
