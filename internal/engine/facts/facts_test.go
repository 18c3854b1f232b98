package facts

import (
	"testing"

	"reachgraph/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions_CreateAndPromote(t *testing.T) {
	defs := NewDefinitions()

	_, err := defs.Create("", NameDef)
	assert.True(t, errors.IsCode(err, errors.CodeStructural))

	fn, err := defs.CreateFunction("main.f", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, FunctionDef, fn.Type)
	assert.True(t, fn.Names.Has("main.f"))
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	_, ok := defs.Get("main.f.<RETURN>")
	assert.True(t, ok)

	x, err := defs.Create("main.x", NameDef)
	require.NoError(t, err)
	assert.Empty(t, x.Names)
	again, err := defs.Create("main.x", ClassDef)
	require.NoError(t, err)
	assert.Same(t, x, again)
	assert.Equal(t, ClassDef, x.Type)
	assert.True(t, x.Names.Has("main.x"))

	same, err := defs.Create("main.f", NameDef)
	require.NoError(t, err)
	assert.Equal(t, FunctionDef, same.Type, "concrete definitions are never demoted")
	assert.Equal(t, []string{"main.f"}, defs.Functions())
}

func TestDefinitions_CompleteAndTargets(t *testing.T) {
	defs := NewDefinitions()
	_, _ = defs.CreateFunction("m.f", nil)
	_, _ = defs.CreateFunction("m.g", nil)
	a, _ := defs.Create("m.a", NameDef)
	b, _ := defs.Create("m.b", NameDef)
	c, _ := defs.Create("m.c", NameDef)

	a.Names.Add("m.f")
	a.Lits.Add("k1")
	b.Names.Add("m.a")
	b.Names.Add("m.g")
	c.Names.Add("m.b")
	c.Names.Add("m.c")

	defs.Complete()

	assert.Equal(t, []string{"m.a", "m.b", "m.f", "m.g"}, c.Names.Sorted())
	assert.Equal(t, []string{"k1"}, c.Lits.Sorted())
	assert.False(t, c.Names.Has("m.c"), "self references are dropped")
	assert.Equal(t, []string{"m.f", "m.g"}, defs.Targets("m.c"))
	assert.Equal(t, []string{"m.f"}, defs.Targets("m.f"))
	assert.Equal(t, []string{"unknown"}, defs.Targets("unknown"))
	assert.Equal(t, []string{"k1"}, defs.Literals("m.b"))
}

func TestDefinitions_TargetsSurviveCycles(t *testing.T) {
	defs := NewDefinitions()
	_, _ = defs.CreateFunction("m.f", nil)
	a, _ := defs.Create("m.a", NameDef)
	b, _ := defs.Create("m.b", NameDef)
	a.Names.Add("m.b")
	b.Names.Add("m.a")
	b.Names.Add("m.f")

	assert.Equal(t, []string{"m.f"}, defs.Targets("m.a"))
	defs.Complete()
	assert.Equal(t, []string{"m.f"}, defs.Targets("m.a"))
}

func TestScopes_LookupSkipsClassScopes(t *testing.T) {
	s := NewScopes()
	_, err := s.Create("m", "", false)
	require.NoError(t, err)
	_, _ = s.Create("m.C", "m", true)
	_, _ = s.Create("m.C.method", "m.C", false)

	_, err = s.Bind("m", "helper")
	require.NoError(t, err)
	_, _ = s.Bind("m.C", "attr")
	_, _ = s.Bind("m.C", "helper")
	ns, err := s.Bind("m.C.method", "self")
	require.NoError(t, err)
	assert.Equal(t, "m.C.method.self", ns)

	got, ok := s.Lookup("m.C.method", "helper")
	require.True(t, ok)
	assert.Equal(t, "m.helper", got)

	_, ok = s.Lookup("m.C.method", "attr")
	assert.False(t, ok)

	got, ok = s.Lookup("m.C", "helper")
	require.True(t, ok)
	assert.Equal(t, "m.C.helper", got)

	_, err = s.Bind("missing", "x")
	assert.True(t, errors.IsCode(err, errors.CodeStructural))
}

func TestScopes_CountersReset(t *testing.T) {
	s := NewScopes()
	_, _ = s.Create("m", "", false)

	assert.Equal(t, "m.<lambda0>", s.NextLambda("m"))
	assert.Equal(t, "m.<lambda1>", s.NextLambda("m"))
	assert.Equal(t, "m.<dict0>", s.NextDict("m"))

	s.ResetCounters()
	assert.Equal(t, "m.<lambda0>", s.NextLambda("m"))
	assert.Equal(t, "m.<dict0>", s.NextDict("m"))
}

func TestScopes_Bindings(t *testing.T) {
	s := NewScopes()
	_, _ = s.Create("m", "", false)
	_, _ = s.Bind("m", "x")
	_, _ = s.Bind("m", "y")

	assert.Equal(t, []string{"m.x", "m.y"}, s.Bindings()["m"].Sorted())
	assert.Equal(t, []string{"x", "y"}, s.Names("m"))
	assert.True(t, s.Bound("m", "x"))
}

func TestClasses_C3(t *testing.T) {
	c := NewClasses()
	for _, ns := range []string{"m.O", "m.A", "m.B", "m.C", "m.D"} {
		_, err := c.Create(ns, "m")
		require.NoError(t, err)
	}
	c.SetBases("m.A", []string{"m.O"})
	c.SetBases("m.B", []string{"m.O"})
	c.SetBases("m.C", []string{"m.A", "m.B"})
	c.SetBases("m.D", []string{"m.C", "m.B", "ext.Base"})

	assert.Equal(t, []string{"m.C", "m.A", "m.B", "m.O"}, c.ComputeMRO("m.C"))
	assert.Equal(t, []string{"m.D", "m.C", "m.A", "m.B", "m.O", "ext.Base"}, c.ComputeMRO("m.D"))
	assert.Equal(t, []string{"ext.Base"}, c.MRO("ext.Base"))
}

func TestClasses_InconsistentFallsBackToDepthFirst(t *testing.T) {
	c := NewClasses()
	for _, ns := range []string{"m.X", "m.Y", "m.A", "m.B", "m.Z"} {
		_, _ = c.Create(ns, "m")
	}
	c.SetBases("m.A", []string{"m.X", "m.Y"})
	c.SetBases("m.B", []string{"m.Y", "m.X"})
	c.SetBases("m.Z", []string{"m.A", "m.B"})

	assert.Equal(t, []string{"m.Z", "m.A", "m.X", "m.Y", "m.B"}, c.ComputeMRO("m.Z"))
}

func TestClasses_CyclicBasesTerminate(t *testing.T) {
	c := NewClasses()
	_, _ = c.Create("m.A", "m")
	_, _ = c.Create("m.B", "m")
	c.SetBases("m.A", []string{"m.B", "m.A"})
	c.SetBases("m.B", []string{"m.A"})

	assert.Equal(t, []string{"m.A", "m.B"}, c.ComputeMRO("m.A"))
}

func TestModules_ExternalPromotedToInternal(t *testing.T) {
	m := NewModules()
	_, err := m.Create("lib", "", true)
	require.NoError(t, err)
	assert.Contains(t, m.External(), "lib")

	mod, err := m.Create("lib", "/src/lib.py", false)
	require.NoError(t, err)
	assert.Equal(t, "/src/lib.py", mod.Filename)
	assert.NotContains(t, m.External(), "lib")
	assert.True(t, m.IsInternal("lib"))

	same, _ := m.Create("lib", "", true)
	assert.Same(t, mod, same)

	m.AddMethod("lib", "lib.f", 3, 5)
	assert.Equal(t, Method{Name: "lib.f", First: 3, Last: 5}, m.Internal()["lib"].Methods["lib.f"])
}

func TestKeyErrors_Deduplicated(t *testing.T) {
	k := NewKeyErrors()
	k.Add("a.py", 3, "a", "missing")
	k.Add("a.py", 3, "a", "missing")
	k.Add("a.py", 4, "a", "other")

	require.Equal(t, 2, k.Len())
	assert.Equal(t, "missing", k.All()[0].Key)
}

func TestNamespaceHelpers(t *testing.T) {
	assert.Equal(t, "a.b", Parent("a.b.c"))
	assert.Equal(t, "", Parent("a"))
	assert.Equal(t, "a.b", Join("a", "b"))
	assert.Equal(t, "b", Join("", "b"))
	assert.Equal(t, "a", Join("a", ""))
}
