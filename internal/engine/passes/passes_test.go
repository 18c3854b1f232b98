package passes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/imports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a Python source tree written to a temporary package root.
type fixture struct {
	root string
	env  *Env
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	resolver := imports.NewResolverWithHost(imports.NewHost())
	resolver.SetPackage(root)
	env := NewEnv(resolver, nil)
	t.Cleanup(env.Sources.Close)
	return &fixture{root: root, env: env}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func moduleOf(rel string) string {
	return strings.ReplaceAll(strings.TrimSuffix(rel, ".py"), "/", ".")
}

// run drives the stages by hand: preprocess under interception, a fixed
// number of postprocess rounds, then the terminal pass.
func (f *fixture) run(t *testing.T, terminal func(*Env) Factory, entries ...string) {
	t.Helper()

	analyzed := NewModuleSet()
	for _, rel := range entries {
		err := f.env.Resolver.WithInterception(func() error {
			return NewPreProcessor(f.env, f.path(rel), moduleOf(rel), analyzed).Analyze()
		})
		require.NoError(t, err)
	}
	f.env.Defs.Complete()

	for i := 0; i < 4; i++ {
		f.env.Scopes.ResetCounters()
		analyzed := NewModuleSet()
		for _, rel := range entries {
			require.NoError(t, PostProcessorFactory(f.env)(f.path(rel), moduleOf(rel), analyzed).Analyze())
		}
		f.env.Defs.Complete()
	}

	f.env.Scopes.ResetCounters()
	analyzed = NewModuleSet()
	for _, rel := range entries {
		require.NoError(t, terminal(f.env)(f.path(rel), moduleOf(rel), analyzed).Analyze())
	}
}

func TestCallGraph_ImportedFunction(t *testing.T) {
	f := newFixture(t, map[string]string{
		"main.py": "from mod import func\n\ndef main():\n    func()\n\nmain()\n",
		"mod.py":  "def func():\n    pass\n",
	})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.Equal(t, []string{"main.main"}, graph["main"])
	assert.Equal(t, []string{"mod.func"}, graph["main.main"])
	assert.Empty(t, graph["mod.func"])

	modules := f.env.CallGraph.Modules()
	assert.Equal(t, "mod", modules["mod.func"])
	assert.Equal(t, "main", modules["main.main"])

	ext := f.env.CallGraph.Extended()["main.main"]
	require.Len(t, ext.Dsts, 1)
	assert.Equal(t, callgraph.EdgeRecord{Dst: "mod.func", Line: 4, Module: "main"}, ext.Dsts[0])

	names := []string{}
	for _, ep := range f.env.CallGraph.Entrypoints() {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"mod", "main"}, names)
	latest, ok := f.env.CallGraph.LatestEntrypoint()
	require.True(t, ok)
	assert.Equal(t, "main", latest.Name)
}

func TestCallGraph_MethodsAndConstructors(t *testing.T) {
	src := `class Base:
    def __init__(self):
        self.helper()

    def helper(self):
        pass

class Child(Base):
    def run(self):
        return self.helper()

def make():
    c = Child()
    c.run()
    return c

make()
`
	f := newFixture(t, map[string]string{"main.py": src})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.Equal(t, []string{"main.Base.helper"}, graph["main.Base.__init__"])
	assert.Equal(t, []string{"main.Base.helper"}, graph["main.Child.run"])
	assert.Equal(t, []string{"main.Base.__init__", "main.Child.run"}, graph["main.make"])
	assert.Equal(t, []string{"main.make"}, graph["main"])

	cls, ok := f.env.Classes.Get("main.Child")
	require.True(t, ok)
	assert.Equal(t, []string{"main.Child", "main.Base"}, cls.MRO)

	mod, ok := f.env.Modules.Get("main")
	require.True(t, ok)
	assert.Equal(t, 12, mod.Methods["main.make"].First)
	assert.GreaterOrEqual(t, mod.Methods["main.make"].Last, 15)
}

func TestCallGraph_SuperCall(t *testing.T) {
	src := `class A:
    def __init__(self, x):
        self.x = x

class B(A):
    def __init__(self):
        super().__init__(1)

B()
`
	f := newFixture(t, map[string]string{"main.py": src})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.Contains(t, graph["main.B.__init__"], "main.A.__init__")
	assert.Equal(t, []string{"main.B.__init__"}, graph["main"])

	x, ok := f.env.Defs.Get("main.A.__init__.x")
	require.True(t, ok)
	assert.True(t, x.Lits.Has("1"))
}

func TestCallGraph_ExternalAndBuiltinCalls(t *testing.T) {
	src := `import os
import json as j

def main():
    print("hi")
    os.path.join("a", "b")
    j.dumps({})
`
	f := newFixture(t, map[string]string{"main.py": src})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.ElementsMatch(t, []string{"<builtin>.print", "json.dumps", "os.path.join"}, graph["main.main"])

	modules := f.env.CallGraph.Modules()
	assert.Equal(t, "os", modules["os.path.join"])
	assert.Equal(t, "<builtin>", modules["<builtin>.print"])

	var join callgraph.EdgeRecord
	for _, rec := range f.env.CallGraph.Extended()["main.main"].Dsts {
		if rec.Dst == "os.path.join" {
			join = rec
		}
	}
	assert.Equal(t, callgraph.EdgeRecord{Dst: "os.path.join", Line: 6, Module: "main", ExtModule: "os"}, join)

	_, ok := f.env.Modules.External()["os"]
	assert.True(t, ok)
	_, ok = f.env.Modules.External()["json"]
	assert.True(t, ok)
}

func TestCallGraph_HigherOrderAndLambdas(t *testing.T) {
	src := `def apply(fn, x):
    return fn(x)

def double(v):
    return v * 2

def main():
    apply(double, 1)
    apply(lambda y: y, 2)
`
	f := newFixture(t, map[string]string{"main.py": src})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.Equal(t, []string{"main.double", "main.main.<lambda0>"}, graph["main.apply"])
	assert.Equal(t, []string{"main.apply"}, graph["main.main"])
	assert.True(t, f.env.CallGraph.HasNode("main.main.<lambda0>"))

	v, ok := f.env.Defs.Get("main.double.v")
	require.True(t, ok)
	assert.True(t, v.Lits.Has("1"))
}

func TestCallGraph_PackagesAndRelativeImports(t *testing.T) {
	f := newFixture(t, map[string]string{
		"main.py":         "import pkg.app\n\npkg.app.run()\n",
		"pkg/__init__.py": "",
		"pkg/util.py":     "def helper():\n    pass\n",
		"pkg/app.py":      "from . import util\nfrom .util import helper\n\ndef run():\n    util.helper()\n    helper()\n",
	})
	f.run(t, CallGraphProcessorFactory, "main.py")

	graph := f.env.CallGraph.Get()
	assert.Equal(t, []string{"pkg.app.run"}, graph["main"])
	assert.Equal(t, []string{"pkg.util.helper"}, graph["pkg.app.run"])
	assert.Len(t, f.env.CallGraph.Extended()["pkg.app.run"].Dsts, 2)

	for _, name := range []string{"main", "pkg", "pkg.app", "pkg.util"} {
		assert.True(t, f.env.Modules.IsInternal(name), name)
	}
	assert.Contains(t, f.env.Resolver.Imports("pkg.app"), "pkg.util")
}

func TestKeyErrors(t *testing.T) {
	src := `def main():
    d = {"a": 1}
    d["a"]
    d["b"]
    d["c"] = 3
    d["c"]
`
	f := newFixture(t, map[string]string{"main.py": src})
	f.run(t, KeyErrProcessorFactory, "main.py")

	found := f.env.KeyErrors.All()
	require.Len(t, found, 1)
	assert.Equal(t, 4, found[0].Line)
	assert.Equal(t, "main.main", found[0].Namespace)
	assert.Equal(t, "b", found[0].Key)
	assert.Equal(t, f.path("main.py"), found[0].Filename)
	assert.Zero(t, f.env.CallGraph.NodeCount())
}

func TestPreProcessor_AnalysesModuleOnce(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\n",
	})
	analyzed := NewModuleSet()
	err := f.env.Resolver.WithInterception(func() error {
		if err := NewPreProcessor(f.env, f.path("a.py"), "a", analyzed).Analyze(); err != nil {
			return err
		}
		return NewPreProcessor(f.env, f.path("b.py"), "b", analyzed).Analyze()
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, analyzed.Sorted())
	assert.Equal(t, [][]string{{"a", "b"}}, f.env.Resolver.Cycles())
}

func TestPass_MissingFile(t *testing.T) {
	f := newFixture(t, nil)
	err := f.env.Resolver.WithInterception(func() error {
		return NewPreProcessor(f.env, f.path("gone.py"), "gone", nil).Analyze()
	})
	require.Error(t, err)
}
