// Package analysis drives the analysis passes over a set of entry points:
// preprocessing under import interception, postprocessing until the facts
// reach a fixed point, then one terminal pass producing the call graph or
// the key error findings.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"reachgraph/internal/core/errors"
	"reachgraph/internal/engine/imports"
	"reachgraph/internal/engine/parser"
	"reachgraph/internal/engine/passes"
	"reachgraph/internal/shared/observability"
	"reachgraph/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Operation string

const (
	OpCallGraph Operation = "call-graph"
	OpKeyError  Operation = "key-error"
)

const (
	stagePreprocess = "preprocess"
	stageFixedPoint = "fixed_point"
	stageResolution = "resolution"
)

const initModule = "__init__"

// Orchestrator runs one analysis. MaxIter bounds the fixed-point loop; a
// negative value leaves it unbounded.
type Orchestrator struct {
	EntryPoints []string
	Package     string
	MaxIter     int
	Operation   Operation

	env        *passes.Env
	state      *State
	iterations int
	converged  bool
}

// New creates an orchestrator whose resolver uses the process-wide lookup
// host and a private parse cache.
func New(entryPoints []string, pkg string, maxIter int, op Operation) *Orchestrator {
	o := &Orchestrator{
		EntryPoints: entryPoints,
		Package:     pkg,
		MaxIter:     maxIter,
		Operation:   op,
	}
	o.env = passes.NewEnv(imports.NewResolver(), nil)
	o.env.Resolver.SetPackage(pkg)
	return o
}

// WithHost routes module lookups through h instead of the process-wide host.
func (o *Orchestrator) WithHost(h *imports.Host) *Orchestrator {
	o.env.Resolver = imports.NewResolverWithHost(h)
	o.env.Resolver.SetPackage(o.Package)
	return o
}

// WithSources shares a parse cache across runs.
func (o *Orchestrator) WithSources(cache *parser.Cache) *Orchestrator {
	if cache != nil {
		o.env.Sources = cache
	}
	return o
}

// Env exposes the fact stores of the run.
func (o *Orchestrator) Env() *passes.Env {
	return o.env
}

func (o *Orchestrator) Iterations() int {
	return o.iterations
}

func (o *Orchestrator) Converged() bool {
	return o.converged
}

// Analyze runs the three stages. The context only carries tracing spans;
// the run itself is never interrupted.
func (o *Orchestrator) Analyze(ctx context.Context) (err error) {
	ctx, span := observability.Tracer.Start(ctx, "Orchestrator.Analyze", trace.WithAttributes(
		attribute.Int("entry_points", len(o.EntryPoints)),
		attribute.String("operation", string(o.Operation)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	slog.Info("running analysis", "entry_points", len(o.EntryPoints), "package", o.Package, "operation", o.Operation)

	if err := o.stage(ctx, stagePreprocess, o.preprocess); err != nil {
		return err
	}
	if err := o.stage(ctx, stageFixedPoint, o.fixedPoint); err != nil {
		return err
	}
	if err := o.stage(ctx, stageResolution, o.resolve); err != nil {
		return err
	}

	observability.FixedPointIterations.Set(float64(o.iterations))
	observability.ImportGraphNodes.Set(float64(len(o.env.Resolver.Graph())))
	observability.CallGraphNodes.Set(float64(o.env.CallGraph.NodeCount()))
	observability.CallGraphEdges.Set(float64(o.env.CallGraph.EdgeCount()))
	slog.Info("analysis finished",
		"iterations", o.iterations,
		"converged", o.converged,
		"functions", len(o.env.Defs.Functions()),
		"edges", o.env.CallGraph.EdgeCount(),
	)
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, name string, run func() error) error {
	_, span := observability.Tracer.Start(ctx, "Orchestrator."+name)
	defer span.End()

	start := time.Now()
	err := run()
	observability.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.AddContext(err, errors.CtxOperation, name)
	}
	slog.Debug("stage finished", "stage", name, "duration", time.Since(start))
	return nil
}

func (o *Orchestrator) preprocess() error {
	if err := o.DoPass(stagePreprocess, passes.PreProcessorFactory(o.env), true, passes.NewModuleSet()); err != nil {
		return err
	}
	o.env.Defs.Complete()
	return nil
}

func (o *Orchestrator) fixedPoint() error {
	for (o.MaxIter < 0 || o.iterations < o.MaxIter) && !o.HasConverged() {
		o.Snapshot()
		o.env.Scopes.ResetCounters()
		if err := o.DoPass(stageFixedPoint, passes.PostProcessorFactory(o.env), false, passes.NewModuleSet()); err != nil {
			return err
		}
		o.env.Defs.Complete()
		o.iterations++
		slog.Debug("fixed-point iteration", "iteration", o.iterations, "definitions", o.env.Defs.Len())
	}
	o.converged = o.HasConverged()
	return nil
}

func (o *Orchestrator) resolve() error {
	o.env.Scopes.ResetCounters()

	var factory passes.Factory
	switch o.Operation {
	case OpCallGraph:
		factory = passes.CallGraphProcessorFactory(o.env)
	case OpKeyError:
		factory = passes.KeyErrProcessorFactory(o.env)
	default:
		return errors.New(errors.CodeConfiguration, fmt.Sprintf("unsupported operation %q", o.Operation))
	}
	return o.DoPass(stageResolution, factory, false, passes.NewModuleSet())
}

// DoPass runs one pass per entry point whose module analyzed does not hold
// yet. With installHooks the import interception is installed around each
// individual pass.
func (o *Orchestrator) DoPass(stage string, factory passes.Factory, installHooks bool, analyzed passes.ModuleSet) error {
	for _, entry := range o.EntryPoints {
		module, root, ok := o.moduleName(entry)
		if !ok {
			slog.Warn("skipping entry point without a module name", "path", entry)
			continue
		}
		if analyzed.Has(module) {
			continue
		}

		run := func() error {
			pass := factory(entry, module, analyzed)
			if err := pass.Analyze(); err != nil {
				return err
			}
			analyzed.Merge(pass.ModulesAnalyzed())
			return nil
		}

		observability.PassRunsTotal.WithLabelValues(stage).Inc()
		var err error
		if installHooks {
			o.env.Resolver.SetPackage(root)
			err = o.env.Resolver.WithInterception(run)
		} else {
			err = run()
		}
		if err != nil {
			return errors.AddContext(err, errors.CtxPath, entry)
		}
	}
	return nil
}

// moduleName derives the module of an entry file from its path relative to
// the package root, or to its own directory when no root is configured. A
// package initializer shares the name of its package.
func (o *Orchestrator) moduleName(entry string) (string, string, bool) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", "", false
	}
	root := o.Package
	if root == "" {
		root = filepath.Dir(abs)
	}
	if root, err = filepath.Abs(root); err != nil {
		return "", "", false
	}
	if !util.IsWithinDir(abs, root) {
		return "", "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", "", false
	}

	name := util.ToModuleName(rel)
	if trimmed, ok := strings.CutSuffix(name, "."+initModule); ok {
		name = trimmed
	}
	if name == "" {
		return "", "", false
	}
	return name, root, true
}

// Snapshot records the current facts as the reference for HasConverged.
func (o *Orchestrator) Snapshot() {
	o.state = o.ExtractState()
}

func (o *Orchestrator) ExtractState() *State {
	return extractState(o.env.Defs, o.env.Scopes, o.env.Classes)
}

// HasConverged reports whether the facts equal the last snapshot. Without a
// snapshot nothing has converged.
func (o *Orchestrator) HasConverged() bool {
	if o.state == nil {
		return false
	}
	return o.state.Equal(o.ExtractState())
}
