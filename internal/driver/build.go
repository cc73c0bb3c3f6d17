package driver

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/buildgrid/internal/analyzer"
	"github.com/vk/buildgrid/internal/bgerrors"
	"github.com/vk/buildgrid/internal/cache"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dispatch"
	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/graph"
	"github.com/vk/buildgrid/internal/hashstore"
	"github.com/vk/buildgrid/internal/plan"
	"github.com/vk/buildgrid/internal/progress"
	"github.com/vk/buildgrid/internal/scheduler"
	"github.com/vk/buildgrid/internal/staleness"
	"github.com/vk/buildgrid/internal/syntax"
)

// Deps bundles the collaborators Build needs beyond the plan/env/Config
// triple: the sub-document extractor and the dispatch registry, both
// modeled as narrow interfaces per spec §1.
type Deps struct {
	Subdoc   analyzer.SubdocExtractor
	Backends *dispatch.Registry
	Reporter *progress.Reporter
}

// Build implements the invocation surface (spec §6): it analyzes p's
// commands and env's imports, assembles the dependency graph, determines
// which targets are outdated, schedules their rebuild, and returns a
// tallied Summary.
func Build(ctx context.Context, p plan.Plan, env environ.Env, cfg Config, deps Deps) (scheduler.Summary, error) {
	cfg = cfg.withDefaults()
	logger := ctxlog.FromContext(ctx)

	if err := checkDuplicateTargets(p); err != nil {
		return scheduler.Summary{}, bgerrors.New(bgerrors.NameCollision, "", err)
	}

	opts := analyzer.Options{Subdoc: deps.Subdoc}
	targetDeps := make(map[string]*analyzer.DepSet, len(p))
	var roots []string
	for _, row := range p {
		d, err := analyzer.Analyze(row.Command, opts)
		if err != nil {
			return scheduler.Summary{}, bgerrors.New(bgerrors.ParseError, row.Target, err)
		}
		d.RemoveSelf(row.Target)
		targetDeps[row.Target] = d
		roots = append(roots, refNames(d)...)
	}

	importDeps, err := environ.Scan(env, roots)
	if err != nil {
		return scheduler.Summary{}, bgerrors.New(bgerrors.ParseError, "", err)
	}

	result, err := graph.Build(p, env, targetDeps, importDeps, graph.Options{Strict: cfg.Strict})
	if err != nil {
		var cyc graph.CyclicPlanError
		if isCyclicPlanError(err, &cyc) {
			return scheduler.Summary{}, bgerrors.New(bgerrors.CyclicPlan, "", err)
		}
		if _, ok := err.(graph.NameCollisionError); ok {
			return scheduler.Summary{}, bgerrors.New(bgerrors.NameCollision, "", err)
		}
		return scheduler.Summary{}, bgerrors.New(bgerrors.MissingDependency, "", err)
	}
	for _, w := range result.Warnings {
		logger.Warn("graph build warning", "error", w)
	}

	store, err := cache.Open(ctx, cfg.CacheDir, cfg.ShortHashAlgo, cfg.LongHashAlgo)
	if err != nil {
		return scheduler.Summary{}, bgerrors.New(bgerrors.CacheError, "", err)
	}

	rows := p.ByName()
	g := result.Graph
	layers := g.Layers()

	initial, err := determineOutdated(rows, g, targetDeps, store, cfg)
	if err != nil {
		return scheduler.Summary{}, bgerrors.New(bgerrors.CacheError, "", err)
	}
	outdated := propagateOutdated(layers, g, initial)

	maxUseful := graph.MaxUsefulParallelism(layers, outdated)
	logger.Debug("computed build plan", "outdated", len(outdated), "max_useful_parallelism", maxUseful)

	built := &builtValues{values: map[string]cty.Value{}, mu: sync.Mutex{}}
	for name := range rows {
		if outdated[name] {
			continue
		}
		v, ok, err := loadCachedValue(store, name)
		if err != nil {
			return scheduler.Summary{}, bgerrors.New(bgerrors.CacheError, name, err)
		}
		if ok {
			built.set(name, v)
			deps.Reporter.Emit(progress.KindUpToDate, name, nil)
		}
	}

	buildFn := makeBuildFunc(ctx, deps, cfg, rows, targetDeps, g, store, built)

	var summary scheduler.Summary
	switch cfg.Strategy {
	case StrategyStaged:
		byName := map[string]scheduler.WorkItem{}
		for _, layer := range layers {
			for _, name := range layer {
				if row, ok := rows[name]; ok && outdated[name] {
					byName[name] = newWorkItem(row, cfg)
				}
			}
		}
		s := &scheduler.Staged{MaxParallel: cfg.MaxParallel, KeepGoing: cfg.KeepGoing, Build: buildFn}
		summary, err = s.Run(ctx, layers, byName)
	default:
		var items []scheduler.WorkItem
		depsByName := map[string][]string{}
		for name := range outdated {
			row := rows[name]
			items = append(items, newWorkItem(row, cfg))
			var preds []string
			for _, d := range g.Dependencies(name) {
				if node := g.Node(d); node != nil && node.Kind == graph.Target && outdated[d] {
					preds = append(preds, d)
				}
			}
			depsByName[name] = preds
		}
		s := &scheduler.Dynamic{MaxParallel: cfg.MaxParallel, KeepGoing: cfg.KeepGoing, Build: buildFn}
		summary, err = s.Run(ctx, items, depsByName)
	}

	if err != nil && ctx.Err() != nil {
		return summary, bgerrors.New(bgerrors.Cancelled, "", ctx.Err())
	}
	if err != nil {
		return summary, bgerrors.New(bgerrors.EvalError, "", err)
	}
	return summary, nil
}

type builtValues struct {
	mu     sync.Mutex
	values map[string]cty.Value
}

func (b *builtValues) set(name string, v cty.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = v
}

func (b *builtValues) get(name string) (cty.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[name]
	return v, ok
}

// newWorkItem builds a WorkItem without its EvalScope: dependency values
// aren't all known yet at construction time (the scheduler dispatches
// items as their predecessors complete), so the scope is populated by
// makeBuildFunc immediately before dispatch instead.
func newWorkItem(row plan.Row, cfg Config) scheduler.WorkItem {
	return scheduler.WorkItem{
		Name:        row.Target,
		Command:     row.Command,
		CachingSite: cfg.Caching,
		Seed:        scheduler.Seed(cfg.RootSeed, row.Target),
	}
}

func evalScope(g *graph.Graph, built *builtValues, target string) map[string]cty.Value {
	scope := map[string]cty.Value{}
	for _, d := range g.Dependencies(target) {
		if node := g.Node(d); node != nil && node.Kind == graph.Target {
			if v, ok := built.get(d); ok {
				scope[d] = v
			}
		}
	}
	return scope
}

func makeBuildFunc(ctx context.Context, deps Deps, cfg Config, rows map[string]plan.Row, targetDeps map[string]*analyzer.DepSet, g *graph.Graph, store *cache.Store, built *builtValues) scheduler.BuildFunc {
	logger := ctxlog.FromContext(ctx)
	return func(ctx context.Context, item scheduler.WorkItem) scheduler.Outcome {
		deps.Reporter.Emit(progress.KindBuilding, item.Name, nil)
		row := rows[item.Name]
		item.EvalScope = evalScope(g, built, item.Name)

		backend, err := deps.Backends.Resolve(row.Evaluator)
		if err != nil {
			deps.Reporter.Emit(progress.KindFailed, item.Name, err)
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}

		outcome, err := dispatchWithRetry(ctx, backend, item)
		if err != nil {
			deps.Reporter.Emit(progress.KindFailed, item.Name, err)
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}
		if outcome.Status == scheduler.StatusFailed {
			deps.Reporter.Emit(progress.KindFailed, item.Name, outcome.Err)
			recordFailedMeta(store, item.Name)
			return outcome
		}

		built.set(item.Name, outcome.Value)
		if err := commitMeta(store, item.Name, item.Command, targetDeps[item.Name], g, built, outcome.Value); err != nil {
			logger.Error("failed to commit meta record", "target", item.Name, "error", err)
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}
		deps.Reporter.Emit(progress.KindBuilt, item.Name, nil)
		return outcome
	}
}

// dispatchWithRetry retries a single BackendError exactly once before
// escalating it (spec §9 "pins this to one retry").
func dispatchWithRetry(ctx context.Context, backend dispatch.Backend, item scheduler.WorkItem) (scheduler.Outcome, error) {
	ch, err := backend.Dispatch(ctx, item)
	if err != nil {
		ch, err = backend.Dispatch(ctx, item)
		if err != nil {
			return scheduler.Outcome{}, bgerrors.New(bgerrors.EvalError, item.Name, bgerrors.New(bgerrors.BackendError, item.Name, err))
		}
	}
	return <-ch, nil
}

func recordFailedMeta(store *cache.Store, name string) {
	_ = store.Put(name, &hashstore.Meta{Target: name, Failed: true, BuiltAt: time.Time{}})
}

func commitMeta(store *cache.Store, name string, cmd syntax.Expr, deps *analyzer.DepSet, g *graph.Graph, built *builtValues, value cty.Value) error {
	valueHash, err := hashstore.ValueHash(value)
	if err != nil {
		return fmt.Errorf("driver: hashing value for %q: %w", name, err)
	}
	simple := ctyjson.SimpleJSONValue{Value: value}
	data, err := simple.MarshalJSON()
	if err != nil {
		return fmt.Errorf("driver: encoding value for %q: %w", name, err)
	}
	if err := store.PutObject(valueHash, data); err != nil {
		return fmt.Errorf("driver: writing object for %q: %w", name, err)
	}

	dependNames := targetDependencyNames(g, name)
	pairs := make([]hashstore.DependPair, 0, len(dependNames))
	for _, dep := range dependNames {
		hash, ok := dependencyCurrentHash(store, dep)
		if !ok {
			hash = "<unbuilt>"
		}
		pairs = append(pairs, hashstore.DependPair{Name: dep, Hash: hash})
	}

	m := &hashstore.Meta{
		Target:      name,
		CommandHash: hashstore.CommandHash(syntax.Deparse(cmd)),
		DependsHash: hashstore.DependHash(pairs),
		ValueHash:   valueHash,
		BuiltAt:     time.Time{},
	}
	m.OutputHashes = map[string]string{}
	for path := range deps.Writes {
		if data, err := os.ReadFile(path); err == nil {
			m.OutputHashes[path] = hashstore.FileHash(data)
		}
	}
	return store.Put(name, m)
}

func targetDependencyNames(g *graph.Graph, name string) []string {
	var out []string
	for _, d := range g.Dependencies(name) {
		node := g.Node(d)
		if node == nil {
			continue
		}
		switch node.Kind {
		case graph.Target, graph.ImportedObject, graph.ImportedFunction, graph.InputFile:
			out = append(out, d)
		}
	}
	return out
}

// dependencyCurrentHash resolves a single dependency's current hash for
// depends_hash purposes: an input file's hash is read straight off disk
// (spec §4.D "file hash"), everything else comes from its cached meta
// record, with the "<unbuilt>" sentinel when no record exists yet (spec
// §4.E "Dependencies that are not yet built").
func dependencyCurrentHash(store *cache.Store, dep string) (string, bool) {
	if path, ok := strings.CutPrefix(dep, "file:"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return hashstore.FileHash(data), true
	}
	m, ok, _ := store.Get(dep)
	if !ok {
		return "", false
	}
	return m.ValueHash, true
}

func loadCachedValue(store *cache.Store, name string) (cty.Value, bool, error) {
	m, ok, err := store.Get(name)
	if err != nil || !ok || m.Failed {
		return cty.NilVal, false, err
	}
	data, ok, err := store.GetObject(m.ValueHash)
	if err != nil || !ok {
		return cty.NilVal, false, err
	}
	var simple ctyjson.SimpleJSONValue
	if err := simple.UnmarshalJSON(data); err != nil {
		return cty.NilVal, false, err
	}
	return simple.Value, true, nil
}

func determineOutdated(rows map[string]plan.Row, g *graph.Graph, targetDeps map[string]*analyzer.DepSet, store *cache.Store, cfg Config) (map[string]bool, error) {
	out := map[string]bool{}
	for name, row := range rows {
		m, found, err := store.Get(name)
		if err != nil {
			return nil, err
		}
		var meta *hashstore.Meta
		if found {
			meta = m
		}

		dependNames := targetDependencyNames(g, name)
		cur := staleness.Current{
			CommandHash:  hashstore.CommandHash(syntax.Deparse(row.Command)),
			Dependencies: dependNames,
			OutputFiles:  sortedKeys(targetDeps[name].Writes),
			DependHash: func(dep string) (string, bool) {
				return dependencyCurrentHash(store, dep)
			},
		}
		if meta != nil {
			cur.ObjectExists, _ = store.Exists(meta.ValueHash, string(cache.NamespaceObjects))
		}
		if staleness.Outdated(row, row.EffectiveTrigger(cfg.TriggerDefault), meta, cur) {
			out[name] = true
		}
	}
	return out, nil
}

// propagateOutdated closes the outdated set under the graph's edges: any
// target depending, directly or transitively, on an outdated target is
// itself outdated, since the dependency's value (and with it the dependent's
// depends_hash) may change when it rebuilds, while its cached meta still
// reports the old value hash (spec §4.E rule 4).
func propagateOutdated(layers [][]string, g *graph.Graph, initial map[string]bool) map[string]bool {
	out := make(map[string]bool, len(initial))
	for k := range initial {
		out[k] = true
	}
	for _, layer := range layers {
		for _, name := range layer {
			node := g.Node(name)
			if node == nil || node.Kind != graph.Target || out[name] {
				continue
			}
			for _, dep := range g.Dependencies(name) {
				if out[dep] {
					out[name] = true
					break
				}
			}
		}
	}
	return out
}

func refNames(d *analyzer.DepSet) []string {
	var out []string
	for n := range d.Globals {
		out = append(out, n)
	}
	for n := range d.Loads {
		out = append(out, n)
	}
	for n := range d.Subdocs {
		out = append(out, n)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func checkDuplicateTargets(p plan.Plan) error {
	seen := map[string]bool{}
	for _, row := range p {
		if seen[row.Target] {
			return fmt.Errorf("driver: duplicate target name %q", row.Target)
		}
		seen[row.Target] = true
	}
	return nil
}

func isCyclicPlanError(err error, out *graph.CyclicPlanError) bool {
	if c, ok := err.(graph.CyclicPlanError); ok {
		*out = c
		return true
	}
	return false
}
