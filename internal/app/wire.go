// Package app hand-assembles the engine's provider graph: the same
// Provide*-function-returning-(value, cleanup, error) shape google/wire's
// generated wire_gen.go files follow, wired by hand here since no
// generator runs against this package. The graph this file documents:
//
//	ProvideAuthRegistry -> *auth.Registry
//	ProvideOpsRegistry  -> *ops.Registry (builtins gated by a BuiltinSet)
//	ProvideMemoCache    -> *memo.Cache
//	ProvideTrackingStore(cfg) -> tracking.Store (postgres or mysql, per cfg.TrackingBackend)
//	ProvideEngine(cfg, registry, auth, memo, store) -> *Engine
//
// wire.NewSet below exists purely as documentation of that graph: keeping
// a `var Set = wire.NewSet(...)` next to the provider functions it
// describes even though nothing invokes it at build time here.
package app

import (
	"context"

	"github.com/google/wire"

	"github.com/indexflow/indexflow/internal/auth"
	"github.com/indexflow/indexflow/internal/config"
	"github.com/indexflow/indexflow/internal/memo"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/tracking"
	"github.com/indexflow/indexflow/internal/tracking/mysql"
	"github.com/indexflow/indexflow/internal/tracking/pg"
)

// Set documents the provider graph; see the package doc comment.
var Set = wire.NewSet(
	ProvideAuthRegistry,
	ProvideOpsRegistry,
	ProvideMemoCache,
	ProvideTrackingStore,
	ProvideEngine,
)

// Engine bundles the process-wide services a flow builder/evaluator needs:
// the operator registry, the auth registry, the memoization cache, and
// the tracking store backing every flow's row/source state.
type Engine struct {
	Config   *config.EngineConfig
	Registry *ops.Registry
	Auth     *auth.Registry
	Memo     *memo.Cache
	Store    tracking.Store
}

// ProvideAuthRegistry returns a fresh, empty auth registry.
func ProvideAuthRegistry() *auth.Registry {
	return auth.New()
}

// ProvideOpsRegistry returns the process-wide operator registry with every
// builtin family enabled; Global() is a lazy singleton, so repeated calls
// within a process share the same registry.
func ProvideOpsRegistry() *ops.Registry {
	return ops.Global()
}

// ProvideMemoCache returns a fresh memoization cache, scoped to one
// Engine's lifetime (the original's memoization is explicitly run-scoped,
// see SPEC_FULL.md's open-questions section on cross-run persistence).
func ProvideMemoCache() *memo.Cache {
	return memo.New()
}

// ProvideTrackingStore opens the tracking store cfg names, returning a
// cleanup func the caller must invoke (the (value, cleanup, error) wire
// provider shape) to release its connection pool.
func ProvideTrackingStore(ctx context.Context, cfg *config.EngineConfig) (tracking.Store, func(), error) {
	var store tracking.Store
	var err error
	switch cfg.TrackingBackend {
	case config.TrackingMySQL:
		store, err = mysql.Open(ctx, cfg.TrackingDSN, cfg.WaitForTrackingDB)
	default:
		store, err = pg.Open(ctx, cfg.TrackingDSN, cfg.WaitForTrackingDB)
	}
	if err != nil {
		return nil, func() {}, err
	}
	return store, func() { _ = store.Close() }, nil
}

// ProvideEngine assembles an Engine from its already-provided parts.
func ProvideEngine(cfg *config.EngineConfig, registry *ops.Registry, authReg *auth.Registry, memoCache *memo.Cache, store tracking.Store) *Engine {
	return &Engine{Config: cfg, Registry: registry, Auth: authReg, Memo: memoCache, Store: store}
}
