// Package app wires configuration into the stores, pipeline and dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/dispatch"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/embedding"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/ingest"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/kv"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/tools"
)

// App holds the long-lived components for one process.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	TimeSeries *store.TimeSeries
	Graph      store.Graph
	Index      *store.Index
	Embedder   embedding.Embedder
	Pipeline   *ingest.Pipeline
	Tools      *tools.Service
	Dispatcher *dispatch.Dispatcher

	substrates map[string]*kv.SQLiteStore
	paths      []string
	closers    []func() error
}

// New opens the stores named by cfg. Stores configured with the same path
// share one SQLite handle.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{Config: cfg, Log: log, substrates: map[string]*kv.SQLiteStore{}}

	tsSub, err := a.substrate(cfg.TimeSeries.Path)
	if err != nil {
		return nil, a.fail(err)
	}
	a.TimeSeries = store.NewTimeSeries(tsSub, cfg.TimeSeries.Namespace)

	switch strings.ToLower(cfg.Graph.Backend) {
	case "neo4j", "memgraph":
		g, err := store.NewNeo4jGraph(ctx, cfg.Graph, log)
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, func() error { return g.Close(context.Background()) })
		a.Graph = g
	default:
		gs := cfg.Graph.Store()
		gSub, err := a.substrate(gs.Path)
		if err != nil {
			return nil, a.fail(err)
		}
		a.Graph = store.NewSQLiteGraph(gSub, gs.Namespace)
	}

	a.Embedder, err = embedding.New(cfg.Embedding, log)
	if err != nil {
		return nil, a.fail(err)
	}
	eSub, err := a.substrate(cfg.Embeddings.Path)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Index = store.NewIndex(eSub, cfg.Embeddings.Namespace, a.Embedder, cfg.Embedding.Dims)

	a.Pipeline = ingest.New(a.TimeSeries, a.Graph, a.Index, a.Embedder, ingest.OptionsFromConfig(cfg, log))
	a.Tools = tools.New(a.TimeSeries, a.Graph, a.Index, tools.Options{
		Recommend: &cfg.Recommend,
		Market:    &cfg.Market,
	})
	a.Dispatcher = dispatch.New(a.Tools, log)

	log.Debug("app ready", "db_paths", a.paths, "graph_backend", cfg.Graph.Backend, "embedding_provider", cfg.Embedding.Provider)
	return a, nil
}

func (a *App) substrate(path string) (*kv.SQLiteStore, error) {
	if path == "" {
		path = config.DefaultDBPath()
	}
	if s, ok := a.substrates[path]; ok {
		return s, nil
	}
	s, err := kv.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	a.substrates[path] = s
	a.paths = append(a.paths, path)
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *App) fail(err error) error {
	if cerr := a.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Stats reports store contents and database sizes.
func (a *App) Stats(ctx context.Context) (*store.Stats, error) {
	return store.CollectStats(ctx, a.TimeSeries, a.Graph, a.Index, a.paths...)
}

// Close releases every store handle.
func (a *App) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	a.closers = nil
	return errors.Join(errList...)
}
