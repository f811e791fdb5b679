package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/kv"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// SQLiteGraph stores edges as substrate keys ns|source|rel|target, so the
// triple is unique and one-hop reads are a prefix scan.
type SQLiteGraph struct {
	kv kv.Substrate
	ns string
}

func NewSQLiteGraph(sub kv.Substrate, namespace string) *SQLiteGraph {
	if namespace == "" {
		namespace = "g"
	}
	return &SQLiteGraph{kv: sub, ns: namespace}
}

func (g *SQLiteGraph) Upsert(ctx context.Context, e model.Edge) error {
	if e.Source == "" || e.Rel == "" || e.Target == "" {
		return fmt.Errorf("upsert edge: incomplete triple (%q, %q, %q)", e.Source, e.Rel, e.Target)
	}
	props := e.Properties
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal edge properties: %w", err)
	}
	return g.kv.Put(ctx, joinKey(g.ns, cleanPart(e.Source), cleanPart(e.Rel), cleanPart(e.Target)), b)
}

func (g *SQLiteGraph) Query(ctx context.Context, source, rel string) ([]model.Edge, error) {
	prefix := joinKey(g.ns, cleanPart(source), cleanPart(rel), "")
	pairs, err := g.kv.Scan(ctx, kv.ScanParams{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	edges := make([]model.Edge, 0, len(pairs))
	for _, pair := range pairs {
		props := map[string]any{}
		if err := json.Unmarshal(pair.Value, &props); err != nil {
			return nil, fmt.Errorf("decode edge %s: %w", pair.Key, err)
		}
		edges = append(edges, model.Edge{
			Source:     source,
			Rel:        rel,
			Target:     strings.TrimPrefix(pair.Key, prefix),
			Properties: props,
		})
	}
	return edges, nil
}

func (g *SQLiteGraph) Count(ctx context.Context) (int, error) {
	return g.kv.Count(ctx, joinKey(g.ns, ""))
}
