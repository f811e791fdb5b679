package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

const (
	upsertEdgeQuery = `
		MERGE (s:Node {id: $source})
		MERGE (t:Node {id: $target})
		MERGE (s)-[r:REL {type: $rel}]->(t)
		SET r.props = $props
	`
	queryEdgesQuery = `
		MATCH (:Node {id: $source})-[r:REL {type: $rel}]->(t:Node)
		RETURN t.id AS target, r.props AS props
		ORDER BY target
	`
	countEdgesQuery = `MATCH (s:Node)-[r:REL]->(t:Node) RETURN count(DISTINCT [s.id, r.type, t.id]) AS n`

	neo4jNodeConstraint    = "CREATE CONSTRAINT node_id IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE"
	memgraphNodeConstraint = "CREATE CONSTRAINT ON (n:Node) ASSERT n.id IS UNIQUE;"
)

// nodeConstraint returns the statement that makes node ids unique, so
// concurrent MERGEs of one node resolve to a single node.
func nodeConstraint(backend string) string {
	if strings.EqualFold(backend, "memgraph") {
		return memgraphNodeConstraint
	}
	return neo4jNodeConstraint
}

// CypherRunner executes one Cypher statement and returns all records.
type CypherRunner interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Neo4jGraph stores edges in Neo4j or Memgraph. Properties are kept as a JSON
// string on the relationship because nested maps are not valid property values.
// MERGE does not lock a relationship that does not exist yet, so upserts from
// one process are serialized and Query drops duplicate targets written by
// other processes.
type Neo4jGraph struct {
	run    CypherRunner
	closer func(ctx context.Context) error
	mu     sync.Mutex
}

// NewNeo4jGraphWithRunner wraps an existing runner; used by tests.
func NewNeo4jGraphWithRunner(run CypherRunner) *Neo4jGraph {
	return &Neo4jGraph{run: run, closer: func(context.Context) error { return nil }}
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	res, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return res, nil
}

// NewNeo4jGraph connects to the configured server and ensures the node index.
func NewNeo4jGraph(ctx context.Context, cfg config.GraphConfig, log *logger.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	g := &Neo4jGraph{
		run:    &driverRunner{driver: driver, database: cfg.Database},
		closer: driver.Close,
	}
	constraint := nodeConstraint(cfg.Backend)
	if _, err := g.run.ExecuteQuery(ctx, constraint, nil); err != nil {
		// the constraint may already exist under another name
		log.Warn("failed to create node id constraint", "query", constraint, "error", err)
	}
	log.Info("graph backend connected", "backend", cfg.Backend, "uri", cfg.URI)
	return g, nil
}

func (g *Neo4jGraph) Upsert(ctx context.Context, e model.Edge) error {
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
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err = g.run.ExecuteQuery(ctx, upsertEdgeQuery, map[string]any{
		"source": e.Source,
		"rel":    e.Rel,
		"target": e.Target,
		"props":  string(b),
	})
	return err
}

func (g *Neo4jGraph) Query(ctx context.Context, source, rel string) ([]model.Edge, error) {
	res, err := g.run.ExecuteQuery(ctx, queryEdgesQuery, map[string]any{"source": source, "rel": rel})
	if err != nil {
		return nil, err
	}
	edges := make([]model.Edge, 0, len(res.Records))
	seen := make(map[string]bool, len(res.Records))
	for _, rec := range res.Records {
		target, _ := rec.Get("target")
		raw, _ := rec.Get("props")
		tid, ok := target.(string)
		if !ok || seen[tid] {
			continue
		}
		seen[tid] = true
		props := map[string]any{}
		if s, ok := raw.(string); ok && s != "" {
			if err := json.Unmarshal([]byte(s), &props); err != nil {
				return nil, fmt.Errorf("decode edge %s -> %s: %w", source, tid, err)
			}
		}
		edges = append(edges, model.Edge{Source: source, Rel: rel, Target: tid, Properties: props})
	}
	return edges, nil
}

func (g *Neo4jGraph) Count(ctx context.Context) (int, error) {
	res, err := g.run.ExecuteQuery(ctx, countEdgesQuery, nil)
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	n, _ := res.Records[0].Get("n")
	switch v := n.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	}
	return 0, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.closer(ctx)
}
