// Package store implements the time-series, graph and embedding stores on top
// of the key-value substrate.
package store

import (
	"context"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// Graph is the relationship store contract. The SQLite implementation keys
// edges on the substrate; Neo4jGraph targets a Bolt-compatible server.
type Graph interface {
	// Upsert creates the edge or overwrites its properties.
	Upsert(ctx context.Context, e model.Edge) error

	// Query returns the one-hop targets of source via rel, ordered by target.
	Query(ctx context.Context, source, rel string) ([]model.Edge, error)

	// Count returns the number of stored edges.
	Count(ctx context.Context) (int, error)
}

const sep = "|"

func joinKey(parts ...string) string {
	return strings.Join(parts, sep)
}

func cleanPart(s string) string {
	return strings.ReplaceAll(s, sep, " ")
}
