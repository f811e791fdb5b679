// Package model defines the canonical knowledge types shared by the stores,
// the normalizer and the retrieval tools.
package model

import "time"

// SourceKind tags a raw record with the upstream it came from.
type SourceKind string

const (
	KindWeather  SourceKind = "weather"
	KindMarket   SourceKind = "market"
	KindCrop     SourceKind = "crop"
	KindScheme   SourceKind = "scheme"
	KindLocation SourceKind = "location"
)

// RawRecord is one upstream record before normalization.
type RawRecord struct {
	Kind   SourceKind     `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// MetricPoint is one reading in a per-metric time series.
type MetricPoint struct {
	MetricID   string         `json:"metric_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Value      float64        `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Edge is a directed labeled relationship between two namespaced nodes.
type Edge struct {
	Source     string         `json:"source"`
	Rel        string         `json:"rel"`
	Target     string         `json:"target"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EmbeddingEntry is one indexed document with its vector.
type EmbeddingEntry struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Vector      []float32         `json:"vector"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ContentHash string            `json:"content_hash"`
	LastUpdated time.Time         `json:"last_updated"`
}

// EmbeddingCandidate is an entry the normalizer wants indexed; the pipeline
// assigns the vector and timestamp.
type EmbeddingCandidate struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Facts is the normalizer output for one record, partitioned by store.
type Facts struct {
	RecordID   string               `json:"record_id,omitempty"`
	Points     []MetricPoint        `json:"points,omitempty"`
	Edges      []Edge               `json:"edges,omitempty"`
	Embeddings []EmbeddingCandidate `json:"embeddings,omitempty"`
}

// Relationship types used by the graph.
const (
	RelGrownDuring   = "grown_during"
	RelSusceptibleTo = "susceptible_to"
	RelAffectedBy    = "affected_by"
	RelSuitableFor   = "suitable_for"
	RelOffersScheme  = "offers_scheme"
	RelLocatedIn     = "located_in"
)

// Wildcard is the filter value meaning "any".
const Wildcard = "all"
