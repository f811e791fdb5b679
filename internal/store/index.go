package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/embedding"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/kv"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// Ranking weights for hybrid search. An entry that matched a filter with a
// specific value, or whose text contains a query term, gets StructuredBoost,
// which exceeds the full cosine range so it always ranks ahead of
// similarity-only matches.
const (
	StructuredBoost = 3.0
	KeywordWeight   = 0.5
)

// SearchParams holds parameters for a hybrid search.
type SearchParams struct {
	Query   string
	Filters map[string]string // metadata field -> required value; "all" or "" is ignored
	TopK    int
}

// SearchResult is a ranked entry without its vector.
type SearchResult struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
	Score       float64           `json:"score"`
	Similarity  float64           `json:"similarity"`
	Structured  bool              `json:"structured"`
}

// Index maps stable content ids to text, vector and metadata.
type Index struct {
	kv       kv.Substrate
	ns       string
	embedder embedding.Embedder
	dims     int
}

// NewIndex creates an index. dims > 0 enforces the vector length on upsert;
// embedder may be nil, in which case search ranks by keyword and recency.
func NewIndex(sub kv.Substrate, namespace string, embedder embedding.Embedder, dims int) *Index {
	if namespace == "" {
		namespace = "emb"
	}
	if dims == 0 && embedder != nil {
		dims = embedder.Dims()
	}
	return &Index{kv: sub, ns: namespace, embedder: embedder, dims: dims}
}

func (x *Index) key(id string) string {
	return joinKey(x.ns, cleanPart(id))
}

// Upsert writes the whole entry as one substrate value.
func (x *Index) Upsert(ctx context.Context, e model.EmbeddingEntry) error {
	if e.ID == "" {
		return fmt.Errorf("upsert entry: empty id")
	}
	if x.dims > 0 && len(e.Vector) != 0 && len(e.Vector) != x.dims {
		return fmt.Errorf("upsert entry %s: vector has %d dimensions, want %d", e.ID, len(e.Vector), x.dims)
	}
	if e.LastUpdated.IsZero() {
		e.LastUpdated = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return x.kv.Put(ctx, x.key(e.ID), b)
}

// Get returns the entry for id, if present.
func (x *Index) Get(ctx context.Context, id string) (*model.EmbeddingEntry, bool, error) {
	b, ok, err := x.kv.Get(ctx, x.key(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var e model.EmbeddingEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &e, true, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	return x.kv.Count(ctx, joinKey(x.ns, ""))
}

// Search applies the structured filters, ranks the survivors by keyword and
// cosine similarity, and returns the top TopK.
func (x *Index) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = 5
	}

	var queryVec embedding.Vector
	if x.embedder != nil && strings.TrimSpace(p.Query) != "" {
		v, err := x.embedder.Embed(ctx, p.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryVec = v
	}
	terms := queryTerms(p.Query)
	filters := activeFilters(p.Filters)

	pairs, err := x.kv.Scan(ctx, kv.ScanParams{Prefix: joinKey(x.ns, "")})
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, pair := range pairs {
		var e model.EmbeddingEntry
		if err := json.Unmarshal(pair.Value, &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", pair.Key, err)
		}
		specific, ok := matchFilters(e.Metadata, filters)
		if !ok {
			continue
		}

		sim := 0.0
		if len(queryVec) > 0 {
			sim = embedding.CosineSimilarity(queryVec, e.Vector)
		}
		kw := keywordScore(terms, e)
		structured := specific || kw > 0

		score := sim + KeywordWeight*kw
		if structured {
			score += StructuredBoost
		}
		results = append(results, SearchResult{
			ID:          e.ID,
			Text:        e.Text,
			Metadata:    e.Metadata,
			LastUpdated: e.LastUpdated,
			Score:       score,
			Similarity:  sim,
			Structured:  structured,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		return a.ID < b.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func activeFilters(in map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		v = model.NormalizeName(v)
		if v == "" || v == model.Wildcard {
			continue
		}
		out[k] = v
	}
	return out
}

// matchFilters requires every filter to match a metadata field. A field
// value of "all" matches any filter value; specific reports whether at least
// one filter other than kind matched a concrete value.
func matchFilters(meta map[string]string, filters map[string]string) (specific, ok bool) {
	for field, want := range filters {
		have, present := meta[field]
		if !present {
			return false, false
		}
		matched, concrete := matchField(have, want)
		if !matched {
			return false, false
		}
		if concrete && field != "kind" {
			specific = true
		}
	}
	return specific, true
}

func matchField(have, want string) (matched, concrete bool) {
	wildcard := false
	for _, v := range splitList(have) {
		if v == model.Wildcard {
			wildcard = true
			continue
		}
		if v == want || strings.Contains(v, want) || strings.Contains(want, v) {
			return true, true
		}
	}
	return wildcard, false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := model.NormalizeName(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "scheme": true, "schemes": true,
	"what": true, "are": true, "which": true, "any": true, "from": true, "about": true,
}

func queryTerms(q string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len([]rune(w)) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// keywordScore is the fraction of query terms present in the entry text.
func keywordScore(terms []string, e model.EmbeddingEntry) float64 {
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(e.Text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
