// Package tools implements the retrieval handlers answered from the
// knowledge stores: forecast, crop recommendation, market trend and scheme
// search.
package tools

import (
	"math"
	"strings"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

// Service answers retrieval queries. It holds no per-request state.
type Service struct {
	ts        *store.TimeSeries
	graph     store.Graph
	index     *store.Index
	recommend config.RecommendConfig
	market    config.MarketConfig
	now       func() time.Time
}

// Options tunes a Service. A zero value uses config.Default weights.
type Options struct {
	Recommend *config.RecommendConfig
	Market    *config.MarketConfig
	Now       func() time.Time
}

func New(ts *store.TimeSeries, graph store.Graph, index *store.Index, opts Options) *Service {
	def := config.Default()
	s := &Service{
		ts:        ts,
		graph:     graph,
		index:     index,
		recommend: def.Recommend,
		market:    def.Market,
		now:       time.Now,
	}
	if opts.Recommend != nil {
		s.recommend = *opts.Recommend
	}
	if opts.Market != nil {
		s.market = *opts.Market
	}
	if opts.Now != nil {
		s.now = opts.Now
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// floatAttr reads a numeric attribute decoded from JSON.
func floatAttr(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func floatPtr(attrs map[string]any, key string) *float64 {
	if v, ok := floatAttr(attrs, key); ok {
		return &v
	}
	return nil
}

// stringList reads a property stored as a list or a comma-separated string.
func stringList(v any) []string {
	var raw []string
	switch x := v.(type) {
	case string:
		raw = strings.Split(x, ",")
	case []string:
		raw = x
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
