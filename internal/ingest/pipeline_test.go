package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/embedding"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/kv"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/retry"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

// countingEmbedder returns a vector derived from the text length and counts calls.
type countingEmbedder struct {
	calls atomic.Int64
	fail  bool
}

func (e *countingEmbedder) Dims() int { return 3 }

func (e *countingEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, errs.E(errs.EmbeddingServiceFailure, "embed", errors.New("service down"))
	}
	return embedding.Vector{float32(len(text)), 1, 0}, nil
}

type env struct {
	kv       *kv.SQLiteStore
	ts       *store.TimeSeries
	graph    *store.SQLiteGraph
	index    *store.Index
	embedder *countingEmbedder
	clock    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sub, err := kv.NewSQLiteStore(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	emb := &countingEmbedder{}
	return &env{
		kv:       sub,
		ts:       store.NewTimeSeries(sub, "ts"),
		graph:    store.NewSQLiteGraph(sub, "g"),
		index:    store.NewIndex(sub, "emb", emb, 3),
		embedder: emb,
		clock:    time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC),
	}
}

func (e *env) pipeline(opts Options) *Pipeline {
	opts.Now = func() time.Time { return e.clock }
	return New(e.ts, e.graph, e.index, e.embedder, opts)
}

func (e *env) snapshot(t *testing.T) []kv.Pair {
	t.Helper()
	pairs, err := e.kv.Scan(context.Background(), kv.ScanParams{})
	require.NoError(t, err)
	return pairs
}

func sampleBatch() []model.RawRecord {
	return []model.RawRecord{
		{Kind: model.KindWeather, Fields: map[string]any{"district": "Pune", "date": "2024-06-01", "rainfall_mm": 4.0}},
		{Kind: model.KindMarket, Fields: map[string]any{"crop": "Wheat", "date": "2024-06-01", "price": 2100.0}},
		{Kind: model.KindCrop, Fields: map[string]any{
			"id": "wheat", "name": "Wheat", "seasons": []any{"rabi"}, "pests": []any{"aphid"},
			"suitable_districts": []any{"Pune"},
		}},
		{Kind: model.KindScheme, Fields: map[string]any{"id": "pm-kisan", "name": "PM-KISAN", "state": "all"}},
	}
}

func TestProcessBatchIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.pipeline(Options{Workers: 3})

	first := p.ProcessBatch(ctx, sampleBatch())
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, 4, first.Processed)
	assert.NotEmpty(t, first.RunID)
	once := e.snapshot(t)

	e.clock = e.clock.Add(time.Hour)
	second := p.ProcessBatch(ctx, sampleBatch())
	assert.Equal(t, StatusSuccess, second.Status)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, once, e.snapshot(t))
	assert.EqualValues(t, 2, e.embedder.calls.Load(), "unchanged text must not be re-embedded")
}

func TestProcessBatchUpdatesChangedText(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.pipeline(Options{})
	rec := func(desc string) []model.RawRecord {
		return []model.RawRecord{{Kind: model.KindScheme, Fields: map[string]any{"id": "s1", "name": "S1", "description": desc}}}
	}

	p.ProcessBatch(ctx, rec("first"))
	id := model.EntryID(model.KindScheme, "s1")
	before, ok, err := e.index.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	e.clock = e.clock.Add(24 * time.Hour)
	p.ProcessBatch(ctx, rec("second"))
	after, ok, err := e.index.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Contains(t, after.Text, "second")
	assert.True(t, after.LastUpdated.After(before.LastUpdated))
	assert.EqualValues(t, 2, e.embedder.calls.Load())

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCropEntryIDStable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.pipeline(Options{})
	for i := 0; i < 2; i++ {
		p.ProcessBatch(ctx, sampleBatch()[2:3])
	}
	entry, ok, err := e.index.Get(ctx, model.EntryID(model.KindCrop, "wheat"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "crop", entry.Metadata["kind"])
	assert.Len(t, entry.Vector, 3)
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.pipeline(Options{Workers: 2})

	batch := append(sampleBatch(),
		model.RawRecord{Kind: model.KindCrop, Fields: map[string]any{"name": "no id"}},
		model.RawRecord{Kind: "soil_survey", Fields: map[string]any{}},
	)
	r := p.ProcessBatch(ctx, batch)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 4, r.Processed)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	require.Len(t, r.Failures, 2)

	byKind := map[errs.Kind]Failure{}
	for _, f := range r.Failures {
		byKind[f.ErrorKind] = f
	}
	assert.Equal(t, 4, byKind[errs.MalformedRecord].Index)
	assert.Equal(t, 5, byKind[errs.UnsupportedSourceKind].Index)

	edges, err := e.graph.Query(ctx, "crop:wheat", model.RelGrownDuring)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestProcessBatchEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.embedder.fail = true
	p := e.pipeline(Options{})

	r := p.ProcessBatch(ctx, sampleBatch())
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 2, r.Processed)
	assert.Equal(t, 2, r.Failed)
	for _, f := range r.Failures {
		assert.Equal(t, errs.EmbeddingServiceFailure, f.ErrorKind)
	}

	pts, err := e.ts.Query(ctx, store.QueryParams{MetricID: model.WeatherMetricID("pune"), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pts, 1)
}

func TestProcessBatchAllFailed(t *testing.T) {
	e := newEnv(t)
	r := e.pipeline(Options{}).ProcessBatch(context.Background(), []model.RawRecord{{Kind: "unknown"}})
	assert.Equal(t, StatusFailed, r.Status)

	r = e.pipeline(Options{}).ProcessBatch(context.Background(), nil)
	assert.Equal(t, StatusSuccess, r.Status)
}

func TestProcessBatchWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := New(e.ts, e.graph, store.NewIndex(e.kv, "emb", nil, 0), nil, Options{})
	r := p.ProcessBatch(ctx, sampleBatch())
	assert.Equal(t, StatusSuccess, r.Status)
	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type fakeFeeds struct {
	mu      sync.Mutex
	calls   map[model.SourceKind]int
	records map[model.SourceKind][]model.RawRecord
	failing map[model.SourceKind]bool
}

func (f *fakeFeeds) Fetch(_ context.Context, kind model.SourceKind) ([]model.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[model.SourceKind]int{}
	}
	f.calls[kind]++
	if f.failing[kind] {
		return nil, errors.New("connection refused")
	}
	return f.records[kind], nil
}

func TestProcessDailyDataFeedRetryExhausted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	feeds := &fakeFeeds{
		records: map[model.SourceKind][]model.RawRecord{
			model.KindMarket: {{Kind: model.KindMarket, Fields: map[string]any{"crop": "onion", "date": "2024-06-01", "price": 1500.0}}},
		},
		failing: map[model.SourceKind]bool{model.KindWeather: true},
	}
	p := e.pipeline(Options{Feeds: feeds, FeedPolicy: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}})

	r := p.ProcessDailyData(ctx)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 1, r.Processed)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, errs.UpstreamFeedFailure, r.Failures[0].ErrorKind)
	assert.Equal(t, -1, r.Failures[0].Index)
	assert.Equal(t, model.KindWeather, r.Failures[0].Kind)
	assert.Equal(t, 3, feeds.calls[model.KindWeather])
	assert.Equal(t, 1, feeds.calls[model.KindMarket])
}

func TestHTTPFeeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather.json":
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`[{"district":"Pune","date":"2024-06-01","rainfall_mm":2}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.Default().Feeds
	cfg.WeatherURL = srv.URL + "/weather.json"
	cfg.MarketURL = srv.URL + "/market.json"
	cfg.BaseDelay = config.Duration{Duration: time.Millisecond}

	e := newEnv(t)
	policy := feedPolicy(cfg)
	policy.MaxDelay = time.Millisecond
	p := e.pipeline(Options{Feeds: NewHTTPFeeds(cfg), FeedPolicy: policy})

	r := p.ProcessDailyData(context.Background())
	assert.Equal(t, 1, r.Processed)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, model.KindMarket, r.Failures[0].Kind)
	assert.EqualValues(t, 2, hits.Load())
}

func TestProcessLocation(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "crops.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: rice
  name: Rice
  seasons: [kharif]
  suitable_districts: [Nashik]
- id: onion
  seasons: rabi
`), 0o644))
	jsonlPath := filepath.Join(dir, "prices.jsonl")
	require.NoError(t, os.WriteFile(jsonlPath, []byte(
		`{"crop":"kanda","date":"2024-06-01","price":1200}`+"\n\n"+
			`{"crop":"kanda","date":"2024-06-02","price":"1,250"}`+"\n"), 0o644))

	ctx := context.Background()
	e := newEnv(t)
	p := e.pipeline(Options{})

	r, err := p.ProcessLocation(ctx, BatchRequest{SourceKind: model.KindCrop, RecordsLocation: yamlPath})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Processed)
	edges, err := e.graph.Query(ctx, "location:nashik", model.RelSuitableFor)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "crop:rice", edges[0].Target)

	r, err = p.ProcessLocation(ctx, BatchRequest{SourceKind: model.KindMarket, RecordsLocation: jsonlPath})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Processed)
	pts, err := e.ts.Query(ctx, store.QueryParams{MetricID: model.MarketMetricID("onion", ""), Limit: 5, Order: store.OldestFirst})
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 1250.0, pts[1].Value)

	_, err = p.ProcessLocation(ctx, BatchRequest{SourceKind: model.KindCrop, RecordsLocation: filepath.Join(dir, "missing.json")})
	assert.Equal(t, errs.InvalidArguments, errs.KindOf(err))
}

func TestDecodeRecords(t *testing.T) {
	objs, err := DecodeRecords([]byte(`{"records":[{"id":"a"},{"id":"b"}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	_, err = DecodeRecords([]byte(`[1,2]`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeRecords([]byte("{\"a\":1}\nnot json\n"), FormatJSONL)
	assert.Error(t, err)

	assert.Equal(t, FormatYAML, formatOf("https://example.org/schemes.yml?token=x"))
	assert.Equal(t, FormatJSON, formatOf("/tmp/batch"))
}

func TestContentHashOrderIndependent(t *testing.T) {
	a := ContentHash("x", map[string]string{"a": "1", "b": "2"})
	b := ContentHash("x", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ContentHash("x", map[string]string{"a": "1"}))
}
