// Package ingest turns raw record batches into store writes and reports the
// outcome per record.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/embedding"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/normalize"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/retry"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

// DailyKinds are the sources pulled by ProcessDailyData, in order.
var DailyKinds = []model.SourceKind{model.KindWeather, model.KindMarket}

// Options configures a Pipeline. Zero values take defaults.
type Options struct {
	Workers    int
	Normalizer normalize.Normalizer
	Feeds      FeedClient
	FeedPolicy retry.Policy
	HTTPClient *http.Client
	Now        func() time.Time
	Log        *logger.Logger
}

// Pipeline writes normalized facts into the three stores.
type Pipeline struct {
	ts       *store.TimeSeries
	graph    store.Graph
	index    *store.Index
	embedder embedding.Embedder
	opts     Options
	log      *logger.Logger
}

// New creates a pipeline. embedder may be nil, in which case entries are
// indexed without vectors.
func New(ts *store.TimeSeries, graph store.Graph, index *store.Index, embedder embedding.Embedder, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Pipeline{
		ts:       ts,
		graph:    graph,
		index:    index,
		embedder: embedder,
		opts:     opts,
		log:      opts.Log.With("component", "ingest"),
	}
}

// OptionsFromConfig maps configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config, log *logger.Logger) Options {
	return Options{
		Workers:    cfg.Ingest.Workers,
		Normalizer: normalize.Normalizer{Aliases: cfg.Market.Aliases},
		Feeds:      NewHTTPFeeds(cfg.Feeds),
		FeedPolicy: feedPolicy(cfg.Feeds),
		HTTPClient: &http.Client{Timeout: cfg.Feeds.Timeout.Duration},
		Log:        log,
	}
}

func (p *Pipeline) now() time.Time { return p.opts.Now().UTC() }

// BatchRequest is a "records are available" notification.
type BatchRequest struct {
	SourceKind      model.SourceKind `json:"sourceKind"`
	RecordsLocation string           `json:"recordsLocation"`
}

// ProcessLocation loads the batch at req.RecordsLocation and ingests it. An
// error is returned only when the batch itself cannot be read.
func (p *Pipeline) ProcessLocation(ctx context.Context, req BatchRequest) (Report, error) {
	records, err := LoadRecords(ctx, p.opts.HTTPClient, req.SourceKind, req.RecordsLocation)
	if err != nil {
		return Report{}, err
	}
	return p.ProcessBatch(ctx, records), nil
}

// ProcessBatch ingests records concurrently. A record that fails never stops
// the others; each outcome is counted in the report.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []model.RawRecord) Report {
	c := newCollector(p.now())
	p.run(ctx, c, records)
	r := c.finish(p.now())
	p.logReport(r)
	return r
}

// ProcessDailyData pulls every daily feed and ingests the snapshots. A feed
// that still fails after the retry policy adds an UpstreamFeedFailure and
// the remaining feeds proceed.
func (p *Pipeline) ProcessDailyData(ctx context.Context) Report {
	c := newCollector(p.now())
	for _, kind := range DailyKinds {
		if p.opts.Feeds == nil {
			c.fail(Failure{Index: -1, Kind: kind, ErrorKind: errs.UpstreamFeedFailure, Message: "no feed client"})
			continue
		}
		records, err := p.fetch(ctx, kind)
		if err != nil {
			c.fail(Failure{Index: -1, Kind: kind, ErrorKind: errs.UpstreamFeedFailure, Message: err.Error()})
			continue
		}
		p.run(ctx, c, records)
	}
	r := c.finish(p.now())
	p.logReport(r)
	return r
}

func (p *Pipeline) fetch(ctx context.Context, kind model.SourceKind) ([]model.RawRecord, error) {
	var records []model.RawRecord
	policy := p.opts.FeedPolicy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.log.Warn("feed fetch failed, retrying", "kind", kind, "attempt", attempt, "delay", delay, "error", err)
	}
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		records, err = p.opts.Feeds.Fetch(ctx, kind)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed after %d attempt(s): %w", kind, attempts, err)
	}
	return records, nil
}

func (p *Pipeline) run(ctx context.Context, c *collector, records []model.RawRecord) {
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, rec := range records {
		g.Go(func() error {
			recordID, err := p.processRecord(ctx, rec)
			if err != nil {
				kind := errs.KindOf(err)
				c.fail(Failure{Index: i, Kind: rec.Kind, RecordID: recordID, ErrorKind: kind, Message: err.Error()})
				if kind == errs.UnsupportedSourceKind {
					p.log.Info("skipping record", "index", i, "kind", rec.Kind)
				} else {
					p.log.Warn("record failed", "index", i, "kind", rec.Kind, "record_id", recordID, "error", err)
				}
				return nil
			}
			c.ok()
			return nil
		})
	}
	_ = g.Wait()
}

// processRecord normalizes one record and writes its facts. Store write
// failures are Internal; classified errors pass through unchanged.
func (p *Pipeline) processRecord(ctx context.Context, rec model.RawRecord) (string, error) {
	facts, err := p.opts.Normalizer.Normalize(rec)
	if err != nil {
		return "", err
	}
	for _, pt := range facts.Points {
		if err := p.ts.Append(ctx, pt); err != nil {
			return facts.RecordID, errs.E(errs.Internal, "append point", err)
		}
	}
	for _, e := range facts.Edges {
		if err := p.graph.Upsert(ctx, e); err != nil {
			return facts.RecordID, errs.E(errs.Internal, "upsert edge", err)
		}
	}
	for _, cand := range facts.Embeddings {
		if err := p.indexCandidate(ctx, cand); err != nil {
			return facts.RecordID, err
		}
	}
	return facts.RecordID, nil
}

// indexCandidate embeds and upserts an entry unless the stored one already
// has the same content hash.
func (p *Pipeline) indexCandidate(ctx context.Context, cand model.EmbeddingCandidate) error {
	hash := ContentHash(cand.Text, cand.Metadata)
	existing, ok, err := p.index.Get(ctx, cand.ID)
	if err != nil {
		return errs.E(errs.Internal, "read entry", err)
	}
	if ok && existing.ContentHash == hash && (p.embedder == nil || len(existing.Vector) > 0) {
		return nil
	}

	entry := model.EmbeddingEntry{
		ID:          cand.ID,
		Text:        cand.Text,
		Metadata:    cand.Metadata,
		ContentHash: hash,
		LastUpdated: p.now(),
	}
	if p.embedder != nil {
		vec, err := p.embedder.Embed(ctx, cand.Text)
		if err != nil {
			if errs.KindOf(err) == errs.Internal {
				err = errs.E(errs.EmbeddingServiceFailure, "embed", err)
			}
			return err
		}
		entry.Vector = vec
	}
	if err := p.index.Upsert(ctx, entry); err != nil {
		return errs.E(errs.Internal, "upsert entry", err)
	}
	return nil
}

// ContentHash is the SHA-256 of the text and the sorted metadata pairs.
func ContentHash(text string, meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(text)
	for _, k := range keys {
		b.WriteString("\x00")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(meta[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) logReport(r Report) {
	p.log.Info("batch finished",
		"run_id", r.RunID,
		"status", r.Status,
		"processed", r.Processed,
		"failed", r.Failed,
		"skipped", r.Skipped,
		"duration", r.FinishedAt.Sub(r.StartedAt),
	)
}
