package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/retry"
)

// FeedClient pulls the current snapshot of one upstream source.
type FeedClient interface {
	Fetch(ctx context.Context, kind model.SourceKind) ([]model.RawRecord, error)
}

// HTTPFeeds fetches JSON snapshots from one URL per source kind.
type HTTPFeeds struct {
	urls   map[model.SourceKind]string
	client *http.Client
}

// NewHTTPFeeds builds a client for the configured feed URLs. Kinds without
// a URL are reported as unconfigured by Fetch.
func NewHTTPFeeds(cfg config.FeedsConfig) *HTTPFeeds {
	urls := map[model.SourceKind]string{}
	if cfg.WeatherURL != "" {
		urls[model.KindWeather] = cfg.WeatherURL
	}
	if cfg.MarketURL != "" {
		urls[model.KindMarket] = cfg.MarketURL
	}
	return &HTTPFeeds{urls: urls, client: &http.Client{}}
}

// ErrFeedNotConfigured is returned for a kind with no feed URL.
var ErrFeedNotConfigured = errors.New("feed not configured")

func (h *HTTPFeeds) Fetch(ctx context.Context, kind model.SourceKind) ([]model.RawRecord, error) {
	url, ok := h.urls[kind]
	if !ok {
		return nil, retry.Stop(fmt.Errorf("%s: %w", kind, ErrFeedNotConfigured))
	}
	data, err := fetchURL(ctx, h.client, url)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, retry.Stop(err)
		}
		return nil, err
	}
	objs, err := DecodeRecords(data, formatOf(url))
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("decode %s feed: %w", kind, err))
	}
	return Records(kind, objs), nil
}

func feedPolicy(cfg config.FeedsConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Duration,
		MaxDelay:    30 * time.Second,
		Timeout:     cfg.Timeout.Duration,
	}
}
