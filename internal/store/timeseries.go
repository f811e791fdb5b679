package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/kv"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// Order selects which end of a series a query reads from.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// QueryParams holds parameters for reading a series.
type QueryParams struct {
	MetricID string
	Limit    int
	Order    Order
	Since    time.Time // optional inclusive lower bound
	Until    time.Time // optional exclusive upper bound
}

// TimeSeries is an append-only per-metric log keyed by timestamp.
type TimeSeries struct {
	kv kv.Substrate
	ns string
}

func NewTimeSeries(sub kv.Substrate, namespace string) *TimeSeries {
	if namespace == "" {
		namespace = "ts"
	}
	return &TimeSeries{kv: sub, ns: namespace}
}

func (t *TimeSeries) prefix(metricID string) string {
	return joinKey(t.ns, cleanPart(metricID), "")
}

func tsKey(ts time.Time) string {
	return fmt.Sprintf("%020d", ts.UTC().UnixNano())
}

// Append writes a point; an existing point with the same timestamp is replaced.
func (t *TimeSeries) Append(ctx context.Context, p model.MetricPoint) error {
	if p.MetricID == "" {
		return fmt.Errorf("append: empty metric id")
	}
	if p.Timestamp.IsZero() || p.Timestamp.Before(time.Unix(0, 0)) {
		return fmt.Errorf("append %s: timestamp %v out of range", p.MetricID, p.Timestamp)
	}
	p.Timestamp = p.Timestamp.UTC()
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	return t.kv.Put(ctx, t.prefix(p.MetricID)+tsKey(p.Timestamp), b)
}

// Query returns up to Limit points from the requested end of the series.
func (t *TimeSeries) Query(ctx context.Context, p QueryParams) ([]model.MetricPoint, error) {
	prefix := t.prefix(p.MetricID)
	scan := kv.ScanParams{
		Prefix:  prefix,
		Limit:   p.Limit,
		Reverse: p.Order == NewestFirst,
	}
	if !p.Since.IsZero() && !p.Since.Before(time.Unix(0, 0)) {
		scan.From = prefix + tsKey(p.Since)
	}
	if !p.Until.IsZero() {
		if !p.Until.After(time.Unix(0, 0)) {
			return nil, nil
		}
		scan.To = prefix + tsKey(p.Until)
	}

	pairs, err := t.kv.Scan(ctx, scan)
	if err != nil {
		return nil, err
	}
	points := make([]model.MetricPoint, 0, len(pairs))
	for _, pair := range pairs {
		var mp model.MetricPoint
		if err := json.Unmarshal(pair.Value, &mp); err != nil {
			return nil, fmt.Errorf("decode point %s: %w", pair.Key, err)
		}
		points = append(points, mp)
	}
	return points, nil
}

// Count returns the number of stored points across all metrics.
func (t *TimeSeries) Count(ctx context.Context) (int, error) {
	return t.kv.Count(ctx, joinKey(t.ns, ""))
}
