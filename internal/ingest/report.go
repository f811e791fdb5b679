package ingest

import (
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// Status summarizes a batch run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Failure describes one record (or feed, with Index -1) that did not make it
// into the stores.
type Failure struct {
	Index     int              `json:"index"`
	Kind      model.SourceKind `json:"kind"`
	RecordID  string           `json:"record_id,omitempty"`
	ErrorKind errs.Kind        `json:"error_kind"`
	Message   string           `json:"message"`
}

// Report is the outcome of one ingestion run.
type Report struct {
	RunID      string    `json:"run_id"`
	Status     Status    `json:"status"`
	Processed  int       `json:"processed_count"`
	Failed     int       `json:"failed_count"`
	Skipped    int       `json:"skipped_count"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// collector accumulates per-record outcomes from concurrent workers.
type collector struct {
	mu     sync.Mutex
	report Report
}

func newCollector(now time.Time) *collector {
	return &collector{report: Report{
		RunID:     ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		StartedAt: now,
	}}
}

func (c *collector) ok() {
	c.mu.Lock()
	c.report.Processed++
	c.mu.Unlock()
}

// fail records a failure; UnsupportedSourceKind counts as skipped.
func (c *collector) fail(f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.ErrorKind == errs.UnsupportedSourceKind {
		c.report.Skipped++
	} else {
		c.report.Failed++
	}
	c.report.Failures = append(c.report.Failures, f)
}

func (c *collector) finish(now time.Time) Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.report
	r.FinishedAt = now
	sort.SliceStable(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Index < b.Index
	})
	switch {
	case r.Failed == 0 && r.Skipped == 0:
		r.Status = StatusSuccess
	case r.Processed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusFailed
	}
	return r
}
