package store

import (
	"context"
	"os"
)

// Stats holds store statistics.
type Stats struct {
	DBPaths      []string `json:"db_paths"`
	DBSizeBytes  int64    `json:"db_size_bytes"`
	MetricPoints int      `json:"metric_points"`
	Edges        int      `json:"edges"`
	Entries      int      `json:"embedding_entries"`
}

// CollectStats counts the contents of each store. Paths are the distinct
// database files behind them, used for the size figure.
func CollectStats(ctx context.Context, ts *TimeSeries, g Graph, idx *Index, paths ...string) (*Stats, error) {
	st := &Stats{DBPaths: paths}

	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			st.DBSizeBytes += info.Size()
		}
	}

	var err error
	if st.MetricPoints, err = ts.Count(ctx); err != nil {
		return st, err
	}
	if st.Edges, err = g.Count(ctx); err != nil {
		return st, err
	}
	if st.Entries, err = idx.Count(ctx); err != nil {
		return st, err
	}
	return st, nil
}
