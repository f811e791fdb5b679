package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

const maxRecordsBytes = 64 << 20

// LoadRecords reads a batch from a local path or an http(s) URL. The format
// follows the extension: .yaml/.yml, .jsonl/.ndjson, otherwise a JSON array
// or an object with a "records" array.
func LoadRecords(ctx context.Context, client *http.Client, kind model.SourceKind, location string) ([]model.RawRecord, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errs.Errorf(errs.InvalidArguments, "load records", "empty records location")
	}

	var data []byte
	var err error
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = fetchURL(ctx, client, location)
		if err != nil {
			return nil, errs.E(errs.UpstreamFeedFailure, "load records", err)
		}
	} else {
		data, err = os.ReadFile(location)
		if err != nil {
			return nil, errs.E(errs.InvalidArguments, "load records", err)
		}
	}

	objs, err := DecodeRecords(data, formatOf(location))
	if err != nil {
		return nil, errs.E(errs.MalformedRecord, "load records "+location, err)
	}
	return Records(kind, objs), nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordsBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &statusError{url: url, code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

type statusError struct {
	url  string
	code int
	body string
}

func (e *statusError) Error() string {
	body := e.body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.url, e.code, body)
}

// retryable reports whether the status may succeed on a later attempt.
func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests || e.code == http.StatusRequestTimeout
}

// Format names the encoding of a record file.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

func formatOf(location string) Format {
	path := location
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	return FormatJSON
}

// DecodeRecords decodes a record file into field maps.
func DecodeRecords(data []byte, format Format) ([]map[string]any, error) {
	switch format {
	case FormatJSONL:
		var out []map[string]any
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal([]byte(text), &m); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, m)
		}
		return out, sc.Err()

	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return objectList(doc)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return objectList(doc)
}

func objectList(doc any) ([]map[string]any, error) {
	if m, ok := doc.(map[string]any); ok {
		recs, ok := m["records"]
		if !ok {
			return []map[string]any{m}, nil
		}
		doc = recs
	}
	arr, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of records, got %T", doc)
	}
	out := make([]map[string]any, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i, item)
		}
		out = append(out, m)
	}
	return out, nil
}

// Records tags each object with the batch kind. An object may override it
// with its own "kind" field, which lets mixed files through.
func Records(kind model.SourceKind, objs []map[string]any) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(objs))
	for _, m := range objs {
		k := kind
		if v, ok := m["kind"].(string); ok && v != "" {
			k = model.SourceKind(v)
		}
		out = append(out, model.RawRecord{Kind: k, Fields: m})
	}
	return out
}
