package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/dispatch"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/ingest"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeDispatcher struct {
	mu   sync.Mutex
	name string
	args map[string]any
}

func (f *fakeDispatcher) Dispatch(_ context.Context, name string, args map[string]any) dispatch.Response {
	f.mu.Lock()
	f.name, f.args = name, args
	f.mu.Unlock()
	switch name {
	case dispatch.ToolForecast:
		return dispatch.Response{Tool: name, Status: dispatch.StatusOK, Result: map[string]any{"district": args["district"]}}
	case dispatch.ToolMarketTrend:
		return dispatch.Response{Tool: name, Status: dispatch.StatusInsufficientData, Message: "not enough"}
	}
	return dispatch.Response{Tool: name, Status: dispatch.StatusError, Error: &dispatch.ErrorBody{Kind: errs.UnknownTool, Message: "unknown tool"}}
}

func (f *fakeDispatcher) Tools() []dispatch.Tool {
	return dispatch.New(nil, nil).Tools()
}

type fakeIngester struct {
	req   ingest.BatchRequest
	daily int
}

func (f *fakeIngester) ProcessLocation(_ context.Context, req ingest.BatchRequest) (ingest.Report, error) {
	f.req = req
	if req.RecordsLocation == "" {
		return ingest.Report{}, errs.Errorf(errs.InvalidArguments, "load records", "empty records location")
	}
	return ingest.Report{RunID: "run-1", Status: ingest.StatusSuccess, Processed: 2}, nil
}

func (f *fakeIngester) ProcessDailyData(context.Context) ingest.Report {
	f.daily++
	return ingest.Report{RunID: "run-2", Status: ingest.StatusPartial}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRESTDispatch(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, nil, nil)

	w := do(t, r, http.MethodPost, "/dispatch", `{"toolName":"get_weather_forecast","arguments":{"district":"Pune","days":"3"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dispatch.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dispatch.StatusOK, resp.Status)
	assert.Equal(t, "3", d.args["days"])

	w = do(t, r, http.MethodPost, "/tools/get_market_price_trend", `{"crop":"wheat"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"insufficient_data"`)

	w = do(t, r, http.MethodPost, "/tools/nonexistent_tool", ``)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"errorKind":"UnknownTool"`)
	assert.Equal(t, "nonexistent_tool", d.name)

	w = do(t, r, http.MethodPost, "/dispatch", `{"arguments":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, "ok", w.Body.String())

	w = do(t, r, http.MethodGet, "/tools", "")
	assert.Contains(t, w.Body.String(), dispatch.ToolSchemeSearch)

	w = do(t, r, http.MethodPost, "/ingest", `{"operation":"process_daily_data"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRESTIngest(t *testing.T) {
	ing := &fakeIngester{}
	r := NewRouter(&fakeDispatcher{}, ing, nil)

	w := do(t, r, http.MethodPost, "/ingest", `{"sourceKind":"Crop","recordsLocation":"/data/crops.yaml"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.KindCrop, ing.req.SourceKind)
	var rep ingest.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.Processed)

	w = do(t, r, http.MethodPost, "/ingest", `{"operation":"process_daily_data"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ing.daily)
	assert.Contains(t, w.Body.String(), `"status":"partial"`)

	w = do(t, r, http.MethodPost, "/ingest", `{"sourceKind":"crop"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidArguments")

	w = do(t, r, http.MethodPost, "/ingest", `{"operation":"reindex"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func connectMCP(t *testing.T, d Dispatcher, ing Ingester) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv := NewMCP(d, ing, "test")
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func TestMCPListTools(t *testing.T) {
	session := connectMCP(t, &fakeDispatcher{}, &fakeIngester{})
	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{
		dispatch.ToolForecast, dispatch.ToolRecommendation, dispatch.ToolMarketTrend, dispatch.ToolSchemeSearch, "ingest",
	}, names)
}

func TestMCPCallTool(t *testing.T) {
	d := &fakeDispatcher{}
	session := connectMCP(t, d, nil)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      dispatch.ToolForecast,
		Arguments: map[string]any{"district": "Pune", "days": 3},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var resp dispatch.Response
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &resp))
	assert.Equal(t, dispatch.StatusOK, resp.Status)
	assert.Equal(t, "Pune", d.args["district"])
	assert.EqualValues(t, 3, d.args["days"])

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      dispatch.ToolMarketTrend,
		Arguments: map[string]any{"crop": "wheat"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "insufficient_data")
}

func TestMCPIngestTool(t *testing.T) {
	ing := &fakeIngester{}
	session := connectMCP(t, &fakeDispatcher{}, ing)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ingest",
		Arguments: map[string]any{"sourceKind": "scheme", "recordsLocation": "schemes.json"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, model.KindScheme, ing.req.SourceKind)
	assert.Contains(t, textOf(t, res), "run-1")

	res, err = session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ingest",
		Arguments: map[string]any{"sourceKind": "scheme"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
