// Package server exposes the dispatcher and ingestion triggers over MCP and
// REST.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/dispatch"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/ingest"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// --- Input types ---

type ForecastInput struct {
	District string `json:"district" jsonschema:"District name, e.g. Pune"`
	Days     int    `json:"days,omitempty" jsonschema:"Number of days to forecast (default 7, max 16)"`
}

type RecommendationInput struct {
	District string `json:"district" jsonschema:"District name"`
	Season   string `json:"season" jsonschema:"Cropping season: kharif, rabi or zaid"`
	SoilType string `json:"soil_type,omitempty" jsonschema:"Soil type, e.g. black, loamy, sandy (default medium)"`
}

type MarketTrendInput struct {
	Crop       string `json:"crop" jsonschema:"Crop or commodity name; regional names such as gehu or kanda are accepted"`
	MarketArea string `json:"market_area,omitempty" jsonschema:"Market or area (default all)"`
}

type SchemeSearchInput struct {
	Query      string `json:"query,omitempty" jsonschema:"What the farmer is looking for"`
	FarmerType string `json:"farmer_type,omitempty" jsonschema:"Farmer category, e.g. small, marginal (default all)"`
	CropType   string `json:"crop_type,omitempty" jsonschema:"Crop the scheme should cover (default all)"`
	State      string `json:"state,omitempty" jsonschema:"State name (default all)"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"Maximum number of schemes (default 5)"`
}

type IngestInput struct {
	Operation       string `json:"operation,omitempty" jsonschema:"process_daily_data to pull the weather and market feeds"`
	SourceKind      string `json:"sourceKind,omitempty" jsonschema:"weather, market, crop, scheme or location"`
	RecordsLocation string `json:"recordsLocation,omitempty" jsonschema:"Path or http(s) URL of a JSON, JSONL or YAML batch"`
}

// NewMCP creates an MCP server with one tool per dispatcher tool, plus an
// ingest tool when ing is non-nil.
func NewMCP(d Dispatcher, ing Ingester, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "kisan-mitra",
		Version: version,
	}, nil)

	desc := map[string]string{}
	for _, t := range d.Tools() {
		desc[t.Name] = t.Description
	}

	mcp.AddTool(srv, &mcp.Tool{Name: dispatch.ToolForecast, Description: desc[dispatch.ToolForecast]}, dispatchTool[ForecastInput](d, dispatch.ToolForecast))
	mcp.AddTool(srv, &mcp.Tool{Name: dispatch.ToolRecommendation, Description: desc[dispatch.ToolRecommendation]}, dispatchTool[RecommendationInput](d, dispatch.ToolRecommendation))
	mcp.AddTool(srv, &mcp.Tool{Name: dispatch.ToolMarketTrend, Description: desc[dispatch.ToolMarketTrend]}, dispatchTool[MarketTrendInput](d, dispatch.ToolMarketTrend))
	mcp.AddTool(srv, &mcp.Tool{Name: dispatch.ToolSchemeSearch, Description: desc[dispatch.ToolSchemeSearch]}, dispatchTool[SchemeSearchInput](d, dispatch.ToolSchemeSearch))

	if ing != nil {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        "ingest",
			Description: "Ingest a raw record batch, or pull the daily weather and market feeds",
		}, ingestTool(ing))
	}
	return srv
}

// dispatchTool forwards typed MCP input to the dispatcher as plain arguments.
func dispatchTool[In any](d Dispatcher, name string) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error) {
		args, err := toArgs(input)
		if err != nil {
			return toolError("Invalid arguments: %v", err), nil, nil
		}
		resp := d.Dispatch(ctx, name, args)
		res, _, _ := toolJSON(resp)
		res.IsError = resp.Status == dispatch.StatusError
		return res, nil, nil
	}
}

func ingestTool(ing Ingester) mcp.ToolHandlerFor[IngestInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, any, error) {
		switch input.Operation {
		case "process_daily_data":
			return toolJSON(ing.ProcessDailyData(ctx))
		case "":
		default:
			return toolError("Unknown operation %q", input.Operation), nil, nil
		}
		report, err := ing.ProcessLocation(ctx, ingestBatch(input))
		if err != nil {
			return toolError("Ingest failed: %v", err), nil, nil
		}
		return toolJSON(report)
	}
}

func toArgs(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func ingestBatch(in IngestInput) ingest.BatchRequest {
	return ingest.BatchRequest{SourceKind: modelKind(in.SourceKind), RecordsLocation: in.RecordsLocation}
}

func modelKind(s string) model.SourceKind {
	return model.SourceKind(model.NormalizeName(s))
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
