package dispatch

import (
	"context"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/tools"
)

// Tool names as seen by the conversational agent.
const (
	ToolForecast       = "get_weather_forecast"
	ToolRecommendation = "get_crop_recommendation"
	ToolMarketTrend    = "get_market_price_trend"
	ToolSchemeSearch   = "search_government_schemes"
)

var registry = []entry{
	{
		tool: Tool{
			Name:        ToolForecast,
			Description: "Day-by-day weather forecast for a district: temperature, rainfall, humidity and conditions.",
			Params: []Param{
				{Name: "district", Type: "string", Required: true, Description: "District name, e.g. Pune"},
				{Name: "days", Type: "integer", Default: tools.DefaultForecastDays, Description: "Number of days (max 16)"},
			},
		},
		run: func(ctx context.Context, h Handlers, a args) (Response, error) {
			district, err := a.str("district", true)
			if err != nil {
				return Response{}, err
			}
			days, err := a.integer("days", tools.DefaultForecastDays)
			if err != nil {
				return Response{}, err
			}
			f, err := h.Forecast(ctx, tools.ForecastRequest{District: district, Days: days})
			if err != nil {
				return Response{}, err
			}
			return success(f)
		},
	},
	{
		tool: Tool{
			Name:        ToolRecommendation,
			Description: "Crops suited to a district, season and soil, ranked with weather and pest risk.",
			Params: []Param{
				{Name: "district", Type: "string", Required: true, Description: "District name"},
				{Name: "season", Type: "string", Required: true, Description: "kharif, rabi or zaid"},
				{Name: "soil_type", Type: "string", Default: tools.DefaultSoilType, Description: "Soil type, e.g. black, loamy, sandy"},
			},
		},
		run: func(ctx context.Context, h Handlers, a args) (Response, error) {
			district, err := a.str("district", true)
			if err != nil {
				return Response{}, err
			}
			season, err := a.str("season", true)
			if err != nil {
				return Response{}, err
			}
			soil, err := a.str("soil_type", false)
			if err != nil {
				return Response{}, err
			}
			rec, err := h.Recommend(ctx, tools.RecommendRequest{District: district, Season: season, SoilType: soil})
			if err != nil {
				return Response{}, err
			}
			if len(rec.Crops) == 0 {
				return noMatch(rec, "No suitable crops found for %s in %s season", rec.District, rec.Season)
			}
			return success(rec)
		},
	},
	{
		tool: Tool{
			Name:        ToolMarketTrend,
			Description: "Recent mandi price trend for a crop: change, direction and moving averages.",
			Params: []Param{
				{Name: "crop", Type: "string", Required: true, Description: "Crop or commodity name; regional names are accepted"},
				{Name: "market_area", Type: "string", Default: "all", Description: "Market or area; all for the aggregate"},
			},
		},
		run: func(ctx context.Context, h Handlers, a args) (Response, error) {
			crop, err := a.str("crop", true)
			if err != nil {
				return Response{}, err
			}
			area, err := a.str("market_area", false)
			if err != nil {
				return Response{}, err
			}
			t, err := h.MarketTrend(ctx, tools.MarketRequest{Crop: crop, MarketArea: area})
			if err != nil {
				return Response{}, err
			}
			return success(t)
		},
	},
	{
		tool: Tool{
			Name:        ToolSchemeSearch,
			Description: "Search government schemes by topic, filtered by farmer type, crop and state.",
			Params: []Param{
				{Name: "query", Type: "string", Description: "What the farmer is looking for"},
				{Name: "farmer_type", Type: "string", Default: "all", Description: "e.g. small, marginal, tenant"},
				{Name: "crop_type", Type: "string", Default: "all", Description: "Crop the scheme should cover"},
				{Name: "state", Type: "string", Default: "all", Description: "State name"},
				{Name: "top_k", Type: "integer", Default: tools.DefaultTopK, Description: "Maximum results"},
			},
		},
		run: func(ctx context.Context, h Handlers, a args) (Response, error) {
			var req tools.SchemeRequest
			var err error
			if req.Query, err = a.str("query", false); err != nil {
				return Response{}, err
			}
			if req.FarmerType, err = a.str("farmer_type", false); err != nil {
				return Response{}, err
			}
			if req.CropType, err = a.str("crop_type", false); err != nil {
				return Response{}, err
			}
			if req.State, err = a.str("state", false); err != nil {
				return Response{}, err
			}
			if req.TopK, err = a.integer("top_k", tools.DefaultTopK); err != nil {
				return Response{}, err
			}
			res, err := h.SearchSchemes(ctx, req)
			if err != nil {
				return Response{}, err
			}
			if len(res.Matches) == 0 {
				return noMatch(res, "No schemes matched")
			}
			return success(res)
		},
	},
}
