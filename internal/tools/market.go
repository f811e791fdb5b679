package tools

import (
	"context"
	"math"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

const shortWindow = 7

type MarketRequest struct {
	Crop       string `json:"crop"`
	MarketArea string `json:"market_area,omitempty"`
}

type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Direction of a price trend.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

type MarketTrend struct {
	Crop               string     `json:"crop"`
	MarketArea         string     `json:"market_area"`
	Points             int        `json:"points"`
	Latest             PricePoint `json:"latest"`
	Oldest             PricePoint `json:"oldest"`
	ChangePercent      float64    `json:"change_percent"`
	Direction          Direction  `json:"direction"`
	MovingAverage      float64    `json:"moving_average"`
	ShortMovingAverage float64    `json:"moving_average_7"`
	Unit               string     `json:"unit,omitempty"`
}

// MarketTrend summarizes the most recent price window for a crop. Fewer than
// two points fails with errs.InsufficientData.
func (s *Service) MarketTrend(ctx context.Context, req MarketRequest) (*MarketTrend, error) {
	crop := model.CanonicalCrop(req.Crop, s.market.Aliases)
	if crop == "" {
		return nil, errs.Errorf(errs.InvalidArguments, "market trend", "crop is required")
	}
	area := model.NormalizeName(req.MarketArea)
	if area == "" {
		area = model.Wildcard
	}
	window := s.market.Window
	if window < 2 {
		window = 30
	}

	points, err := s.ts.Query(ctx, store.QueryParams{
		MetricID: model.MarketMetricID(crop, area),
		Limit:    window,
		Order:    store.NewestFirst,
	})
	if err != nil {
		return nil, errs.E(errs.Internal, "market trend", err)
	}
	if len(points) < 2 {
		return nil, errs.Errorf(errs.InsufficientData, "market trend",
			"%d price point(s) for %s in %s, need at least 2", len(points), crop, area)
	}

	newest, oldest := points[0], points[len(points)-1]
	t := &MarketTrend{
		Crop:               crop,
		MarketArea:         area,
		Points:             len(points),
		Latest:             PricePoint{Date: newest.Timestamp, Price: newest.Value},
		Oldest:             PricePoint{Date: oldest.Timestamp, Price: oldest.Value},
		MovingAverage:      round2(mean(points)),
		ShortMovingAverage: round2(mean(points[:min(shortWindow, len(points))])),
	}
	if unit, ok := newest.Attributes["unit"].(string); ok {
		t.Unit = unit
	}

	change := 0.0
	if oldest.Value != 0 {
		change = (newest.Value - oldest.Value) * 100 / oldest.Value
	}
	t.ChangePercent = round2(change)
	switch {
	case oldest.Value == 0 && newest.Value > 0:
		t.Direction = Up
	case math.Abs(change) < s.market.StableBand:
		t.Direction = Stable
	case change > 0:
		t.Direction = Up
	default:
		t.Direction = Down
	}
	return t, nil
}

func mean(points []model.MetricPoint) float64 {
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
