package tools

import (
	"context"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

const (
	DefaultForecastDays = 7
	MaxForecastDays     = 16

	// points read per page when walking back through history
	historyPage = 256
)

type ForecastRequest struct {
	District string `json:"district"`
	Days     int    `json:"days,omitempty"`
}

// DayForecast is one calendar day of a forecast. RainfallMM is unset when
// the day's reading carried no rainfall.
type DayForecast struct {
	Day            int      `json:"day"`
	Date           string   `json:"date"`
	TemperatureMax *float64 `json:"temperature_max,omitempty"`
	TemperatureMin *float64 `json:"temperature_min,omitempty"`
	RainfallMM     *float64 `json:"rainfall_mm,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	Condition      string   `json:"condition,omitempty"`
}

type Forecast struct {
	District        string        `json:"district"`
	Days            []DayForecast `json:"days"`
	TotalRainfallMM float64       `json:"total_rainfall_mm"`
	// RainfallDays counts the days that reported rainfall.
	RainfallDays int `json:"rainfall_days"`
	// Stale is set when no reading is dated today or later, so every
	// returned day is in the past.
	Stale bool `json:"stale,omitempty"`
}

// Forecast returns up to req.Days day entries, oldest first. The window
// starts today; when fewer days than requested are stored from today on, it
// is filled with the most recent earlier days. A district with no stored
// readings fails with errs.NoDataForLocation.
func (s *Service) Forecast(ctx context.Context, req ForecastRequest) (*Forecast, error) {
	district := model.NormalizeName(req.District)
	if district == "" {
		return nil, errs.Errorf(errs.InvalidArguments, "forecast", "district is required")
	}
	days := req.Days
	if days <= 0 {
		days = DefaultForecastDays
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}
	metric := model.WeatherMetricID(district)

	today := s.now().UTC().Truncate(24 * time.Hour)
	ahead, err := s.ts.Query(ctx, store.QueryParams{
		MetricID: metric,
		Order:    store.OldestFirst,
		Since:    today,
		Until:    today.AddDate(0, 0, days),
	})
	if err != nil {
		return nil, errs.E(errs.Internal, "forecast", err)
	}
	daily := collapseDays(ahead)
	stale := len(daily) == 0
	if len(daily) < days {
		earlier, err := s.earlierDays(ctx, metric, today, days-len(daily))
		if err != nil {
			return nil, errs.E(errs.Internal, "forecast", err)
		}
		daily = append(earlier, daily...)
	}
	if len(daily) == 0 {
		return nil, errs.Errorf(errs.NoDataForLocation, "forecast", "no weather data for %s", district)
	}

	f := &Forecast{District: district, Days: make([]DayForecast, 0, len(daily)), Stale: stale}
	for i, p := range daily {
		cond, _ := p.Attributes["condition"].(string)
		d := DayForecast{
			Day:            i + 1,
			Date:           dateOf(p),
			TemperatureMax: floatPtr(p.Attributes, "temperature_max"),
			TemperatureMin: floatPtr(p.Attributes, "temperature_min"),
			RainfallMM:     floatPtr(p.Attributes, "rainfall_mm"),
			Humidity:       floatPtr(p.Attributes, "humidity"),
			Condition:      cond,
		}
		if d.RainfallMM != nil {
			f.TotalRainfallMM += *d.RainfallMM
			f.RainfallDays++
		}
		f.Days = append(f.Days, d)
	}
	f.TotalRainfallMM = round2(f.TotalRainfallMM)
	return f, nil
}

// earlierDays returns the last reading of each of the n most recent days
// before until, oldest first.
func (s *Service) earlierDays(ctx context.Context, metric string, until time.Time, n int) ([]model.MetricPoint, error) {
	var out []model.MetricPoint
	for len(out) < n {
		page, err := s.ts.Query(ctx, store.QueryParams{
			MetricID: metric,
			Limit:    historyPage,
			Order:    store.NewestFirst,
			Until:    until,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			if k := len(out); k > 0 && dateOf(out[k-1]) == dateOf(p) {
				continue
			}
			if len(out) == n {
				break
			}
			out = append(out, p)
		}
		if len(page) < historyPage {
			break
		}
		until = page[len(page)-1].Timestamp
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func dateOf(p model.MetricPoint) string {
	return p.Timestamp.UTC().Format("2006-01-02")
}

// collapseDays keeps the last reading of each calendar day. Input and output
// are oldest first.
func collapseDays(points []model.MetricPoint) []model.MetricPoint {
	var out []model.MetricPoint
	for _, p := range points {
		if n := len(out); n > 0 && dateOf(out[n-1]) == dateOf(p) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
