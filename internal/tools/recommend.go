package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

const DefaultSoilType = "medium"

type RecommendRequest struct {
	District string `json:"district"`
	Season   string `json:"season"`
	SoilType string `json:"soil_type,omitempty"`
}

type CropScore struct {
	CropID  string   `json:"crop_id"`
	Name    string   `json:"name"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	Pests   []string `json:"pests,omitempty"`
}

type Recommendation struct {
	District string `json:"district"`
	Season   string `json:"season"`
	SoilType string `json:"soil_type"`
	// AvgRainfallMM is unset when no recent reading for the district reported
	// rainfall; no dry spell is declared then.
	AvgRainfallMM *float64    `json:"avg_rainfall_mm,omitempty"`
	DrySpell      bool        `json:"dry_spell"`
	Crops         []CropScore `json:"crops"`
}

// Recommend ranks the crops suitable for a district in the given season.
// An empty Crops list means nothing matched; it is not an error.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	district := model.NormalizeName(req.District)
	season := model.NormalizeName(req.Season)
	if district == "" || season == "" {
		return nil, errs.Errorf(errs.InvalidArguments, "recommend", "district and season are required")
	}
	soil := model.NormalizeName(req.SoilType)
	if soil == "" {
		soil = DefaultSoilType
	}
	cfg := s.recommend
	rec := &Recommendation{District: district, Season: season, SoilType: soil, Crops: []CropScore{}}

	fc, err := s.Forecast(ctx, ForecastRequest{District: district, Days: cfg.WeatherWindow})
	switch {
	case err == nil && fc.RainfallDays > 0:
		avg := round2(fc.TotalRainfallMM / float64(fc.RainfallDays))
		rec.AvgRainfallMM = &avg
		rec.DrySpell = avg < cfg.DryRainfallMM
	case err != nil && !errs.IsNoResult(err):
		return nil, err
	}

	edges, err := s.graph.Query(ctx, model.LocationNode(district), model.RelSuitableFor)
	if err != nil {
		return nil, errs.E(errs.Internal, "recommend", err)
	}

	for _, e := range edges {
		seasons := stringList(e.Properties["season"])
		if !contains(seasons, season) && !contains(seasons, model.Wildcard) {
			continue
		}
		id := model.NodeLocalID(e.Target)
		c := CropScore{CropID: id, Name: id, Score: 1.0}
		if name, ok := e.Properties["name"].(string); ok && name != "" {
			c.Name = name
		}

		soils := stringList(e.Properties["soil_types"])
		switch {
		case contains(soils, soil):
			c.Score += cfg.SoilExact
			c.Reasons = append(c.Reasons, "suited to "+soil+" soil")
		case contains(soils, DefaultSoilType):
			c.Score += cfg.SoilMedium
			c.Reasons = append(c.Reasons, "tolerates medium soil")
		}

		if rec.DrySpell {
			if sensitive, ok := e.Properties["drought_sensitive"].(bool); ok {
				if sensitive {
					c.Score -= cfg.DroughtPenalty
					c.Reasons = append(c.Reasons, "drought sensitive during a dry spell")
				} else {
					c.Score += cfg.DroughtBonus
					c.Reasons = append(c.Reasons, "drought tolerant")
				}
			}
		}

		pests, err := s.graph.Query(ctx, e.Target, model.RelSusceptibleTo)
		if err != nil {
			return nil, errs.E(errs.Internal, "recommend", err)
		}
		if len(pests) > 0 {
			penalty := math.Min(cfg.PestPenalty*float64(len(pests)), cfg.PestPenaltyCap)
			c.Score -= penalty
			for _, p := range pests {
				c.Pests = append(c.Pests, model.NodeLocalID(p.Target))
			}
			c.Reasons = append(c.Reasons, fmt.Sprintf("%d known pest(s)", len(pests)))
		}
		c.Score = round2(c.Score)
		rec.Crops = append(rec.Crops, c)
	}

	sort.SliceStable(rec.Crops, func(i, j int) bool {
		a, b := rec.Crops[i], rec.Crops[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Name < b.Name
	})
	return rec, nil
}
