package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

func TestNormalizeWeather(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: "weather", Fields: map[string]any{
		"district":        " Nashik ",
		"date":            "2024-06-03",
		"rainfall_mm":     "12.5",
		"temperature_max": 31.0,
		"humidity":        80,
		"condition":       "light rain",
	}})
	require.NoError(t, err)
	require.Len(t, facts.Points, 1)
	p := facts.Points[0]
	assert.Equal(t, "weather:combined:nashik", p.MetricID)
	assert.Equal(t, 12.5, p.Value)
	assert.True(t, p.Timestamp.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 31.0, p.Attributes["temperature_max"])
	assert.Equal(t, 80.0, p.Attributes["humidity"])
	assert.Equal(t, "light rain", p.Attributes["condition"])
	assert.Equal(t, 12.5, p.Attributes["rainfall_mm"])
	assert.Empty(t, facts.Edges)
	assert.Empty(t, facts.Embeddings)
}

func TestNormalizeWeatherWithoutRainfall(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindWeather, Fields: map[string]any{
		"district": "Pune", "date": "2024-06-03", "temperature_max": 31.0,
	}})
	require.NoError(t, err)
	require.Len(t, facts.Points, 1)
	p := facts.Points[0]
	assert.Equal(t, 0.0, p.Value)
	assert.NotContains(t, p.Attributes, "rainfall_mm")
	assert.Equal(t, 31.0, p.Attributes["temperature_max"])
}

func TestNormalizeWeatherMalformed(t *testing.T) {
	cases := []map[string]any{
		{"date": "2024-06-03", "rainfall_mm": 1.0},
		{"district": "nashik", "rainfall_mm": 1.0},
		{"district": "nashik", "date": "yesterday"},
		{"district": "nashik", "date": "2024-06-03", "rainfall_mm": "heavy"},
	}
	for _, f := range cases {
		_, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindWeather, Fields: f})
		assert.Equal(t, errs.MalformedRecord, errs.KindOf(err), "%v", f)
	}
}

func TestNormalizeMarketAliases(t *testing.T) {
	n := Normalizer{Aliases: map[string]string{"gahu": "wheat"}}
	for _, crop := range []string{"Wheat", "gehu", "gahu"} {
		facts, err := n.Normalize(model.RawRecord{Kind: model.KindMarket, Fields: map[string]any{
			"commodity":   crop,
			"market_area": "Pune",
			"date":        "2024-06-01",
			"modal_price": "2,150",
		}})
		require.NoError(t, err)
		require.Len(t, facts.Points, 1)
		assert.Equal(t, "market:price:wheat:pune", facts.Points[0].MetricID)
		assert.Equal(t, 2150.0, facts.Points[0].Value)
		assert.Equal(t, "INR/quintal", facts.Points[0].Attributes["unit"])
	}

	facts, err := n.Normalize(model.RawRecord{Kind: model.KindMarket, Fields: map[string]any{
		"crop": "onion", "date": "2024-06-01", "price": 1800.0,
	}})
	require.NoError(t, err)
	assert.Equal(t, "market:price:onion:all", facts.Points[0].MetricID)

	_, err = n.Normalize(model.RawRecord{Kind: model.KindMarket, Fields: map[string]any{"crop": "onion", "date": "2024-06-01"}})
	assert.Equal(t, errs.MalformedRecord, errs.KindOf(err))
}

func TestNormalizeCrop(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindCrop, Fields: map[string]any{
		"id":                "wheat",
		"name":              "Wheat",
		"seasons":           []any{"Rabi"},
		"soil_types":        "loamy, clay",
		"drought_sensitive": false,
		"pests":             []any{"aphid", "termite"},
		"diseases":          []any{"rust"},
		"suitable_districts": []any{
			"Nashik",
			map[string]any{"district": "Pune", "soil_types": []any{"black"}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "crop:wheat", facts.RecordID)

	byRel := map[string][]model.Edge{}
	for _, e := range facts.Edges {
		byRel[e.Rel] = append(byRel[e.Rel], e)
	}
	require.Len(t, byRel[model.RelGrownDuring], 1)
	assert.Equal(t, "season:rabi", byRel[model.RelGrownDuring][0].Target)
	require.Len(t, byRel[model.RelSusceptibleTo], 2)
	assert.Equal(t, "pest:aphid", byRel[model.RelSusceptibleTo][0].Target)
	require.Len(t, byRel[model.RelAffectedBy], 1)

	suitable := byRel[model.RelSuitableFor]
	require.Len(t, suitable, 2)
	assert.Equal(t, "location:nashik", suitable[0].Source)
	assert.Equal(t, "crop:wheat", suitable[0].Target)
	assert.Equal(t, "rabi", suitable[0].Properties["season"])
	assert.Equal(t, []string{"clay", "loamy"}, suitable[0].Properties["soil_types"])
	assert.Equal(t, false, suitable[0].Properties["drought_sensitive"])
	assert.Equal(t, []string{"black"}, suitable[1].Properties["soil_types"])

	require.Len(t, facts.Embeddings, 1)
	emb := facts.Embeddings[0]
	assert.Equal(t, model.EntryID(model.KindCrop, "wheat"), emb.ID)
	assert.Equal(t, "crop", emb.Metadata["kind"])
	assert.Contains(t, emb.Text, "Wheat")
	assert.Contains(t, emb.Text, "aphid, termite")
}

func TestNormalizeCropRequiresID(t *testing.T) {
	_, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindCrop, Fields: map[string]any{"name": "Wheat"}})
	assert.True(t, errs.Has(err, errs.MalformedRecord))
}

func TestNormalizeScheme(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindScheme, Fields: map[string]any{
		"name":        "Drip Subsidy",
		"description": "Subsidy for drip irrigation equipment.",
		"farmer_type": []any{"small", "marginal"},
		"states":      "Maharashtra",
		"benefits":    "55% subsidy",
	}})
	require.NoError(t, err)
	assert.Equal(t, "scheme:drip-subsidy", facts.RecordID)
	require.Len(t, facts.Embeddings, 1)
	meta := facts.Embeddings[0].Metadata
	assert.Equal(t, "scheme", meta["kind"])
	assert.Equal(t, "marginal,small", meta["farmer_type"])
	assert.Equal(t, "all", meta["crop_type"])
	assert.Equal(t, "maharashtra", meta["state"])
	assert.Equal(t, "55% subsidy", meta["benefits"])

	require.Len(t, facts.Edges, 1)
	assert.Equal(t, "state:maharashtra", facts.Edges[0].Source)
	assert.Equal(t, model.RelOffersScheme, facts.Edges[0].Rel)
	assert.Equal(t, "scheme:drip-subsidy", facts.Edges[0].Target)
}

func TestNormalizeSchemeNationalHasNoStateEdges(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindScheme, Fields: map[string]any{
		"id": "pm-kisan", "name": "PM-KISAN", "state": "all",
	}})
	require.NoError(t, err)
	assert.Empty(t, facts.Edges)
	assert.Equal(t, "all", facts.Embeddings[0].Metadata["state"])

	_, err = Normalizer{}.Normalize(model.RawRecord{Kind: model.KindScheme, Fields: map[string]any{"description": "x"}})
	assert.Equal(t, errs.MalformedRecord, errs.KindOf(err))
}

func TestNormalizeSchemeGuidelinePassages(t *testing.T) {
	guidelines := strings.Repeat("Apply through the state agriculture portal with land records. ", 20)
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindScheme, Fields: map[string]any{
		"id": "mh-drip", "name": "Drip Subsidy", "state": "Maharashtra", "guidelines": guidelines,
	}})
	require.NoError(t, err)
	require.Greater(t, len(facts.Embeddings), 2)

	main := facts.Embeddings[0]
	assert.Equal(t, model.EntryID(model.KindScheme, "mh-drip"), main.ID)
	assert.Empty(t, main.Metadata["passage"])

	p := facts.Embeddings[1]
	assert.Equal(t, model.EntryID(model.KindScheme, "mh-drip#1"), p.ID)
	assert.Equal(t, "1", p.Metadata["passage"])
	assert.Equal(t, "mh-drip", p.Metadata["scheme_id"])
	assert.Equal(t, "maharashtra", p.Metadata["state"])
	assert.True(t, strings.HasPrefix(p.Text, "Drip Subsidy. "))
}

func TestNormalizeLocation(t *testing.T) {
	facts, err := Normalizer{}.Normalize(model.RawRecord{Kind: model.KindLocation, Fields: map[string]any{
		"district": "Nashik",
		"state":    "Maharashtra",
		"crops": []any{
			map[string]any{"id": "onion", "season": "rabi,kharif", "soil_type": "medium", "drought_sensitive": "yes"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, facts.Edges, 2)
	assert.Equal(t, model.Edge{Source: "location:nashik", Rel: model.RelLocatedIn, Target: "state:maharashtra"}, facts.Edges[0])
	e := facts.Edges[1]
	assert.Equal(t, "crop:onion", e.Target)
	assert.Equal(t, "kharif,rabi", e.Properties["season"])
	assert.Equal(t, true, e.Properties["drought_sensitive"])
}

func TestNormalizeUnsupportedKind(t *testing.T) {
	_, err := Normalizer{}.Normalize(model.RawRecord{Kind: "soil_survey", Fields: map[string]any{}})
	assert.Equal(t, errs.UnsupportedSourceKind, errs.KindOf(err))
}

func TestNormalizeDeterministic(t *testing.T) {
	rec := model.RawRecord{Kind: model.KindScheme, Fields: map[string]any{
		"id": "s1", "name": "S1", "farmer_type": []any{"small", "large"}, "crop_type": []any{"rice", "wheat"},
	}}
	a, err := Normalizer{}.Normalize(rec)
	require.NoError(t, err)
	b, err := Normalizer{}.Normalize(rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
