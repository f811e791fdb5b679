// Package normalize converts raw source records into canonical facts for the
// time-series, graph and embedding stores. It performs no I/O.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/chunker"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

// Normalizer holds the alias table applied to commodity names.
type Normalizer struct {
	Aliases map[string]string
}

// Normalize produces the facts for one record. Errors carry
// errs.MalformedRecord or errs.UnsupportedSourceKind.
func (n Normalizer) Normalize(r model.RawRecord) (model.Facts, error) {
	f := fields(r.Fields)
	switch model.SourceKind(strings.ToLower(strings.TrimSpace(string(r.Kind)))) {
	case model.KindWeather:
		return n.weather(f)
	case model.KindMarket:
		return n.market(f)
	case model.KindCrop:
		return n.crop(f)
	case model.KindScheme:
		return n.scheme(f)
	case model.KindLocation:
		return n.location(f)
	}
	return model.Facts{}, errs.Errorf(errs.UnsupportedSourceKind, "normalize", "source kind %q", r.Kind)
}

func malformed(kind model.SourceKind, format string, args ...any) error {
	return errs.Errorf(errs.MalformedRecord, "normalize "+string(kind), format, args...)
}

var weatherAttrs = []struct {
	name string
	keys []string
}{
	{"temperature_max", []string{"temperature_max", "temp_max", "max_temp"}},
	{"temperature_min", []string{"temperature_min", "temp_min", "min_temp"}},
	{"humidity", []string{"humidity"}},
	{"wind_speed", []string{"wind_speed"}},
}

func (n Normalizer) weather(f fields) (model.Facts, error) {
	district := model.NormalizeName(f.str("district", "location", "city"))
	if district == "" {
		return model.Facts{}, malformed(model.KindWeather, "missing district")
	}
	ts, err := f.timestamp()
	if err != nil {
		return model.Facts{}, malformed(model.KindWeather, "%v", err)
	}
	// A reading without rainfall keeps value 0 but no rainfall_mm
	// attribute, so readers can tell it from a dry day.
	rain, hasRain, err := f.num("rainfall_mm", "rainfall", "precipitation")
	if err != nil {
		return model.Facts{}, malformed(model.KindWeather, "%v", err)
	}

	attrs := map[string]any{}
	if hasRain {
		attrs["rainfall_mm"] = rain
	}
	for _, a := range weatherAttrs {
		v, present, err := f.num(a.keys...)
		if err != nil {
			return model.Facts{}, malformed(model.KindWeather, "%v", err)
		}
		if present {
			attrs[a.name] = v
		}
	}
	if c := f.str("condition", "summary"); c != "" {
		attrs["condition"] = c
	}
	if s := f.str("source"); s != "" {
		attrs["source"] = s
	}

	return model.Facts{
		RecordID: "weather:" + district + ":" + ts.Format("2006-01-02T15:04"),
		Points: []model.MetricPoint{{
			MetricID:   model.WeatherMetricID(district),
			Timestamp:  ts,
			Value:      rain,
			Attributes: attrs,
		}},
	}, nil
}

func (n Normalizer) market(f fields) (model.Facts, error) {
	crop := model.CanonicalCrop(f.str("crop", "commodity"), n.Aliases)
	if crop == "" {
		return model.Facts{}, malformed(model.KindMarket, "missing crop")
	}
	area := model.NormalizeName(f.str("market_area", "market"))
	if area == "" {
		area = model.Wildcard
	}
	ts, err := f.timestamp()
	if err != nil {
		return model.Facts{}, malformed(model.KindMarket, "%v", err)
	}
	price, present, err := f.num("price", "modal_price")
	if err != nil {
		return model.Facts{}, malformed(model.KindMarket, "%v", err)
	}
	if !present {
		return model.Facts{}, malformed(model.KindMarket, "missing price")
	}

	attrs := map[string]any{}
	for _, k := range []string{"min_price", "max_price"} {
		v, ok, err := f.num(k)
		if err != nil {
			return model.Facts{}, malformed(model.KindMarket, "%v", err)
		}
		if ok {
			attrs[k] = v
		}
	}
	unit := f.str("unit")
	if unit == "" {
		unit = "INR/quintal"
	}
	attrs["unit"] = unit
	if m := f.str("market"); m != "" {
		attrs["market"] = m
	}

	return model.Facts{
		RecordID: "market:" + crop + ":" + area + ":" + ts.Format("2006-01-02T15:04"),
		Points: []model.MetricPoint{{
			MetricID:   model.MarketMetricID(crop, area),
			Timestamp:  ts,
			Value:      price,
			Attributes: attrs,
		}},
	}, nil
}

func (n Normalizer) crop(f fields) (model.Facts, error) {
	id := model.NormalizeName(f.str("id", "crop_id"))
	if id == "" {
		return model.Facts{}, malformed(model.KindCrop, "missing stable id")
	}
	name := f.str("name")
	if name == "" {
		name = id
	}
	seasons := normalizeAll(f.list("seasons", "season"))
	pests := normalizeAll(f.list("pests"))
	diseases := normalizeAll(f.list("diseases"))
	soils := normalizeAll(f.list("soil_types", "soil_type"))
	drought, hasDrought := f.boolean("drought_sensitive")

	node := model.CropNode(id)
	facts := model.Facts{RecordID: "crop:" + id}
	for _, s := range seasons {
		facts.Edges = append(facts.Edges, model.Edge{Source: node, Rel: model.RelGrownDuring, Target: model.SeasonNode(s)})
	}
	for _, p := range pests {
		facts.Edges = append(facts.Edges, model.Edge{Source: node, Rel: model.RelSusceptibleTo, Target: model.PestNode(p)})
	}
	for _, d := range diseases {
		facts.Edges = append(facts.Edges, model.Edge{Source: node, Rel: model.RelAffectedBy, Target: model.DiseaseNode(d)})
	}

	for _, d := range f.districts("suitable_districts") {
		props := map[string]any{"name": name}
		s, so := seasons, soils
		if d.extra != nil {
			if v := normalizeAll(d.extra.list("seasons", "season")); len(v) > 0 {
				s = v
			}
			if v := normalizeAll(d.extra.list("soil_types", "soil_type")); len(v) > 0 {
				so = v
			}
		}
		if len(s) > 0 {
			props["season"] = strings.Join(s, ",")
		}
		if len(so) > 0 {
			props["soil_types"] = so
		}
		if hasDrought {
			props["drought_sensitive"] = drought
		}
		facts.Edges = append(facts.Edges, model.Edge{
			Source:     model.LocationNode(d.name),
			Rel:        model.RelSuitableFor,
			Target:     node,
			Properties: props,
		})
	}

	meta := map[string]string{
		"kind":    string(model.KindCrop),
		"crop_id": id,
		"name":    name,
	}
	if len(seasons) > 0 {
		meta["season"] = strings.Join(seasons, ",")
	}
	if len(soils) > 0 {
		meta["soil_type"] = strings.Join(soils, ",")
	}
	if hasDrought {
		meta["drought_sensitive"] = strconv.FormatBool(drought)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Crop: %s (%s).", name, id)
	writeList(&text, "Seasons", seasons)
	writeList(&text, "Soil types", soils)
	if w := f.str("water_requirement"); w != "" {
		fmt.Fprintf(&text, " Water requirement: %s.", w)
	}
	if d, ok, _ := f.num("duration_days"); ok {
		fmt.Fprintf(&text, " Duration: %g days.", d)
	}
	if hasDrought {
		fmt.Fprintf(&text, " Drought sensitive: %s.", yesNo(drought))
	}
	writeList(&text, "Pests", pests)
	writeList(&text, "Diseases", diseases)
	if d := f.str("description"); d != "" {
		text.WriteString(" " + d)
	}

	facts.Embeddings = []model.EmbeddingCandidate{{
		ID:       model.EntryID(model.KindCrop, id),
		Text:     text.String(),
		Metadata: meta,
	}}
	return facts, nil
}

func (n Normalizer) scheme(f fields) (model.Facts, error) {
	name := f.str("name", "title")
	id := model.NormalizeName(f.str("id", "scheme_id"))
	if id == "" {
		id = strings.ReplaceAll(model.NormalizeName(name), " ", "-")
	}
	if id == "" {
		return model.Facts{}, malformed(model.KindScheme, "missing id and name")
	}
	if name == "" {
		name = id
	}

	farmers := normalizeAll(f.list("farmer_types", "farmer_type"))
	crops := n.canonicalCrops(f.list("crop_types", "crop_type"))
	states := normalizeAll(f.list("states", "state"))
	description := f.str("description")
	eligibility := f.str("eligibility")
	benefits := f.str("benefits")

	var text strings.Builder
	text.WriteString(name + ".")
	if description != "" {
		text.WriteString(" " + description)
	}
	if eligibility != "" {
		fmt.Fprintf(&text, " Eligibility: %s", eligibility)
	}
	if benefits != "" {
		fmt.Fprintf(&text, " Benefits: %s", benefits)
	}
	writeList(&text, "Crops", crops)
	writeList(&text, "Farmers", farmers)
	writeList(&text, "States", states)

	meta := map[string]string{
		"kind":        string(model.KindScheme),
		"scheme_id":   id,
		"name":        name,
		"farmer_type": joinOrWildcard(farmers),
		"crop_type":   joinOrWildcard(crops),
		"state":       joinOrWildcard(states),
	}
	for _, k := range []string{"url", "deadline"} {
		if v := f.str(k); v != "" {
			meta[k] = v
		}
	}
	if eligibility != "" {
		meta["eligibility"] = eligibility
	}
	if benefits != "" {
		meta["benefits"] = benefits
	}

	facts := model.Facts{
		RecordID: "scheme:" + id,
		Embeddings: []model.EmbeddingCandidate{{
			ID:       model.EntryID(model.KindScheme, id),
			Text:     strings.TrimSpace(text.String()),
			Metadata: meta,
		}},
	}
	// Guideline documents are indexed as extra passages under the same
	// scheme metadata; search collapses them back to one match per scheme.
	if doc := f.str("guidelines", "details"); doc != "" {
		for i, passage := range chunker.Split(doc, chunker.DefaultOptions()) {
			pm := make(map[string]string, len(meta)+1)
			for k, v := range meta {
				pm[k] = v
			}
			pm["passage"] = strconv.Itoa(i + 1)
			facts.Embeddings = append(facts.Embeddings, model.EmbeddingCandidate{
				ID:       model.EntryID(model.KindScheme, id+"#"+strconv.Itoa(i+1)),
				Text:     name + ". " + passage,
				Metadata: pm,
			})
		}
	}
	for _, s := range states {
		if s == model.Wildcard {
			continue
		}
		facts.Edges = append(facts.Edges, model.Edge{
			Source:     model.StateNode(s),
			Rel:        model.RelOffersScheme,
			Target:     model.SchemeNode(id),
			Properties: map[string]any{"name": name},
		})
	}
	return facts, nil
}

func (n Normalizer) location(f fields) (model.Facts, error) {
	district := model.NormalizeName(f.str("district", "location"))
	if district == "" {
		return model.Facts{}, malformed(model.KindLocation, "missing district")
	}
	node := model.LocationNode(district)
	facts := model.Facts{RecordID: "location:" + district}

	if state := model.NormalizeName(f.str("state")); state != "" {
		facts.Edges = append(facts.Edges, model.Edge{Source: node, Rel: model.RelLocatedIn, Target: model.StateNode(state)})
	}
	for i, c := range f.objects("crops") {
		id := model.NormalizeName(c.str("id", "crop_id", "crop"))
		if id == "" {
			return model.Facts{}, malformed(model.KindLocation, "crops[%d]: missing id", i)
		}
		props := map[string]any{}
		if name := c.str("name"); name != "" {
			props["name"] = name
		} else {
			props["name"] = id
		}
		if seasons := normalizeAll(c.list("seasons", "season")); len(seasons) > 0 {
			props["season"] = strings.Join(seasons, ",")
		}
		if soils := normalizeAll(c.list("soil_types", "soil_type")); len(soils) > 0 {
			props["soil_types"] = soils
		}
		if d, ok := c.boolean("drought_sensitive"); ok {
			props["drought_sensitive"] = d
		}
		facts.Edges = append(facts.Edges, model.Edge{Source: node, Rel: model.RelSuitableFor, Target: model.CropNode(id), Properties: props})
	}
	return facts, nil
}

// normalizeAll normalizes, dedupes and sorts a list so the output, and any
// text built from it, is independent of input order.
func normalizeAll(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = model.NormalizeName(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (n Normalizer) canonicalCrops(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		out = append(out, model.CanonicalCrop(c, n.Aliases))
	}
	return normalizeAll(out)
}

func joinOrWildcard(in []string) string {
	if len(in) == 0 {
		return model.Wildcard
	}
	return strings.Join(in, ",")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, " %s: %s.", label, strings.Join(items, ", "))
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
