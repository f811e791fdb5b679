package model

import (
	"strings"

	"github.com/google/uuid"
)

var entryNamespace = uuid.MustParse("6f1c2a4e-8d3b-4c59-9a1e-2b7d0c5e4f81")

// NormalizeName lower-cases and trims a free-text identifier, collapses
// internal whitespace and drops characters reserved by the key scheme.
func NormalizeName(s string) string {
	s = strings.NewReplacer("|", " ", ":", " ").Replace(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// WeatherMetricID is the combined weather series for a district.
func WeatherMetricID(district string) string {
	return "weather:combined:" + NormalizeName(district)
}

// MarketMetricID is the price series for a crop in a market area. An empty
// area means the all-markets aggregate.
func MarketMetricID(crop, area string) string {
	a := NormalizeName(area)
	if a == "" {
		a = Wildcard
	}
	return "market:price:" + NormalizeName(crop) + ":" + a
}

func LocationNode(district string) string { return "location:" + NormalizeName(district) }
func CropNode(id string) string           { return "crop:" + NormalizeName(id) }
func SeasonNode(name string) string       { return "season:" + NormalizeName(name) }
func PestNode(id string) string           { return "pest:" + NormalizeName(id) }
func DiseaseNode(id string) string        { return "disease:" + NormalizeName(id) }
func StateNode(name string) string        { return "state:" + NormalizeName(name) }
func SchemeNode(id string) string         { return "scheme:" + NormalizeName(id) }

// NodeLocalID strips the namespace from a node id ("crop:wheat" -> "wheat").
func NodeLocalID(node string) string {
	if i := strings.IndexByte(node, ':'); i >= 0 {
		return node[i+1:]
	}
	return node
}

// EntryID derives the embedding entry id from the record's kind and stable
// identity, so re-ingesting a record updates its entry in place.
func EntryID(kind SourceKind, recordID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(string(kind)+":"+NormalizeName(recordID))).String()
}
