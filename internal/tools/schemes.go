package tools

import (
	"context"
	"strings"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/store"
)

const (
	DefaultTopK = 5
	MaxTopK     = 20

	summaryLen    = 240
	passageFanout = 3
)

type SchemeRequest struct {
	Query      string `json:"query"`
	FarmerType string `json:"farmer_type,omitempty"`
	CropType   string `json:"crop_type,omitempty"`
	State      string `json:"state,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

type SchemeMatch struct {
	SchemeID    string  `json:"scheme_id"`
	Name        string  `json:"name"`
	Summary     string  `json:"summary"`
	State       string  `json:"state"`
	FarmerType  string  `json:"farmer_type"`
	CropType    string  `json:"crop_type"`
	URL         string  `json:"url,omitempty"`
	Score       float64 `json:"score"`
	Structured  bool    `json:"structured_match"`
	LastUpdated string  `json:"last_updated"`
}

type SchemeResults struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters"`
	Matches []SchemeMatch     `json:"matches"`
}

// SearchSchemes runs a hybrid search over scheme entries. Filter fields left
// empty or set to "all" do not restrict the results.
func (s *Service) SearchSchemes(ctx context.Context, req SchemeRequest) (*SchemeResults, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	filters := map[string]string{
		"kind":        string(model.KindScheme),
		"farmer_type": wildcardIfEmpty(model.NormalizeName(req.FarmerType)),
		"crop_type":   wildcardIfEmpty(model.CanonicalCrop(req.CropType, s.market.Aliases)),
		"state":       wildcardIfEmpty(model.NormalizeName(req.State)),
	}

	// Guideline passages share their scheme's id; over-fetch so collapsing
	// them still fills topK.
	hits, err := s.index.Search(ctx, store.SearchParams{Query: req.Query, Filters: filters, TopK: topK * passageFanout})
	if err != nil {
		if errs.Has(err, errs.EmbeddingServiceFailure) {
			return nil, err
		}
		return nil, errs.E(errs.Internal, "scheme search", err)
	}

	out := &SchemeResults{Query: req.Query, Filters: filters, Matches: make([]SchemeMatch, 0, topK)}
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		m := h.Metadata
		if seen[m["scheme_id"]] {
			continue
		}
		seen[m["scheme_id"]] = true
		if len(out.Matches) == topK {
			break
		}
		out.Matches = append(out.Matches, SchemeMatch{
			SchemeID:    m["scheme_id"],
			Name:        m["name"],
			Summary:     summarize(h),
			State:       m["state"],
			FarmerType:  m["farmer_type"],
			CropType:    m["crop_type"],
			URL:         m["url"],
			Score:       round2(h.Score),
			Structured:  h.Structured,
			LastUpdated: h.LastUpdated.UTC().Format("2006-01-02"),
		})
	}
	return out, nil
}

func wildcardIfEmpty(s string) string {
	if s == "" {
		return model.Wildcard
	}
	return s
}

// summarize prefers benefits and eligibility over the full text. A passage
// hit is summarized by the passage itself.
func summarize(h store.SearchResult) string {
	if h.Metadata["passage"] != "" {
		return truncate(h.Text)
	}
	var parts []string
	if b := h.Metadata["benefits"]; b != "" {
		parts = append(parts, "Benefits: "+b)
	}
	if e := h.Metadata["eligibility"]; e != "" {
		parts = append(parts, "Eligibility: "+e)
	}
	text := strings.Join(parts, " ")
	if text == "" {
		text = h.Text
	}
	return truncate(text)
}

func truncate(text string) string {
	if r := []rune(text); len(r) > summaryLen {
		return strings.TrimSpace(string(r[:summaryLen])) + "..."
	}
	return text
}
