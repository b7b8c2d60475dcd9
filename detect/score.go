package detect

import (
	"strings"

	"github.com/hireloop/formsense/dom"
)

// Weights are the eight scoring factor weights. They are expected to sum to
// ~1.0; the final score is clamped to [0,1] regardless.
type Weights struct {
	PlatformMatch     float64 `yaml:"platform_match" json:"platform_match"`
	FieldCount        float64 `yaml:"field_count" json:"field_count"`
	RequiredRatio     float64 `yaml:"required_ratio" json:"required_ratio"`
	ProfileMapping    float64 `yaml:"profile_mapping" json:"profile_mapping"`
	KeywordDensity    float64 `yaml:"keyword_density" json:"keyword_density"`
	StructuralQuality float64 `yaml:"structural_quality" json:"structural_quality"`
	TypeDiversity     float64 `yaml:"type_diversity" json:"type_diversity"`
	LabelQuality      float64 `yaml:"label_quality" json:"label_quality"`
}

// DefaultWeights returns the calibrated weight set (sums to 1.0).
func DefaultWeights() Weights {
	return Weights{
		PlatformMatch:     0.25,
		FieldCount:        0.15,
		RequiredRatio:     0.10,
		ProfileMapping:    0.20,
		KeywordDensity:    0.10,
		StructuralQuality: 0.10,
		TypeDiversity:     0.05,
		LabelQuality:      0.05,
	}
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.PlatformMatch + w.FieldCount + w.RequiredRatio + w.ProfileMapping +
		w.KeywordDensity + w.StructuralQuality + w.TypeDiversity + w.LabelQuality
}

func (w *Weights) applyDefaults() {
	if w.Sum() == 0 {
		*w = DefaultWeights()
	}
}

// PageContext is the page-level signal available to the scorer beyond the
// container itself.
type PageContext struct {
	URL   string
	Title string
	// SurroundingText is body text outside the container (may be the whole
	// body text; overlap with the container is tolerated by the heuristic).
	SurroundingText string
}

// Scorer computes the normalized detection confidence for a candidate
// container. Pure function of (inputs, config): identical trees and
// configuration always produce identical scores.
type Scorer struct {
	weights  Weights
	keywords Keywords
}

// NewScorer builds a Scorer. Zero weights fall back to DefaultWeights;
// empty keywords fall back to DefaultKeywords.
func NewScorer(w Weights, kw Keywords) *Scorer {
	w.applyDefaults()
	if len(kw.Job) == 0 && len(kw.StrongPhrases) == 0 {
		kw = DefaultKeywords()
	}
	return &Scorer{weights: w, keywords: kw}
}

// Score combines the eight factors into a [0,1] confidence. A zero factor
// never zeroes the whole score: no single weight reaches 0.25 except
// platform match, and the sum is clamped after weighting.
func (s *Scorer) Score(container *dom.Node, fields []Field, platform Platform, page PageContext) float64 {
	w := s.weights
	score := w.PlatformMatch*s.platformMatch(platform, page) +
		w.FieldCount*fieldCountScore(len(fields)) +
		w.RequiredRatio*requiredRatioScore(fields) +
		w.ProfileMapping*profileMappingScore(fields) +
		w.KeywordDensity*s.keywordDensity(container, page) +
		w.StructuralQuality*structuralQuality(container) +
		w.TypeDiversity*typeDiversity(fields) +
		w.LabelQuality*labelQuality(fields)
	return clamp01(score)
}

// platformMatch scores how well the page matches the claimed platform.
// Exact domain+path match scores 1.0, domain only 0.7, nothing 0. The
// generic platform gets a moderate score from job tokens in URL/title.
func (s *Scorer) platformMatch(platform Platform, page PageContext) float64 {
	url := strings.ToLower(page.URL)
	switch platform {
	case PlatformGreenhouse:
		return domainPathScore(url, "greenhouse.io", []string{"/jobs/", "/applications", "embed/job_app"})
	case PlatformLever:
		return domainPathScore(url, "lever.co", []string{"/apply", "?lever-"})
	case PlatformWorkday:
		return domainPathScore(url, "myworkdayjobs.com", []string{"/job/", "/apply"})
	default:
		tokens := 0
		for _, t := range []string{"job", "career", "apply", "application", "hiring", "position"} {
			if strings.Contains(url, t) || strings.Contains(strings.ToLower(page.Title), t) {
				tokens++
			}
		}
		switch {
		case tokens >= 2:
			return 0.6
		case tokens == 1:
			return 0.4
		default:
			return 0.2
		}
	}
}

func domainPathScore(url, domain string, paths []string) float64 {
	if !strings.Contains(url, domain) {
		return 0
	}
	for _, p := range paths {
		if strings.Contains(url, p) {
			return 1.0
		}
	}
	return 0.7
}

// fieldCountScore is a step function: below 3 fields is not an application.
func fieldCountScore(n int) float64 {
	switch {
	case n < 3:
		return 0
	case n < 5:
		return 0.4
	case n < 10:
		return 0.7
	case n < 20:
		return 1.0
	default:
		// Suspiciously many inputs — more likely a settings page or survey.
		return 0.8
	}
}

// requiredRatioScore rewards the 30–70% required band typical of job
// applications, decaying to a 0.2 floor outside it.
func requiredRatioScore(fields []Field) float64 {
	if len(fields) == 0 {
		return 0
	}
	req := 0
	for _, f := range fields {
		if f.Required {
			req++
		}
	}
	r := float64(req) / float64(len(fields))
	switch {
	case r >= 0.3 && r <= 0.7:
		return 1.0
	case r < 0.3:
		return 0.2 + (r/0.3)*0.8
	default:
		return 0.2 + ((1-r)/0.3)*0.8
	}
}

func profileMappingScore(fields []Field) float64 {
	if len(fields) == 0 {
		return 0
	}
	mapped := 0
	for _, f := range fields {
		if f.MappedProfileField != "" {
			mapped++
		}
	}
	return float64(mapped) / float64(len(fields))
}

// keywordDensity counts vocabulary hits in the container and surrounding
// text. Strong phrases weigh triple; a diversity bonus rewards matching
// many distinct keywords over repeating one.
func (s *Scorer) keywordDensity(container *dom.Node, page PageContext) float64 {
	text := strings.ToLower(container.Text() + " " + page.SurroundingText + " " + page.Title)
	if text == "" {
		return 0
	}
	hits := 0
	distinct := 0
	for _, kw := range s.keywords.Job {
		n := strings.Count(text, kw)
		if n > 0 {
			distinct++
			hits += n
		}
	}
	strong := 0
	for _, ph := range s.keywords.StrongPhrases {
		n := strings.Count(text, ph)
		if n > 0 {
			distinct++
			strong += n
		}
	}
	raw := float64(hits + 3*strong)
	base := raw / 20.0
	if base > 1 {
		base = 1
	}
	total := len(s.keywords.Job) + len(s.keywords.StrongPhrases)
	diversity := 0.0
	if total > 0 {
		diversity = float64(distinct) / float64(total)
	}
	return clamp01(0.7*base + 0.3*diversity)
}

// structuralQuality rewards true form semantics: a form container,
// sub-sectioning, labelled inputs, a submit control, native validation.
func structuralQuality(container *dom.Node) float64 {
	score := 0.0
	if container.Tag() == "form" || container.Query("form") != nil {
		score += 0.3
	}
	if container.Query("fieldset, section, .form-group, .field") != nil {
		score += 0.15
	}
	inputs := len(container.QueryAll("input, select, textarea"))
	labels := len(container.QueryAll("label"))
	if inputs > 0 {
		ratio := float64(labels) / float64(inputs)
		if ratio >= 0.8 {
			score += 0.2
		} else if ratio >= 0.5 {
			score += 0.1
		}
	}
	if hasSubmitControl(container) {
		score += 0.2
	}
	if container.Query("[required], [pattern]") != nil {
		score += 0.15
	}
	return clamp01(score)
}

func hasSubmitControl(container *dom.Node) bool {
	if container.Query("button[type=submit], input[type=submit]") != nil {
		return true
	}
	for _, b := range container.QueryAll("button") {
		t := strings.ToLower(b.Text())
		if strings.Contains(t, "submit") || strings.Contains(t, "apply") ||
			strings.Contains(t, "send") || strings.Contains(t, "continue") {
			return true
		}
	}
	return false
}

// typeDiversity scales with distinct field types; five or more scores 1.0.
func typeDiversity(fields []Field) float64 {
	seen := make(map[FieldType]bool)
	for _, f := range fields {
		seen[f.Type] = true
	}
	d := float64(len(seen)) / 5.0
	if d > 1 {
		return 1
	}
	return d
}

// labelQuality averages a per-field score penalizing the unknown sentinel
// and near-empty labels, rewarding multi-word descriptive ones.
func labelQuality(fields []Field) float64 {
	if len(fields) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range fields {
		switch {
		case f.Label == UnknownLabel:
			// sentinel: 0
		case len(f.Label) < 3:
			sum += 0.2
		case len(strings.Fields(f.Label)) >= 2:
			sum += 1.0
		default:
			sum += 0.6
		}
	}
	return sum / float64(len(fields))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
