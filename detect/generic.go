package detect

import (
	"strings"

	"github.com/hireloop/formsense/dom"
)

// genericStrategy is the fallback for unknown sites. Unlike the named
// strategies it has no structural anchor, so it gates itself on page
// relevance first: without a minimum density of job and application
// vocabulary in the URL, title, and body text, it refuses to scan at all —
// otherwise any login or checkout page with a few inputs becomes a false
// positive.
type genericStrategy struct {
	strategyBase
}

// genericRelevanceThreshold is the minimum number of distinct vocabulary
// hits for the page to be considered job-related.
const genericRelevanceThreshold = 3

func (s *genericStrategy) Applies(doc *dom.Document) bool {
	// The generic strategy applies to any page; relevance gating happens
	// in Detect so that fallback runs can still record why nothing matched.
	return true
}

func (s *genericStrategy) Detect(doc *dom.Document) ([]DetectedForm, []Error) {
	if !s.pageRelevant(doc) {
		s.cfg.Logger.Debug("detect: generic strategy skipped, page not job-related",
			"url", doc.URL())
		return nil, nil
	}
	jc := &jobContextSelectors{
		Title:       []string{"h1.job-title, h1[class*=job], .job-title", "h1"},
		Company:     []string{".company-name, [class*=company]", "[itemprop=hiringOrganization]"},
		Description: []string{".job-description, [class*=description]", "article", "main"},
		Requirements: []string{
			".requirements, .qualifications, [class*=requirement]",
		},
		Location: []string{".job-location, [class*=location]", "[itemprop=jobLocation]"},
		JobType:  []string{".job-type, [class*=employment]", "[itemprop=employmentType]"},
	}
	return s.detectAll(doc, nil, jc)
}

// pageRelevant counts distinct vocabulary hits across URL, title, and body
// text. A single strong phrase is sufficient on its own.
func (s *genericStrategy) pageRelevant(doc *dom.Document) bool {
	kw := s.cfg.Scorer.keywords
	var body string
	if b := doc.Query("body"); b != nil {
		body = b.Text()
	}
	text := strings.ToLower(doc.URL() + " " + doc.Title() + " " + body)

	for _, ph := range kw.StrongPhrases {
		if strings.Contains(text, ph) {
			return true
		}
	}
	distinct := 0
	for _, k := range kw.Job {
		if strings.Contains(text, k) {
			distinct++
			if distinct >= genericRelevanceThreshold {
				return true
			}
		}
	}
	return false
}
