package detect

import (
	"strings"

	"github.com/hireloop/formsense/dom"
)

// leverStrategy targets Lever postings (jobs.lever.co). Lever renders one
// .application-form with questions in .application-question cells, each
// carrying an .application-label div.
type leverStrategy struct {
	strategyBase
}

var leverContainers = []string{
	"form.application-form",
	".application-form",
	".postings-wrapper form",
}

func (s *leverStrategy) Applies(doc *dom.Document) bool {
	url := strings.ToLower(doc.URL())
	if strings.Contains(url, "lever.co") {
		return true
	}
	return doc.Query(".application-form .application-question") != nil
}

func (s *leverStrategy) Detect(doc *dom.Document) ([]DetectedForm, []Error) {
	jc := &jobContextSelectors{
		Title:        []string{".posting-headline h2", ".posting-header h2", "h2"},
		Company:      []string{".main-header-logo img[alt]", ".posting-company"},
		Description:  []string{".section-wrapper .section div[class*=description]", ".posting-description", ".section-wrapper"},
		Requirements: []string{".posting-requirements"},
		Location:     []string{".posting-categories .location", ".sort-by-time.posting-category"},
		JobType:      []string{".posting-categories .commitment"},
	}
	return s.detectAll(doc, leverContainers, jc)
}

// leverLabel reads the .application-label cell of the enclosing question.
func leverLabel(el *dom.Node) string {
	q := el.Closest(".application-question")
	if q == nil {
		return ""
	}
	if lbl := q.Query(".application-label"); lbl != nil {
		return lbl.Text()
	}
	if lbl := q.Query("label"); lbl != nil && !lbl.Contains(el) {
		return lbl.Text()
	}
	return ""
}
