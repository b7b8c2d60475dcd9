package detect

import (
	"strings"

	"github.com/hireloop/formsense/dom"
)

// greenhouseStrategy targets Greenhouse-hosted boards and embeds. The
// application form is an explicit container (#application_form or the
// embed's #grnhse_app), with each question wrapped in a .field div holding
// its label.
type greenhouseStrategy struct {
	strategyBase
}

var greenhouseContainers = []string{
	"#application_form",
	"#grnhse_app form",
	"form#application-form",
	".application--form",
}

func (s *greenhouseStrategy) Applies(doc *dom.Document) bool {
	url := strings.ToLower(doc.URL())
	if strings.Contains(url, "greenhouse.io") {
		return true
	}
	// Structural signature for embedded boards on company domains.
	return doc.Query("#grnhse_app") != nil || doc.Query("#application_form") != nil
}

func (s *greenhouseStrategy) Detect(doc *dom.Document) ([]DetectedForm, []Error) {
	jc := &jobContextSelectors{
		Title:        []string{".app-title", "h1.section-header", "h1"},
		Company:      []string{".company-name", ".level-0"},
		Description:  []string{"#content .body", ".job-post-content", "#content"},
		Requirements: []string{},
		Location:     []string{".location", ".job-location"},
	}
	return s.detectAll(doc, greenhouseContainers, jc)
}

// greenhouseLabel reads the question label from the wrapping .field div.
func greenhouseLabel(el *dom.Node) string {
	wrap := el.Closest(".field")
	if wrap == nil {
		wrap = el.Closest(".application-question")
	}
	if wrap == nil {
		return ""
	}
	if lbl := wrap.Query("label"); lbl != nil && !lbl.Contains(el) {
		return lbl.Text()
	}
	if lbl := wrap.Query(".label, .question-label"); lbl != nil {
		return lbl.Text()
	}
	return ""
}
