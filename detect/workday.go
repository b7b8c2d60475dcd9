package detect

import (
	"strings"

	"github.com/hireloop/formsense/dom"
)

// workdayStrategy targets Workday recruiting (myworkdayjobs.com). Workday
// renders a multi-page wizard where everything is addressed through
// data-automation-id attributes and a progress bar marks the steps.
type workdayStrategy struct {
	strategyBase
}

var workdayContainers = []string{
	"[data-automation-id=jobApplication]",
	"[data-automation-id=applyFlowPage]",
	"[data-automation-id*=formField]",
	"form[data-automation-id]",
}

func (s *workdayStrategy) Applies(doc *dom.Document) bool {
	url := strings.ToLower(doc.URL())
	if strings.Contains(url, "myworkdayjobs.com") || strings.Contains(url, "workday") {
		return true
	}
	return doc.Query("[data-automation-id=jobApplication]") != nil
}

func (s *workdayStrategy) Detect(doc *dom.Document) ([]DetectedForm, []Error) {
	jc := &jobContextSelectors{
		Title:       []string{"[data-automation-id=jobPostingHeader]", "h1"},
		Company:     []string{"[data-automation-id=company]"},
		Description: []string{"[data-automation-id=jobPostingDescription]"},
		Location:    []string{"[data-automation-id=locations]", "[data-automation-id=location]"},
		JobType:     []string{"[data-automation-id=time]", "[data-automation-id=timeType]"},
	}
	forms, errs := s.detectAll(doc, workdayContainers, jc)

	// The wizard's progress bar lives outside the form container; steps
	// detected there apply to every form on the page.
	if bar := doc.Query("[data-automation-id=progressBar]"); bar != nil {
		steps := bar.QueryAll("[data-automation-id*=progressBarStep], li, div")
		if len(steps) >= 2 {
			current := 1
			for i, st := range steps {
				if st.Attr("aria-current") != "" || st.HasClass("active") ||
					strings.Contains(strings.ToLower(st.Attr("data-automation-id")), "active") {
					current = i + 1
					break
				}
			}
			for i := range forms {
				forms[i].IsMultiStep = true
				forms[i].CurrentStep = current
				forms[i].TotalSteps = len(steps)
			}
		}
	}
	return forms, errs
}

// workdayLabel resolves the label from the enclosing formField container's
// automation-tagged label element.
func workdayLabel(el *dom.Node) string {
	wrap := el.Closest("[data-automation-id*=formField]")
	if wrap == nil {
		return ""
	}
	if lbl := wrap.Query("label"); lbl != nil && !lbl.Contains(el) {
		return lbl.Text()
	}
	if lbl := wrap.Query("[data-automation-id*=label]"); lbl != nil {
		return lbl.Text()
	}
	// The automation id itself is usually a readable camelCase name.
	if id := wrap.Attr("data-automation-id"); id != "" {
		return humanize(strings.TrimPrefix(id, "formField-"))
	}
	return ""
}
