package detect

import (
	"strings"
	"testing"
)

func TestJobContextFromSelectors(t *testing.T) {
	doc := parseDoc(t, `<html><body>
<h1 class="job-title">Backend Engineer</h1>
<div class="company-name">Acme GmbH</div>
<div class="job-location">Berlin</div>
<div class="job-description"><p>Build <strong>reliable</strong> services.</p></div>
</body></html>`)

	jc := extractJobContext(doc, jobContextSelectors{
		Title:       []string{".job-title"},
		Company:     []string{".company-name"},
		Location:    []string{".job-location"},
		Description: []string{".job-description"},
	})
	if jc == nil {
		t.Fatal("nil context")
	}
	if jc.Title != "Backend Engineer" || jc.Company != "Acme GmbH" || jc.Location != "Berlin" {
		t.Errorf("context = %+v", jc)
	}
	if !strings.Contains(jc.Description, "**reliable**") {
		t.Errorf("description not markdown: %q", jc.Description)
	}
}

func TestJobContextFromJSONLD(t *testing.T) {
	doc := parseDoc(t, `<html><head><script type="application/ld+json">
{"@type":"JobPosting","title":"Data Engineer","employmentType":"FULL_TIME",
"hiringOrganization":{"@type":"Organization","name":"Acme"},
"jobLocation":{"@type":"Place","address":{"addressLocality":"Munich","addressCountry":"DE"}}}
</script></head><body><p>placeholder</p></body></html>`)

	jc := extractJobContext(doc, jobContextSelectors{})
	if jc == nil {
		t.Fatal("nil context")
	}
	if jc.Title != "Data Engineer" {
		t.Errorf("title = %q", jc.Title)
	}
	if jc.Company != "Acme" {
		t.Errorf("company = %q", jc.Company)
	}
	if jc.JobType != "FULL_TIME" {
		t.Errorf("job type = %q", jc.JobType)
	}
	if jc.Location != "Munich, DE" {
		t.Errorf("location = %q", jc.Location)
	}
}

func TestJobContextHeadFallback(t *testing.T) {
	doc := parseDoc(t, `<html><head>
<title>Frontend Engineer | Acme</title>
<meta property="og:site_name" content="Acme Careers">
<meta property="og:description" content="Join our team.">
</head><body></body></html>`)

	jc := extractJobContext(doc, jobContextSelectors{})
	if jc == nil {
		t.Fatal("nil context")
	}
	if jc.Title != "Frontend Engineer | Acme" {
		t.Errorf("title = %q", jc.Title)
	}
	if jc.Company != "Acme Careers" {
		t.Errorf("company = %q", jc.Company)
	}
	if jc.Description != "Join our team." {
		t.Errorf("description = %q", jc.Description)
	}
}

func TestRequirementsByHeading(t *testing.T) {
	doc := parseDoc(t, `<html><body><div>
<h2>About the role</h2><p>You build things.</p>
<h2>Requirements</h2><ul><li>Go experience</li><li>SQL</li></ul><p>Nice to have: K8s</p>
<h2>Benefits</h2><p>Remote work.</p>
</div></body></html>`)

	got := requirementsByHeading(doc)
	if !strings.Contains(got, "Go experience") || !strings.Contains(got, "Nice to have") {
		t.Errorf("requirements = %q", got)
	}
	if strings.Contains(got, "Remote work") {
		t.Errorf("requirements leaked past next heading: %q", got)
	}
}
