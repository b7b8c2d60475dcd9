package detect

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hireloop/formsense/dom"
)

// jobContextSelectors are a platform's ordered selector chains for posting
// metadata. Secondary fallbacks (JSON-LD JobPosting, head metadata) run
// when the chains miss.
type jobContextSelectors struct {
	Title        []string
	Company      []string
	Description  []string
	Requirements []string
	Location     []string
	JobType      []string
}

var (
	descSanitizer = bluemonday.UGCPolicy()
	descConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
)

const maxContextLen = 8192

// extractJobContext pulls posting metadata using the strategy's selector
// chains, then JSON-LD, then <head> hints. Returns nil when nothing at all
// was found.
func extractJobContext(doc *dom.Document, sels jobContextSelectors) *JobContext {
	jc := &JobContext{
		Title:        firstText(doc, sels.Title),
		Company:      firstText(doc, sels.Company),
		Location:     firstText(doc, sels.Location),
		JobType:      firstText(doc, sels.JobType),
		Requirements: firstText(doc, sels.Requirements),
	}

	if n := firstNode(doc, sels.Description); n != nil {
		jc.Description = toMarkdown(n)
	}
	if jc.Requirements == "" {
		jc.Requirements = requirementsByHeading(doc)
	}

	fillFromJSONLD(doc, jc)
	fillFromHead(doc, jc)

	if *jc == (JobContext{}) {
		return nil
	}
	return jc
}

func firstText(doc *dom.Document, chain []string) string {
	if n := firstNode(doc, chain); n != nil {
		return truncate(n.Text(), 512)
	}
	return ""
}

func firstNode(doc *dom.Document, chain []string) *dom.Node {
	for _, sel := range chain {
		if n := doc.Query(sel); n != nil && n.Text() != "" {
			return n
		}
	}
	return nil
}

// toMarkdown sanitizes the node's HTML and converts it to Markdown,
// falling back to plain text.
func toMarkdown(n *dom.Node) string {
	clean := descSanitizer.Sanitize(n.Render())
	md, err := descConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return truncate(n.Text(), maxContextLen)
	}
	return truncate(strings.TrimSpace(md), maxContextLen)
}

var requirementsHeading = regexp.MustCompile(`(?i)\b(requirements?|qualifications?|what you.ll need)\b`)

// requirementsByHeading finds a requirements-like heading and returns the
// text of its following siblings up to the next heading.
func requirementsByHeading(doc *dom.Document) string {
	for _, h := range doc.QueryAll("h2, h3, h4, strong") {
		if !requirementsHeading.MatchString(h.Text()) {
			continue
		}
		parent := h.Parent()
		if parent == nil {
			continue
		}
		var parts []string
		found := false
		for _, c := range parent.Children() {
			if c.Same(h) {
				found = true
				continue
			}
			if !found {
				continue
			}
			tag := c.Tag()
			if tag == "h1" || tag == "h2" || tag == "h3" || tag == "h4" {
				break
			}
			if t := c.Text(); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return truncate(strings.Join(parts, "\n"), maxContextLen)
		}
	}
	return ""
}

// jsonLD mirrors the schema.org JobPosting fields the extractor reads.
type jsonLD struct {
	Type         any             `json:"@type"`
	Graph        []jsonLD        `json:"@graph"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	EmploymentType any           `json:"employmentType"`
	HiringOrg    json.RawMessage `json:"hiringOrganization"`
	JobLocation  json.RawMessage `json:"jobLocation"`
}

// fillFromJSONLD fills gaps from a schema.org JobPosting block, the most
// reliable secondary source on career pages.
func fillFromJSONLD(doc *dom.Document, jc *JobContext) {
	for _, script := range doc.QueryAll("script[type*=ld+json]") {
		var ld jsonLD
		if err := json.Unmarshal([]byte(script.Text()), &ld); err != nil {
			continue
		}
		candidates := append([]jsonLD{ld}, ld.Graph...)
		for _, c := range candidates {
			if !isJobPosting(c.Type) {
				continue
			}
			if jc.Title == "" {
				jc.Title = c.Title
			}
			if jc.Description == "" && c.Description != "" {
				jc.Description = toMarkdownString(c.Description)
			}
			if jc.JobType == "" {
				jc.JobType = flattenLDString(c.EmploymentType)
			}
			if jc.Company == "" {
				jc.Company = ldName(c.HiringOrg)
			}
			if jc.Location == "" {
				jc.Location = ldLocality(c.JobLocation)
			}
			return
		}
	}
}

func isJobPosting(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func flattenLDString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func ldName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func ldLocality(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Address struct {
			Locality string `json:"addressLocality"`
			Region   string `json:"addressRegion"`
			Country  string `json:"addressCountry"`
		} `json:"address"`
	}
	var objs []json.RawMessage
	if err := json.Unmarshal(raw, &objs); err == nil && len(objs) > 0 {
		raw = objs[0]
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	parts := []string{}
	for _, p := range []string{obj.Address.Locality, obj.Address.Region, obj.Address.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func toMarkdownString(htmlText string) string {
	clean := descSanitizer.Sanitize(htmlText)
	md, err := descConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return truncate(htmlText, maxContextLen)
	}
	return truncate(strings.TrimSpace(md), maxContextLen)
}

// fillFromHead fills remaining gaps from OpenGraph/head metadata.
func fillFromHead(doc *dom.Document, jc *JobContext) {
	meta := func(prop string) string {
		if n := doc.Query("meta[property=" + prop + "]"); n != nil {
			return n.Attr("content")
		}
		if n := doc.Query("meta[name=" + prop + "]"); n != nil {
			return n.Attr("content")
		}
		return ""
	}
	if jc.Title == "" {
		if t := meta("og:title"); t != "" {
			jc.Title = t
		} else {
			jc.Title = doc.Title()
		}
	}
	if jc.Company == "" {
		jc.Company = meta("og:site_name")
	}
	if jc.Description == "" {
		jc.Description = truncate(meta("og:description"), maxContextLen)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
