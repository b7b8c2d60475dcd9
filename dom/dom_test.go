package dom

import (
	"strings"
	"testing"
)

const samplePage = `<html><head><title>Apply Now</title></head><body>
<div id="main" class="wrapper outer">
  <form id="apply" class="application-form">
    <label for="name">Name</label>
    <input id="name" type="text" name="full_name" required>
    <input type="radio" name="visa" value="yes">
    <select id="country" data-automation-id="countryDropdown">
      <option value="de">Germany</option>
    </select>
    <script>var x = "ignore me";</script>
    <button type="submit">Apply</button>
  </form>
</div>
</body></html>`

func sample(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(samplePage, "https://example.com/apply")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDocumentBasics(t *testing.T) {
	doc := sample(t)
	if doc.URL() != "https://example.com/apply" {
		t.Errorf("url = %q", doc.URL())
	}
	if doc.Title() != "Apply Now" {
		t.Errorf("title = %q", doc.Title())
	}
}

func TestQuerySelectors(t *testing.T) {
	doc := sample(t)
	tests := []struct {
		sel  string
		want int
	}{
		{"form", 1},
		{"#apply", 1},
		{".application-form", 1},
		{"div.wrapper.outer", 1},
		{"input", 2},
		{"input[type=radio]", 1},
		{"input[required]", 1},
		{"[data-automation-id*=country]", 1},
		{"form input", 2},
		{"input, select, textarea", 3},
		{"input[type=radio][name=visa]", 1},
		{"input[type=radio][name=other]", 0},
		{"#main form label", 1},
		{"textarea", 0},
		{"#missing", 0},
	}
	for _, tt := range tests {
		if got := len(doc.QueryAll(tt.sel)); got != tt.want {
			t.Errorf("QueryAll(%q) = %d, want %d", tt.sel, got, tt.want)
		}
	}
}

func TestQueryStackedAttributes(t *testing.T) {
	doc, err := ParseString(`<html><body><form>
<label><input type="radio" name="auth" value="yes"> Yes</label>
<label><input type="radio" name="auth" value="no"> No</label>
<input type="radio" name="relocate" value="yes">
<input type="checkbox" name="auth">
</form></body></html>`, "https://example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	group := doc.QueryAll("input[type=radio][name=auth]")
	if len(group) != 2 {
		t.Fatalf("radio group = %d nodes, want 2", len(group))
	}
	for _, n := range group {
		if n.Attr("name") != "auth" || n.Attr("type") != "radio" {
			t.Errorf("matched %s[type=%s name=%s]", n.Tag(), n.Attr("type"), n.Attr("name"))
		}
	}
	if got := len(doc.QueryAll("input[type=radio][name=auth][value=yes]")); got != 1 {
		t.Errorf("three stacked predicates = %d nodes, want 1", got)
	}
}

func TestQueryExcludesSelf(t *testing.T) {
	doc := sample(t)
	form := doc.Query("form")
	if form.Query("form") != nil {
		t.Error("query matched the root itself")
	}
}

func TestTextSkipsScripts(t *testing.T) {
	doc := sample(t)
	text := doc.Query("form").Text()
	if strings.Contains(text, "ignore me") {
		t.Errorf("script text leaked: %q", text)
	}
	if !strings.Contains(text, "Name") || !strings.Contains(text, "Apply") {
		t.Errorf("text = %q", text)
	}
}

func TestClosestAndContains(t *testing.T) {
	doc := sample(t)
	input := doc.Query("#name")

	form := input.Closest("form")
	if form == nil || form.Attr("id") != "apply" {
		t.Fatalf("closest form = %v", form)
	}
	if !form.Contains(input) {
		t.Error("form should contain its input")
	}
	if input.Contains(form) {
		t.Error("containment is not symmetric")
	}
	if !form.Contains(form) {
		t.Error("containment includes self")
	}
}

func TestHasClass(t *testing.T) {
	doc := sample(t)
	div := doc.Query("#main")
	if !div.HasClass("wrapper") || !div.HasClass("outer") {
		t.Error("class tokens not found")
	}
	if div.HasClass("wrap") {
		t.Error("partial token matched")
	}
}

func TestBounds(t *testing.T) {
	doc := sample(t)
	input := doc.Query("#name")
	if _, ok := input.Bounds(); ok {
		t.Error("bounds reported without geometry hint")
	}
	input.SetAttr("data-fs-bounds", "10,20,300,40")
	r, ok := input.Bounds()
	if !ok || r.X != 10 || r.Y != 20 || r.W != 300 || r.H != 40 {
		t.Errorf("bounds = %+v ok=%v", r, ok)
	}
}

func TestXPathRoundTrip(t *testing.T) {
	doc := sample(t)
	for _, sel := range []string{"#name", "#country", "form", "button"} {
		n := doc.Query(sel)
		if n == nil {
			t.Fatalf("%q not found", sel)
		}
		back := doc.ByXPath(n.XPath())
		if back == nil || !back.Same(n) {
			t.Errorf("xpath round trip failed for %q: %q", sel, n.XPath())
		}
	}
}

func TestByXPathIndexed(t *testing.T) {
	doc := sample(t)
	inputs := doc.QueryAll("input")
	if len(inputs) != 2 {
		t.Fatal("setup")
	}
	first, second := inputs[0].XPath(), inputs[1].XPath()
	if first == second {
		t.Fatalf("sibling xpaths identical: %q", first)
	}
	if !doc.ByXPath(second).Same(inputs[1]) {
		t.Errorf("indexed resolution failed: %q", second)
	}
}

func TestStableSelector(t *testing.T) {
	doc := sample(t)
	if got := doc.Query("#name").StableSelector(); got != "#name" {
		t.Errorf("id selector = %q", got)
	}
	radio := doc.Query("input[type=radio]")
	got := radio.StableSelector()
	if !strings.Contains(got, "visa") && !strings.HasPrefix(got, "xpath:") {
		t.Errorf("selector for unnamed node = %q", got)
	}
}
