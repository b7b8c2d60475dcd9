package live

import (
	"testing"

	"github.com/hireloop/formsense/dom"
)

const page = `<html><body><div id="wrap">
<input id="email" type="email">
<textarea id="notes"></textarea>
</div></body></html>`

func mustDoc(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(page, "https://example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func xpathOf(t *testing.T, doc *dom.Document, sel string) string {
	t.Helper()
	n := doc.Query(sel)
	if n == nil {
		t.Fatalf("selector %q not found", sel)
	}
	return n.XPath()
}

func TestApplyAttr(t *testing.T) {
	doc := mustDoc(t)
	rec := jsRecord{Op: "attr", XPath: xpathOf(t, doc, "#email"), Name: "value", Value: "ada@example.com"}
	if err := applyRecord(doc, rec); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := doc.Query("#email").Attr("value"); got != "ada@example.com" {
		t.Errorf("value = %q", got)
	}

	rec = jsRecord{Op: "attr_del", XPath: xpathOf(t, doc, "#email"), Name: "value"}
	if err := applyRecord(doc, rec); err != nil {
		t.Fatalf("apply del: %v", err)
	}
	if doc.Query("#email").HasAttr("value") {
		t.Error("value attribute still present after attr_del")
	}
}

func TestApplyText(t *testing.T) {
	doc := mustDoc(t)
	rec := jsRecord{Op: "text", XPath: xpathOf(t, doc, "#notes"), Value: "hello"}
	if err := applyRecord(doc, rec); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := doc.Query("#notes").Text(); got != "hello" {
		t.Errorf("text = %q", got)
	}
}

func TestApplyChildrenResync(t *testing.T) {
	doc := mustDoc(t)
	rec := jsRecord{
		Op:    "children",
		XPath: xpathOf(t, doc, "#wrap"),
		HTML:  `<input id="name" type="text"><input id="email" type="email">`,
	}
	if err := applyRecord(doc, rec); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if doc.Query("#notes") != nil {
		t.Error("old child survived resync")
	}
	if doc.Query("#name") == nil {
		t.Error("new child missing after resync")
	}
}

func TestApplyStaleXPath(t *testing.T) {
	doc := mustDoc(t)
	rec := jsRecord{Op: "attr", XPath: "/html[1]/body[1]/div[9]", Name: "class", Value: "x"}
	if err := applyRecord(doc, rec); err == nil {
		t.Error("expected error for stale xpath")
	}
}

func TestDecodeBatch(t *testing.T) {
	recs, err := decodeBatch(`[{"op":"attr","xpath":"/html[1]","name":"class","value":"v"}]`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].Op != "attr" {
		t.Errorf("recs = %+v", recs)
	}

	if _, err := decodeBatch(`{not json`); err == nil {
		t.Error("expected error for malformed payload")
	}
}
