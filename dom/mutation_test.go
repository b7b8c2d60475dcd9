package dom

import (
	"testing"
)

func mutDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(`<html><body>
<div id="outer"><div id="inner"><input id="f" type="text"></div></div>
<div id="aside"><p id="note">hi</p></div>
</body></html>`, "https://example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func collect(doc *Document, scope *Node) (*[]Record, *Subscription) {
	var recs []Record
	s := doc.Subscribe(scope, func(r Record) { recs = append(recs, r) })
	return &recs, s
}

func TestSetAttrRecords(t *testing.T) {
	doc := mutDoc(t)
	recs, _ := collect(doc, nil)
	input := doc.Query("#f")

	input.SetAttr("value", "Ada")
	input.SetAttr("value", "Ada") // unchanged, no record
	input.SetAttr("value", "Ada L")

	if len(*recs) != 2 {
		t.Fatalf("records = %d, want 2", len(*recs))
	}
	first := (*recs)[0]
	if first.Op != OpAttr || first.Name != "value" || first.Value != "Ada" || first.OldValue != "" {
		t.Errorf("first record = %+v", first)
	}
	if (*recs)[1].OldValue != "Ada" {
		t.Errorf("old value = %q, want Ada", (*recs)[1].OldValue)
	}
	if input.Attr("value") != "Ada L" {
		t.Errorf("attr = %q", input.Attr("value"))
	}
}

func TestRemoveAttrRecords(t *testing.T) {
	doc := mutDoc(t)
	input := doc.Query("#f")
	input.SetAttr("required", "")

	recs, _ := collect(doc, nil)
	input.RemoveAttr("required")
	input.RemoveAttr("required") // already absent, no record

	if len(*recs) != 1 {
		t.Fatalf("records = %d, want 1", len(*recs))
	}
	if r := (*recs)[0]; r.Op != OpAttrDel || r.Name != "required" {
		t.Errorf("record = %+v", r)
	}
	if input.HasAttr("required") {
		t.Error("attribute still present")
	}
}

func TestSetTextRecord(t *testing.T) {
	doc := mutDoc(t)
	recs, _ := collect(doc, nil)
	note := doc.Query("#note")

	note.SetText("bye")

	if len(*recs) != 1 {
		t.Fatalf("records = %d, want 1", len(*recs))
	}
	r := (*recs)[0]
	if r.Op != OpText || r.Value != "bye" || r.OldValue != "hi" {
		t.Errorf("record = %+v", r)
	}
	if note.Text() != "bye" {
		t.Errorf("text = %q", note.Text())
	}
}

func TestAppendHTMLInsertRecords(t *testing.T) {
	doc := mutDoc(t)
	recs, _ := collect(doc, nil)
	inner := doc.Query("#inner")

	nodes, err := inner.AppendHTML(`<label for="g">G</label><input id="g" type="text">`)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("inserted = %d, want 2", len(nodes))
	}
	if len(*recs) != 2 {
		t.Fatalf("records = %d, want 2", len(*recs))
	}
	for _, r := range *recs {
		if r.Op != OpInsert || !r.Parent.Same(inner) {
			t.Errorf("record = %+v", r)
		}
	}
	if doc.Query("#g") == nil {
		t.Error("inserted node not queryable")
	}
}

func TestRemoveNodeRecord(t *testing.T) {
	doc := mutDoc(t)
	recs, _ := collect(doc, nil)
	inner := doc.Query("#inner")
	outer := doc.Query("#outer")

	inner.RemoveNode()

	if len(*recs) != 1 {
		t.Fatalf("records = %d, want 1", len(*recs))
	}
	r := (*recs)[0]
	if r.Op != OpRemove || !r.Target.Same(inner) || !r.Parent.Same(outer) {
		t.Errorf("record = %+v", r)
	}
	if doc.Query("#inner") != nil {
		t.Error("node still attached")
	}
	// Detached once is detached for good.
	inner.RemoveNode()
	if len(*recs) != 1 {
		t.Errorf("second removal emitted a record")
	}
}

func TestRemoveNotifiesSubscriptionOnSelf(t *testing.T) {
	doc := mutDoc(t)
	inner := doc.Query("#inner")
	recs, _ := collect(doc, inner)

	inner.RemoveNode()

	if len(*recs) != 1 || (*recs)[0].Op != OpRemove {
		t.Errorf("scoped subscription missed its own removal: %+v", *recs)
	}
}

func TestSetHTMLReplacesChildren(t *testing.T) {
	doc := mutDoc(t)
	outer := doc.Query("#outer")
	recs, _ := collect(doc, outer)

	if _, err := outer.SetHTML(`<span id="a">A</span><span id="b">B</span>`); err != nil {
		t.Fatalf("set html: %v", err)
	}

	var removes, inserts int
	for _, r := range *recs {
		switch r.Op {
		case OpRemove:
			removes++
		case OpInsert:
			inserts++
		}
	}
	if removes != 1 || inserts != 2 {
		t.Errorf("removes = %d inserts = %d, want 1 and 2", removes, inserts)
	}
	if doc.Query("#inner") != nil || doc.Query("#b") == nil {
		t.Error("children not replaced")
	}
}

func TestSubscriptionScoping(t *testing.T) {
	doc := mutDoc(t)
	outerRecs, _ := collect(doc, doc.Query("#outer"))
	asideRecs, _ := collect(doc, doc.Query("#aside"))

	doc.Query("#f").SetAttr("value", "x")

	if len(*outerRecs) != 1 {
		t.Errorf("outer scope records = %d, want 1", len(*outerRecs))
	}
	if len(*asideRecs) != 0 {
		t.Errorf("aside scope records = %d, want 0", len(*asideRecs))
	}
}

func TestSubscriptionClose(t *testing.T) {
	doc := mutDoc(t)
	recs, s := collect(doc, nil)
	input := doc.Query("#f")

	input.SetAttr("value", "one")
	s.Close()
	s.Close() // idempotent
	input.SetAttr("value", "two")

	if len(*recs) != 1 {
		t.Errorf("records after close = %d, want 1", len(*recs))
	}
}

func TestHandlerMayMutate(t *testing.T) {
	doc := mutDoc(t)
	input := doc.Query("#f")
	var nested int
	doc.Subscribe(nil, func(r Record) {
		if r.Op == OpAttr && r.Name == "value" {
			nested++
			if nested == 1 {
				input.SetAttr("data-echo", r.Value)
			}
		}
	})

	input.SetAttr("value", "abc")

	if input.Attr("data-echo") != "abc" {
		t.Errorf("echo attr = %q", input.Attr("data-echo"))
	}
}
