package live

import (
	"encoding/json"
	"fmt"

	"github.com/hireloop/formsense/dom"
)

// jsRecord is one mutation forwarded by the injected observer script.
type jsRecord struct {
	Op       string `json:"op"`
	XPath    string `json:"xpath"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	OldValue string `json:"old_value"`
	HTML     string `json:"html"`
}

// decodeBatch parses a binding payload into records.
func decodeBatch(payload string) ([]jsRecord, error) {
	var recs []jsRecord
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		return nil, fmt.Errorf("live: parse binding payload: %w", err)
	}
	return recs, nil
}

// applyRecord replays one browser mutation onto the mirror document. The
// mirror's own mutators emit the records the monitor consumes, so replay
// and synthetic test feeds are indistinguishable downstream.
func applyRecord(doc *dom.Document, rec jsRecord) error {
	n := doc.ByXPath(rec.XPath)
	if n == nil {
		return fmt.Errorf("live: stale xpath %q for %s", rec.XPath, rec.Op)
	}
	switch rec.Op {
	case "attr":
		n.SetAttr(rec.Name, rec.Value)
	case "attr_del":
		n.RemoveAttr(rec.Name)
	case "text":
		n.SetText(rec.Value)
	case "children":
		if _, err := n.SetHTML(rec.HTML); err != nil {
			return fmt.Errorf("live: resync children at %q: %w", rec.XPath, err)
		}
	default:
		return fmt.Errorf("live: unknown op %q", rec.Op)
	}
	return nil
}
