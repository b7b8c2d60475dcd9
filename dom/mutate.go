package dom

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Mutators are the only write path into the tree. Each applies its change
// under the document lock, then notifies matching subscribers with the lock
// released. The monitor and the live adapter both drive the tree through
// these; tests use them as a synthetic event feed.

// SetAttr sets (or replaces) an attribute and emits an attr record.
func (n *Node) SetAttr(name, value string) {
	d := n.doc
	d.mu.Lock()
	old, had := n.lookupAttrLocked(name)
	found := false
	for i := range n.n.Attr {
		if strings.EqualFold(n.n.Attr[i].Key, name) {
			n.n.Attr[i].Val = value
			found = true
			break
		}
	}
	if !found {
		n.n.Attr = append(n.n.Attr, html.Attribute{Key: strings.ToLower(name), Val: value})
	}
	handlers := d.handlersForLocked(n.n)
	d.mu.Unlock()

	if had && old == value {
		return
	}
	dispatch(handlers, Record{
		Op: OpAttr, Target: n, Name: strings.ToLower(name),
		Value: value, OldValue: old, XPath: n.XPath(), At: time.Now(),
	})
}

// RemoveAttr deletes an attribute and emits an attr_del record. No record
// is emitted if the attribute was absent.
func (n *Node) RemoveAttr(name string) {
	d := n.doc
	d.mu.Lock()
	old, had := n.lookupAttrLocked(name)
	if had {
		attrs := n.n.Attr[:0]
		for _, a := range n.n.Attr {
			if !strings.EqualFold(a.Key, name) {
				attrs = append(attrs, a)
			}
		}
		n.n.Attr = attrs
	}
	handlers := d.handlersForLocked(n.n)
	d.mu.Unlock()

	if !had {
		return
	}
	dispatch(handlers, Record{
		Op: OpAttrDel, Target: n, Name: strings.ToLower(name),
		OldValue: old, XPath: n.XPath(), At: time.Now(),
	})
}

// SetText replaces the node's text children with a single text node and
// emits a text record.
func (n *Node) SetText(text string) {
	d := n.doc
	d.mu.Lock()
	var old strings.Builder
	for c := n.n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			old.WriteString(c.Data)
			n.n.RemoveChild(c)
		}
		c = next
	}
	n.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	handlers := d.handlersForLocked(n.n)
	d.mu.Unlock()

	dispatch(handlers, Record{
		Op: OpText, Target: n,
		Value: text, OldValue: strings.TrimSpace(old.String()),
		XPath: n.XPath(), At: time.Now(),
	})
}

// AppendHTML parses fragment in the context of n, appends the resulting
// nodes, and emits one insert record per top-level inserted node.
func (n *Node) AppendHTML(fragment string) ([]*Node, error) {
	d := n.doc
	d.mu.Lock()
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n.n)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	var inserted []*Node
	for _, h := range nodes {
		n.n.AppendChild(h)
		inserted = append(inserted, &Node{doc: d, n: h})
	}
	handlers := d.handlersForLocked(n.n)
	d.mu.Unlock()

	now := time.Now()
	for _, in := range inserted {
		dispatch(handlers, Record{
			Op: OpInsert, Target: in, Parent: n,
			XPath: in.XPath(), At: now,
		})
	}
	return inserted, nil
}

// SetHTML replaces the node's children with the parsed fragment. Element
// removals and insertions are reported the same way RemoveNode and
// AppendHTML report them; stray text children are dropped silently.
func (n *Node) SetHTML(fragment string) ([]*Node, error) {
	for _, c := range n.Children() {
		c.RemoveNode()
	}
	d := n.doc
	d.mu.Lock()
	for c := n.n.FirstChild; c != nil; {
		next := c.NextSibling
		n.n.RemoveChild(c)
		c = next
	}
	d.mu.Unlock()
	return n.AppendHTML(fragment)
}

// RemoveNode detaches n from its parent and emits a remove record.
// Subscribers scoped on n itself (not only its ancestors) are notified.
func (n *Node) RemoveNode() {
	d := n.doc
	d.mu.Lock()
	parent := n.n.Parent
	if parent == nil {
		d.mu.Unlock()
		return
	}
	xpath := n.XPath()
	// Collect handlers while the node is still attached so subtree-scoped
	// subscriptions (including on n itself) see the removal.
	handlers := d.handlersForLocked(n.n)
	parent.RemoveChild(n.n)
	d.mu.Unlock()

	dispatch(handlers, Record{
		Op: OpRemove, Target: n, Parent: &Node{doc: d, n: parent},
		XPath: xpath, At: time.Now(),
	})
}

func (n *Node) lookupAttrLocked(name string) (string, bool) {
	for _, a := range n.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// handlersForLocked snapshots the handlers whose scope contains anchor.
// Caller holds d.mu.
func (d *Document) handlersForLocked(anchor *html.Node) []Handler {
	var out []Handler
	for _, s := range d.subs {
		if s.scope == nil || containsNode(s.scope, anchor) {
			out = append(out, s.fn)
		}
	}
	return out
}

func dispatch(handlers []Handler, rec Record) {
	for _, fn := range handlers {
		fn(rec)
	}
}
