package dom

import (
	"time"

	"golang.org/x/net/html"
)

// Op is the kind of structural change observed on the tree.
type Op string

const (
	OpInsert  Op = "insert"   // node (subtree) added
	OpRemove  Op = "remove"   // node (subtree) detached
	OpText    Op = "text"     // text content replaced
	OpAttr    Op = "attr"     // attribute set or changed
	OpAttrDel Op = "attr_del" // attribute removed
)

// Record is a single observed mutation. Target is still attached for
// insert/attr/text; for remove it is the detached node and Parent points at
// its former parent.
type Record struct {
	Op       Op
	Target   *Node
	Parent   *Node
	Name     string // attribute name for attr/attr_del
	Value    string // new value
	OldValue string // previous value
	XPath    string // target location at emit time
	At       time.Time
}

// Handler receives mutation records. Handlers run synchronously on the
// mutating call, after the tree change is applied and the document lock is
// released, so they may read or further mutate the document.
type Handler func(Record)

type sub struct {
	id    int
	scope *html.Node // nil observes the whole document
	fn    Handler
}

// Subscription is a subtree-scoped mutation feed registration.
type Subscription struct {
	id  int
	doc *Document
}

// Subscribe registers fn for every mutation whose target falls inside
// scope's subtree (scope itself included). A nil scope observes the whole
// document.
func (d *Document) Subscribe(scope *Node, fn Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	s := &sub{id: id, fn: fn}
	if scope != nil {
		s.scope = scope.n
	}
	d.subs[id] = s
	return &Subscription{id: id, doc: d}
}

// Close removes the subscription. After Close returns no further records
// are delivered to it.
func (s *Subscription) Close() {
	if s == nil || s.doc == nil {
		return
	}
	s.doc.mu.Lock()
	delete(s.doc.subs, s.id)
	s.doc.mu.Unlock()
}

func containsNode(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
