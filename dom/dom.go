// Package dom is the node-tree accessor used by form detection and
// monitoring. It wraps a parsed golang.org/x/net/html tree behind a small
// read-mostly API (query, attributes, text, geometry) plus a mutation
// contract: writes go through Document mutators, which notify subtree-scoped
// subscribers. Any DOM-like source can drive it — the live package feeds it
// from a real browser, tests feed it synthetically.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document owns a parsed HTML tree and its mutation subscribers.
type Document struct {
	mu      sync.Mutex
	root    *html.Node
	url     string
	title   string
	subs    map[int]*sub
	nextSub int
}

// Parse builds a Document from an HTML stream. pageURL is carried through to
// detection results and platform matching; it may be empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	d := &Document{
		root: root,
		url:  pageURL,
		subs: make(map[int]*sub),
	}
	d.title = findTitle(root)
	return d, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(src, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(src), pageURL)
}

// URL returns the page URL the document was created with.
func (d *Document) URL() string { return d.url }

// Title returns the <title> text, if any.
func (d *Document) Title() string { return d.title }

// Root returns the document node.
func (d *Document) Root() *Node {
	return &Node{doc: d, n: d.root}
}

// Query returns the first node matching the selector, or nil.
func (d *Document) Query(selector string) *Node {
	return d.Root().Query(selector)
}

// QueryAll returns all nodes matching the selector, in document order.
func (d *Document) QueryAll(selector string) []*Node {
	return d.Root().QueryAll(selector)
}

// ByXPath resolves an XPath produced by Node.XPath back to a node, or nil.
func (d *Document) ByXPath(path string) *Node {
	if path == "" {
		return nil
	}
	cur := d.root
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if seg == "" {
			continue
		}
		tag := seg
		idx := 1
		if i := strings.IndexByte(seg, '['); i >= 0 {
			tag = seg[:i]
			n, err := strconv.Atoi(strings.TrimSuffix(seg[i+1:], "]"))
			if err != nil {
				return nil
			}
			idx = n
		}
		var next *html.Node
		count := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && strings.EqualFold(c.Data, tag) {
				count++
				if count == idx {
					next = c
					break
				}
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return &Node{doc: d, n: cur}
}

// Node is one node in the tree. The zero value is not usable; nodes are
// obtained from a Document.
type Node struct {
	doc *Document
	n   *html.Node
}

// Document returns the owning document.
func (n *Node) Document() *Document { return n.doc }

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool { return n != nil && n.n.Type == html.ElementNode }

// Tag returns the lowercase element name, or "" for non-elements.
func (n *Node) Tag() string {
	if !n.IsElement() {
		return ""
	}
	return strings.ToLower(n.n.Data)
}

// Attr returns the value of the named attribute ("" if absent).
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

// LookupAttr returns the attribute value and whether it is present.
func (n *Node) LookupAttr(name string) (string, bool) {
	if n == nil || n.n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present, regardless of value.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.LookupAttr(name)
	return ok
}

// HasClass reports whether the class attribute contains the given token.
func (n *Node) HasClass(class string) bool {
	for _, c := range strings.Fields(n.Attr("class")) {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// Parent returns the parent node, or nil at the root.
func (n *Node) Parent() *Node {
	if n == nil || n.n.Parent == nil {
		return nil
	}
	return &Node{doc: n.doc, n: n.n.Parent}
}

// Children returns the element children in document order.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Node{doc: n.doc, n: c})
		}
	}
	return out
}

// PrevSiblings returns preceding siblings (elements and text), nearest first.
func (n *Node) PrevSiblings() []*Node {
	var out []*Node
	for s := n.n.PrevSibling; s != nil; s = s.PrevSibling {
		out = append(out, &Node{doc: n.doc, n: s})
	}
	return out
}

// IsText reports whether the node is a text node.
func (n *Node) IsText() bool { return n != nil && n.n.Type == html.TextNode }

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	if n == nil || other == nil {
		return false
	}
	for p := other.n; p != nil; p = p.Parent {
		if p == n.n {
			return true
		}
	}
	return false
}

// Same reports node identity.
func (n *Node) Same(other *Node) bool {
	return n != nil && other != nil && n.n == other.n
}

// Closest walks ancestor-or-self until a node matches the selector.
func (n *Node) Closest(selector string) *Node {
	m, err := parseSelector(selector)
	if err != nil {
		return nil
	}
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur.IsElement() && m.matches(cur) {
			return cur
		}
	}
	return nil
}

// Text returns the visible text of the subtree: script/style skipped,
// whitespace collapsed.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(h *html.Node) {
		if h.Type == html.ElementNode {
			switch h.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if h.Type == html.TextNode {
			t := strings.TrimSpace(h.Data)
			if t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.n)
	return sb.String()
}

// Render returns the subtree serialized back to HTML.
func (n *Node) Render() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n.n); err != nil {
		return ""
	}
	return buf.String()
}

// Rect is a bounding box in page coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Bounds returns the node's bounding box when geometry hints are present.
// The live adapter stamps "data-fs-bounds" as "x,y,w,h"; parsed documents
// without hints report ok=false.
func (n *Node) Bounds() (Rect, bool) {
	v := n.Attr("data-fs-bounds")
	if v == "" {
		return Rect{}, false
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return Rect{}, false
	}
	var r Rect
	var fields = []*float64{&r.X, &r.Y, &r.W, &r.H}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false
		}
		*fields[i] = f
	}
	return r, true
}

func findTitle(root *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(h *html.Node) bool {
		if h.Type == html.ElementNode && h.DataAtom == atom.Title {
			if h.FirstChild != nil {
				title = strings.TrimSpace(h.FirstChild.Data)
			}
			return true
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return title
}
