package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// XPath returns a positional XPath for the node, stable for a given tree
// shape. Sibling indexes are only emitted when more than one same-tag
// sibling exists, matching browser devtools conventions.
func (n *Node) XPath() string {
	if n == nil {
		return ""
	}
	h := n.n
	switch h.Type {
	case html.DocumentNode:
		return ""
	case html.TextNode:
		return (&Node{doc: n.doc, n: h.Parent}).XPath() + "/text()"
	case html.CommentNode:
		return (&Node{doc: n.doc, n: h.Parent}).XPath() + "/comment()"
	}
	if h.Type != html.ElementNode {
		return ""
	}

	var parts []string
	for cur := h; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		name := strings.ToLower(cur.Data)
		idx, total := siblingIndex(cur)
		if total > 1 {
			parts = append([]string{fmt.Sprintf("%s[%d]", name, idx)}, parts...)
		} else {
			parts = append([]string{name}, parts...)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// siblingIndex returns the node's 1-based index among same-tag element
// siblings and the total count of same-tag siblings.
func siblingIndex(h *html.Node) (idx, total int) {
	if h.Parent == nil {
		return 1, 1
	}
	for c := h.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, h.Data) {
			continue
		}
		total++
		if c == h {
			idx = total
		}
	}
	if idx == 0 {
		idx = 1
	}
	if total == 0 {
		total = 1
	}
	return idx, total
}

// StableSelector returns the most stable locator available for the node:
// "#id", then "tag[name=...]", then a positional XPath prefixed "xpath:".
func (n *Node) StableSelector() string {
	if id := n.Attr("id"); id != "" {
		return "#" + id
	}
	if name := n.Attr("name"); name != "" {
		return fmt.Sprintf("%s[name=%s]", n.Tag(), name)
	}
	return "xpath:" + n.XPath()
}
