package dom

import (
	"fmt"
	"strings"
)

// The selector engine supports the subset the detection heuristics need:
//
//   - tag:            "input", "form"
//   - .class:         ".application-form"
//   - #id:            "#application_form"
//   - tag.class:      "div.field"
//   - tag#id:         "form#apply"
//   - [attr]:         "[required]"
//   - [attr=val]:     "[data-automation-id=jobApplication]"
//   - [attr*=val]:    "[class*=step]" (substring)
//   - stacked attrs:  "input[type=radio][name=visa]"
//   - descendant combinator via spaces
//   - alternation via commas: "input, select, textarea"

// Query returns the first descendant (or self for non-document roots)
// matching the selector.
func (n *Node) Query(selector string) *Node {
	all := n.queryLimit(selector, 1)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// QueryAll returns every matching descendant in document order.
func (n *Node) QueryAll(selector string) []*Node {
	return n.queryLimit(selector, -1)
}

func (n *Node) queryLimit(selector string, limit int) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	seen := make(map[*Node]bool)
	for _, alt := range strings.Split(selector, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		matches := n.queryChain(strings.Fields(alt))
		for _, m := range matches {
			key := m
			// Dedupe across alternations by underlying node.
			dup := false
			for s := range seen {
				if s.n == m.n {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			seen[key] = true
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// queryChain applies descendant combinator parts left to right.
func (n *Node) queryChain(parts []string) []*Node {
	if len(parts) == 0 {
		return nil
	}
	roots := []*Node{n}
	for _, part := range parts {
		m, err := parseSelector(part)
		if err != nil {
			return nil
		}
		var next []*Node
		for _, r := range roots {
			next = append(next, r.descendantsMatching(m)...)
		}
		roots = next
	}
	return roots
}

func (n *Node) descendantsMatching(m simpleSelector) []*Node {
	var out []*Node
	var walk func(*Node, bool)
	walk = func(cur *Node, self bool) {
		if !self && cur.IsElement() && m.matches(cur) {
			out = append(out, cur)
		}
		for c := cur.n.FirstChild; c != nil; c = c.NextSibling {
			walk(&Node{doc: n.doc, n: c}, false)
		}
	}
	walk(n, true)
	return out
}

type attrPred struct {
	key string
	val string
	op  byte // 0 = presence, '=' exact, '*' substring
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrs   []attrPred
}

func parseSelector(sel string) (simpleSelector, error) {
	var s simpleSelector
	rest := sel

	// Attribute predicates: each [attr], [attr=val] or [attr*=val] group is
	// lifted out; they may stack, as in input[type=radio][name=visa].
	for {
		i := strings.IndexByte(rest, '[')
		if i < 0 {
			break
		}
		j := strings.IndexByte(rest[i:], ']')
		if j < 0 {
			return s, fmt.Errorf("dom: bad selector %q", sel)
		}
		attr := rest[i+1 : i+j]
		rest = rest[:i] + rest[i+j+1:]
		var p attrPred
		switch {
		case strings.Contains(attr, "*="):
			kv := strings.SplitN(attr, "*=", 2)
			p = attrPred{key: kv[0], val: trimQuotes(kv[1]), op: '*'}
		case strings.Contains(attr, "="):
			kv := strings.SplitN(attr, "=", 2)
			p = attrPred{key: kv[0], val: trimQuotes(kv[1]), op: '='}
		default:
			p = attrPred{key: attr}
		}
		s.attrs = append(s.attrs, p)
	}

	// #id and .class pieces.
	for {
		hi := strings.IndexByte(rest, '#')
		di := strings.IndexByte(rest, '.')
		if hi < 0 && di < 0 {
			break
		}
		cut := hi
		if cut < 0 || (di >= 0 && di < cut) {
			cut = di
		}
		head, tail := rest[:cut], rest[cut:]
		if s.tag == "" {
			s.tag = head
		}
		// Consume one #id or .class token.
		end := len(tail)
		for i := 1; i < len(tail); i++ {
			if tail[i] == '#' || tail[i] == '.' {
				end = i
				break
			}
		}
		if tail[0] == '#' {
			s.id = tail[1:end]
		} else {
			s.classes = append(s.classes, tail[1:end])
		}
		rest = tail[end:]
	}
	if s.tag == "" && s.id == "" && len(s.classes) == 0 && len(s.attrs) == 0 {
		s.tag = rest
	}
	if s.tag == "" && rest != "" && rest[0] != '#' && rest[0] != '.' {
		s.tag = rest
	}
	if s.tag == "*" {
		s.tag = ""
	}
	return s, nil
}

func trimQuotes(v string) string {
	return strings.Trim(v, `"'`)
}

func (m simpleSelector) matches(n *Node) bool {
	if m.tag != "" && n.Tag() != strings.ToLower(m.tag) {
		return false
	}
	if m.id != "" && n.Attr("id") != m.id {
		return false
	}
	for _, c := range m.classes {
		if !n.HasClass(c) {
			return false
		}
	}
	for _, p := range m.attrs {
		v, ok := n.LookupAttr(p.key)
		if !ok {
			return false
		}
		switch p.op {
		case '=':
			if v != p.val {
				return false
			}
		case '*':
			if !strings.Contains(strings.ToLower(v), strings.ToLower(p.val)) {
				return false
			}
		}
	}
	return true
}
