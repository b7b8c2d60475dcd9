package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hireloop/formsense/dom"
)

// nativeTypes maps native input types to field types. Unrecognized types
// fall back to text.
var nativeTypes = map[string]FieldType{
	"text":     FieldText,
	"email":    FieldEmail,
	"tel":      FieldPhone,
	"phone":    FieldPhone,
	"url":      FieldURL,
	"date":     FieldDate,
	"number":   FieldNumber,
	"file":     FieldFile,
	"checkbox": FieldCheckbox,
	"radio":    FieldRadio,
	"search":   FieldText,
	"password": FieldText,
}

// rejectedTypes are controls that are never form fields.
var rejectedTypes = map[string]bool{
	"hidden": true, "submit": true, "button": true, "reset": true, "image": true,
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

// Classifier turns candidate elements into Field descriptions. The profile
// rule table is fixed at construction; order is the matching contract.
type Classifier struct {
	profileRules []ProfileRule
}

// NewClassifier creates a Classifier. A nil rule table uses
// DefaultProfileRules.
func NewClassifier(rules []ProfileRule) *Classifier {
	if rules == nil {
		rules = DefaultProfileRules()
	}
	return &Classifier{profileRules: rules}
}

// LabelOverride lets a platform strategy resolve labels from its own
// markup conventions before the generic fallback chain runs. Returning ""
// defers to the chain.
type LabelOverride func(el *dom.Node) string

// Classify inspects one candidate element and builds its Field description.
// It returns nil for elements that are not user-facing inputs (hidden,
// submit, button) or are styled invisible.
func (c *Classifier) Classify(el *dom.Node, index int) *Field {
	return c.ClassifyWith(el, index, nil)
}

// ClassifyWith is Classify with a platform label override layered before
// the generic label fallback chain.
func (c *Classifier) ClassifyWith(el *dom.Node, index int, override LabelOverride) *Field {
	if el == nil || !el.IsElement() {
		return nil
	}
	tag := el.Tag()
	if tag != "input" && tag != "select" && tag != "textarea" {
		return nil
	}

	nativeType := strings.ToLower(el.Attr("type"))
	if tag == "input" && rejectedTypes[nativeType] {
		return nil
	}
	if el.HasAttr("hidden") || el.Attr("aria-hidden") == "true" {
		return nil
	}
	if style := el.Attr("style"); style != "" {
		for _, pat := range hiddenStylePatterns {
			if pat.MatchString(style) {
				return nil
			}
		}
	}

	f := &Field{
		Type:        c.fieldType(el, tag, nativeType),
		Placeholder: el.Attr("placeholder"),
		Selector:    el.StableSelector(),
	}
	if override != nil {
		f.Label = strings.TrimSpace(override(el))
	}
	if f.Label == "" {
		f.Label = extractLabel(el)
	}
	f.Required = isRequired(el, f.Label)
	f.ID = fieldID(el, f.Type, index)
	f.Options = extractOptions(el, f.Type)
	f.ValidationRules = validationRules(el, f)
	f.MappedProfileField = c.mapProfile(f.Label + " " + f.Placeholder)
	return f
}

// fieldType resolves the logical type, with a structural override: anything
// presenting as a combobox/typeahead behaves as a select regardless of its
// native type.
func (c *Classifier) fieldType(el *dom.Node, tag, nativeType string) FieldType {
	if isCombobox(el) {
		return FieldSelect
	}
	switch tag {
	case "select":
		return FieldSelect
	case "textarea":
		return FieldTextarea
	}
	if t, ok := nativeTypes[nativeType]; ok {
		return t
	}
	return FieldText
}

func isCombobox(el *dom.Node) bool {
	if el.Attr("role") == "combobox" {
		return true
	}
	class := strings.ToLower(el.Attr("class"))
	for _, marker := range []string{"combobox", "typeahead", "autocomplete", "select2", "chosen"} {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return el.HasAttr("list") // datalist-backed input
}

// extractLabel walks the ordered fallback chain; first hit wins.
func extractLabel(el *dom.Node) string {
	doc := el.Document()

	// 1. Explicit association by id.
	if id := el.Attr("id"); id != "" {
		if lbl := doc.Query("label[for=" + id + "]"); lbl != nil {
			if t := lbl.Text(); t != "" {
				return t
			}
		}
	}

	// 2. Nearest ancestor label-like container.
	if anc := el.Closest("label"); anc != nil {
		if t := labelTextWithoutControl(anc, el); t != "" {
			return t
		}
	}

	// 3. Text immediately preceding the element among its siblings.
	if t := precedingText(el); t != "" {
		return t
	}

	// 4. Accessible name.
	if t := strings.TrimSpace(el.Attr("aria-label")); t != "" {
		return t
	}

	// 5. Placeholder.
	if t := strings.TrimSpace(el.Attr("placeholder")); t != "" {
		return t
	}

	// 6. Humanized name attribute.
	if name := el.Attr("name"); name != "" {
		return humanize(name)
	}

	return UnknownLabel
}

// labelTextWithoutControl returns the label's text minus whatever text the
// control itself contributes (relevant for selects nested in labels).
func labelTextWithoutControl(label, control *dom.Node) string {
	full := label.Text()
	inner := control.Text()
	if inner != "" {
		full = strings.Replace(full, inner, "", 1)
	}
	return strings.TrimSpace(full)
}

// precedingText scans backwards through siblings for the closest non-empty
// text, stopping at another input control.
func precedingText(el *dom.Node) string {
	for _, sib := range el.PrevSiblings() {
		switch {
		case sib.IsText():
			if t := strings.TrimSpace(sib.Text()); t != "" {
				return t
			}
		case sib.IsElement():
			switch sib.Tag() {
			case "input", "select", "textarea", "br":
				return ""
			default:
				if t := sib.Text(); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

var requiredMarker = regexp.MustCompile(`(?i)(\*|\brequired\b)`)

func isRequired(el *dom.Node, label string) bool {
	if el.HasAttr("required") {
		return true
	}
	if el.Attr("aria-required") == "true" {
		return true
	}
	if strings.Contains(strings.ToLower(el.Attr("class")), "required") {
		return true
	}
	return requiredMarker.MatchString(label)
}

// extractOptions collects the choice list for selects and radio groups.
// Radio groups use sibling inputs sharing the name attribute; each option
// label falls back to the raw value.
func extractOptions(el *dom.Node, t FieldType) []string {
	switch t {
	case FieldSelect:
		var opts []string
		for _, o := range el.QueryAll("option") {
			txt := o.Text()
			if txt == "" {
				txt = o.Attr("value")
			}
			if txt != "" {
				opts = append(opts, txt)
			}
		}
		return opts
	case FieldRadio:
		name := el.Attr("name")
		if name == "" {
			return nil
		}
		var opts []string
		for _, r := range el.Document().QueryAll("input[type=radio][name=" + name + "]") {
			opts = append(opts, radioLabel(r))
		}
		return opts
	}
	return nil
}

func radioLabel(r *dom.Node) string {
	if id := r.Attr("id"); id != "" {
		if lbl := r.Document().Query("label[for=" + id + "]"); lbl != nil {
			if t := lbl.Text(); t != "" {
				return t
			}
		}
	}
	if anc := r.Closest("label"); anc != nil {
		if t := labelTextWithoutControl(anc, r); t != "" {
			return t
		}
	}
	return r.Attr("value")
}

func validationRules(el *dom.Node, f *Field) []ValidationRule {
	var rules []ValidationRule
	if f.Required {
		rules = append(rules, ValidationRule{
			Kind: "required", Message: f.Label + " is required",
		})
	}
	switch f.Type {
	case FieldEmail:
		rules = append(rules, ValidationRule{Kind: "email", Message: "Enter a valid email address"})
	case FieldPhone:
		rules = append(rules, ValidationRule{Kind: "phone", Message: "Enter a valid phone number"})
	case FieldURL:
		rules = append(rules, ValidationRule{Kind: "url", Message: "Enter a valid URL"})
	}
	if v := el.Attr("maxlength"); v != "" {
		rules = append(rules, ValidationRule{Kind: "maxlength", Param: v, Message: "Too long"})
	}
	if v := el.Attr("pattern"); v != "" {
		rules = append(rules, ValidationRule{Kind: "pattern", Param: v, Message: "Invalid format"})
	}
	if v := el.Attr("min"); v != "" {
		rules = append(rules, ValidationRule{Kind: "min", Param: v, Message: "Value too small"})
	}
	if v := el.Attr("max"); v != "" {
		rules = append(rules, ValidationRule{Kind: "max", Param: v, Message: "Value too large"})
	}
	return rules
}

// fieldID derives a stable id: element id, then name, then type+position.
func fieldID(el *dom.Node, t FieldType, index int) string {
	if id := el.Attr("id"); id != "" {
		return slugify(id)
	}
	if name := el.Attr("name"); name != "" {
		return fmt.Sprintf("%s-%d", slugify(name), index)
	}
	return fmt.Sprintf("%s-field-%d", t, index)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9_-]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// humanize turns attribute names into readable labels:
// "firstName"/"first_name" → "First Name".
func humanize(name string) string {
	s := camelBoundary.ReplaceAllString(name, "$1 $2")
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ", "[", " ", "]", " ").Replace(s)
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
