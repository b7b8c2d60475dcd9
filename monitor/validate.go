package monitor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/dom"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s()+.-]{7,}$`)
	urlPattern   = regexp.MustCompile(`(?i)^(https?://)?[a-z0-9][a-z0-9.-]*\.[a-z]{2,}(/\S*)?$`)
)

// fieldValue reads the current value of a tracked field from its node.
func fieldValue(f detect.Field, n *dom.Node) string {
	if n == nil {
		return ""
	}
	switch f.Type {
	case detect.FieldCheckbox:
		if n.HasAttr("checked") {
			return "true"
		}
		return ""
	case detect.FieldRadio:
		name := n.Attr("name")
		if name == "" {
			if n.HasAttr("checked") {
				return n.Attr("value")
			}
			return ""
		}
		for _, r := range n.Document().QueryAll("input[type=radio][name=" + name + "]") {
			if r.HasAttr("checked") {
				return r.Attr("value")
			}
		}
		return ""
	case detect.FieldSelect:
		// The live adapter mirrors the picked option onto the select's own
		// value attribute; static documents mark the option instead.
		if v := n.Attr("value"); v != "" {
			return v
		}
		if n.Tag() == "select" {
			if opt := n.Query("option[selected]"); opt != nil {
				v := opt.Attr("value")
				if v == "" {
					v = opt.Text()
				}
				return v
			}
			return ""
		}
		return n.Attr("value")
	case detect.FieldTextarea:
		if n.Tag() == "textarea" {
			return strings.TrimSpace(n.Text())
		}
		return n.Attr("value")
	default:
		return strings.TrimSpace(n.Attr("value"))
	}
}

// validateField checks one field's value against its rules. Violations on
// required fields are errors; format problems on optional values degrade
// to warnings so they never block an otherwise complete form.
func validateField(f detect.Field, value string) (errs, warns []string) {
	empty := strings.TrimSpace(value) == ""
	if f.Required && empty {
		errs = append(errs, f.Label+" is required")
		return errs, warns
	}
	if empty {
		return nil, nil
	}

	report := func(msg string) {
		if f.Required {
			errs = append(errs, msg)
		} else {
			warns = append(warns, msg)
		}
	}

	for _, rule := range f.ValidationRules {
		switch rule.Kind {
		case "email":
			if !emailPattern.MatchString(value) {
				report(rule.Message)
			}
		case "phone":
			if !phonePattern.MatchString(value) {
				report(rule.Message)
			}
		case "url":
			if !urlPattern.MatchString(value) {
				report(rule.Message)
			}
		case "pattern":
			re, err := regexp.Compile(rule.Param)
			if err == nil && !re.MatchString(value) {
				report(rule.Message)
			}
		case "maxlength":
			if max, err := strconv.Atoi(rule.Param); err == nil && len(value) > max {
				report(rule.Message)
			}
		case "min":
			if min, err := strconv.ParseFloat(rule.Param, 64); err == nil {
				if v, err := strconv.ParseFloat(value, 64); err == nil && v < min {
					report(rule.Message)
				}
			}
		case "max":
			if max, err := strconv.ParseFloat(rule.Param, 64); err == nil {
				if v, err := strconv.ParseFloat(value, 64); err == nil && v > max {
					report(rule.Message)
				}
			}
		}
	}
	return errs, warns
}

// computeValidation derives a fresh ValidationState from current field
// values. Invariant: IsValid ⇔ no errors and every required field is
// completed.
func computeValidation(formID string, fields map[string]trackedField) ValidationState {
	st := ValidationState{
		FormID:   formID,
		Errors:   make(map[string][]string),
		Warnings: make(map[string][]string),
	}

	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tf := fields[id]
		value := fieldValue(tf.Field, tf.Node)
		completed := strings.TrimSpace(value) != ""

		if tf.Field.Required {
			st.RequiredFields = append(st.RequiredFields, id)
		}
		if completed {
			st.CompletedFields = append(st.CompletedFields, id)
		}

		errs, warns := validateField(tf.Field, value)
		if len(errs) > 0 {
			st.Errors[id] = errs
		}
		if len(warns) > 0 {
			st.Warnings[id] = warns
		}
	}

	st.IsValid = len(st.Errors) == 0 && subset(st.RequiredFields, st.CompletedFields)
	st.LastValidated = time.Now()
	if len(st.Errors) == 0 {
		st.Errors = nil
	}
	if len(st.Warnings) == 0 {
		st.Warnings = nil
	}
	return st
}

func subset(want, have []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
