package monitor

import (
	"testing"

	"github.com/hireloop/formsense/detect"
)

func TestValidateFieldRequired(t *testing.T) {
	f := detect.Field{ID: "email", Label: "Email", Type: detect.FieldEmail, Required: true,
		ValidationRules: []detect.ValidationRule{{Kind: "email", Message: "invalid email"}}}

	errs, warns := validateField(f, "")
	if len(errs) != 1 || len(warns) != 0 {
		t.Errorf("empty required: errs=%v warns=%v, want one error", errs, warns)
	}

	errs, _ = validateField(f, "ada@example.com")
	if len(errs) != 0 {
		t.Errorf("valid email rejected: %v", errs)
	}

	errs, _ = validateField(f, "nope")
	if len(errs) != 1 {
		t.Errorf("malformed required email: errs=%v, want one error", errs)
	}
}

func TestValidateFieldOptionalDegradesToWarning(t *testing.T) {
	f := detect.Field{ID: "site", Label: "Website", Type: detect.FieldURL,
		ValidationRules: []detect.ValidationRule{{Kind: "url", Message: "invalid url"}}}

	errs, warns := validateField(f, "")
	if len(errs)+len(warns) != 0 {
		t.Errorf("empty optional should pass: errs=%v warns=%v", errs, warns)
	}

	errs, warns = validateField(f, "not a url")
	if len(errs) != 0 || len(warns) != 1 {
		t.Errorf("malformed optional: errs=%v warns=%v, want one warning", errs, warns)
	}
}

func TestValidateFieldNumericBounds(t *testing.T) {
	f := detect.Field{ID: "years", Label: "Years", Type: detect.FieldNumber,
		ValidationRules: []detect.ValidationRule{
			{Kind: "min", Param: "0", Message: "too low"},
			{Kind: "max", Param: "50", Message: "too high"},
		}}

	if errs, warns := validateField(f, "7"); len(errs)+len(warns) != 0 {
		t.Errorf("in-range value flagged: errs=%v warns=%v", errs, warns)
	}
	if _, warns := validateField(f, "99"); len(warns) != 1 {
		t.Errorf("out-of-range optional: warns=%v, want one", warns)
	}
}

func TestComputeValidationInvariant(t *testing.T) {
	fields := map[string]trackedField{
		"a": {Field: detect.Field{ID: "a", Label: "A", Type: detect.FieldText, Required: true}},
		"b": {Field: detect.Field{ID: "b", Label: "B", Type: detect.FieldText}},
	}

	st := computeValidation("f", fields)
	if st.IsValid {
		t.Error("required field with no node should not validate")
	}
	if len(st.RequiredFields) != 1 || st.RequiredFields[0] != "a" {
		t.Errorf("RequiredFields = %v, want [a]", st.RequiredFields)
	}
	if len(st.CompletedFields) != 0 {
		t.Errorf("CompletedFields = %v, want empty", st.CompletedFields)
	}
}

func TestValidationStateEqual(t *testing.T) {
	a := ValidationState{IsValid: true, CompletedFields: []string{"x"}}
	b := ValidationState{IsValid: true, CompletedFields: []string{"x"}}
	if !a.Equal(&b) {
		t.Error("identical states not equal")
	}

	b.Errors = map[string][]string{"x": {"bad"}}
	if a.Equal(&b) {
		t.Error("states with differing errors reported equal")
	}

	// LastValidated is bookkeeping only.
	c := a
	c.LastValidated = c.LastValidated.Add(1)
	if !a.Equal(&c) {
		t.Error("LastValidated should not affect equality")
	}
}
