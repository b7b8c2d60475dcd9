// Package detect classifies page structure into job-application forms.
// It discovers candidate containers, classifies their input fields, maps
// fields to profile attributes, scores detection confidence, and extracts
// surrounding job context. All heuristics are driven by immutable
// configuration (keyword tables, weights, selector chains) so alternate
// tables can be injected in tests.
package detect

import (
	"fmt"
	"time"

	"github.com/hireloop/formsense/dom"
)

// nowFn is swapped in tests that need fixed timestamps.
var nowFn = time.Now

// FieldType is the logical type of an input control.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldFile     FieldType = "file"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldURL      FieldType = "url"
)

// UnknownLabel is the sentinel label when every extraction fallback missed.
// Label-quality scoring penalizes it.
const UnknownLabel = "Unknown Field"

// ValidationRule is one declarative constraint on a field value.
type ValidationRule struct {
	Kind    string `json:"kind"` // required, email, phone, url, pattern, maxlength, min, max
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Field is one classified input control. Immutable once built; re-scans
// produce new Field values rather than mutating old ones.
type Field struct {
	ID                 string           `json:"id"`
	Type               FieldType        `json:"type"`
	Label              string           `json:"label"`
	Selector           string           `json:"selector"`
	Required           bool             `json:"required"`
	Placeholder        string           `json:"placeholder,omitempty"`
	Options            []string         `json:"options,omitempty"`
	MappedProfileField string           `json:"mapped_profile_field,omitempty"`
	ValidationRules    []ValidationRule `json:"validation_rules,omitempty"`
}

// Platform identifies which detection strategy produced a form.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformGeneric    Platform = "generic"
)

// AllPlatforms is the fixed identification precedence: named platforms
// first, generic last.
func AllPlatforms() []Platform {
	return []Platform{PlatformGreenhouse, PlatformLever, PlatformWorkday, PlatformGeneric}
}

// JobContext is lightweight posting metadata extracted around a form.
type JobContext struct {
	Title        string `json:"title,omitempty"`
	Company      string `json:"company,omitempty"`
	Description  string `json:"description,omitempty"` // Markdown
	Requirements string `json:"requirements,omitempty"`
	Location     string `json:"location,omitempty"`
	JobType      string `json:"job_type,omitempty"`
}

// DetectedForm is one detected application form. Created per scan, never
// mutated afterwards.
type DetectedForm struct {
	Platform          Platform    `json:"platform"`
	FormID            string      `json:"form_id"`
	URL               string      `json:"url"`
	Fields            []Field     `json:"fields"`
	JobContext        *JobContext `json:"job_context,omitempty"`
	Confidence        float64     `json:"confidence"`
	SupportedFeatures []string    `json:"supported_features,omitempty"`
	DetectedAt        time.Time   `json:"detected_at"`
	Fingerprint       string      `json:"fingerprint,omitempty"`
	IsMultiStep       bool        `json:"is_multi_step"`
	CurrentStep       int         `json:"current_step,omitempty"`
	TotalSteps        int         `json:"total_steps,omitempty"`

	// Container is the root node of the form in the source tree. Not
	// serialized; the monitor uses it to scope its subscription.
	Container *dom.Node `json:"-"`
}

// Error stages, mirroring the failure taxonomy: container analysis errors
// and strategy errors are non-fatal, timeout marks truncated fallback,
// fatal is the only stage that flips Result.Success to false.
const (
	StageContainer = "container"
	StageStrategy  = "strategy"
	StageTimeout   = "timeout"
	StageFatal     = "fatal"
)

// Error is a non-throwing detection error: errors are data, returned next
// to whatever forms succeeded.
type Error struct {
	Stage    string   `json:"stage"`
	Platform Platform `json:"platform,omitempty"`
	FormID   string   `json:"form_id,omitempty"`
	Err      error    `json:"-"`
	Message  string   `json:"message"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detect: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("detect: %s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(stage string, platform Platform, err error) Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Error{Stage: stage, Platform: platform, Err: err, Message: msg}
}

// Result is what a detection scan returns. Success is false only when the
// scan failed before any container analysis began.
type Result struct {
	Success  bool          `json:"success"`
	Platform Platform      `json:"platform"`
	Forms    []DetectedForm `json:"forms"`
	Errors   []Error       `json:"errors,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}
