package detect

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hireloop/formsense/dom"
)

// Strategy is one platform-specific detection heuristic. The four
// implementations share this contract and the engine stays agnostic of
// which one produced a form.
type Strategy interface {
	Platform() Platform
	// Applies reports whether the page looks like this strategy's platform.
	Applies(doc *dom.Document) bool
	// Detect discovers and assembles forms. Per-container failures are
	// returned as errors next to the forms that succeeded.
	Detect(doc *dom.Document) ([]DetectedForm, []Error)
}

// StrategyConfig carries the shared collaborators into a strategy.
type StrategyConfig struct {
	Classifier *Classifier
	Scorer     *Scorer
	Logger     *slog.Logger
	// NewID generates form ids; defaults to prefixed UUIDv7.
	NewID func() string
	// SkipJobContext disables job context extraction.
	SkipJobContext bool
}

func (c *StrategyConfig) defaults() {
	if c.Classifier == nil {
		c.Classifier = NewClassifier(nil)
	}
	if c.Scorer == nil {
		c.Scorer = NewScorer(DefaultWeights(), DefaultKeywords())
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = func() string {
			return "form_" + uuid.Must(uuid.NewV7()).String()
		}
	}
}

// NewStrategy is the factory keyed on platform.
func NewStrategy(p Platform, cfg StrategyConfig) Strategy {
	cfg.defaults()
	base := strategyBase{platform: p, cfg: cfg}
	switch p {
	case PlatformGreenhouse:
		base.labelOverride = greenhouseLabel
		return &greenhouseStrategy{base}
	case PlatformLever:
		base.labelOverride = leverLabel
		return &leverStrategy{base}
	case PlatformWorkday:
		base.labelOverride = workdayLabel
		return &workdayStrategy{base}
	default:
		base.platform = PlatformGeneric
		return &genericStrategy{base}
	}
}

// strategyBase holds the discovery/classification machinery every variant
// layers its platform rules on.
type strategyBase struct {
	platform Platform
	cfg      StrategyConfig
	// labelOverride resolves labels from platform markup before the
	// generic chain. May be nil.
	labelOverride LabelOverride
}

func (b *strategyBase) Platform() Platform { return b.platform }

// minFieldsPerForm: containers with fewer classifiable fields are never
// surfaced as forms.
const minFieldsPerForm = 3

// findContainers returns candidate form containers: explicit platform
// selectors first, then any form element or sectioning container with at
// least minInputs input-like descendants. Containers nested inside an
// already-selected candidate are skipped.
func (b *strategyBase) findContainers(doc *dom.Document, explicit []string, minInputs int) []*dom.Node {
	var out []*dom.Node
	add := func(n *dom.Node) {
		for _, prev := range out {
			if prev.Contains(n) || n.Contains(prev) {
				return
			}
		}
		out = append(out, n)
	}

	qualifies := func(n *dom.Node) bool {
		return len(n.QueryAll("input, select, textarea")) >= minInputs
	}

	for _, sel := range explicit {
		for _, n := range doc.QueryAll(sel) {
			add(n)
		}
	}
	for _, n := range doc.QueryAll("form") {
		if qualifies(n) {
			add(n)
		}
	}
	// Sectioning containers: descend past wrappers to the deepest container
	// that still holds enough inputs.
	for _, n := range doc.QueryAll("div, section, main") {
		if !qualifies(n) {
			continue
		}
		deeper := false
		for _, c := range n.QueryAll("div, section, form") {
			if qualifies(c) {
				deeper = true
				break
			}
		}
		if deeper {
			continue
		}
		add(n)
	}
	return out
}

// FieldNode pairs a classified field with the node it was classified from.
type FieldNode struct {
	Field Field
	Node  *dom.Node
}

// classifyFieldNodes classifies every input-like descendant in discovery
// order. Radio groups collapse into a single field anchored on the first
// radio of the group; duplicate ids are de-duplicated positionally.
func classifyFieldNodes(c *Classifier, container *dom.Node, override LabelOverride) []FieldNode {
	var out []FieldNode
	seenIDs := make(map[string]bool)
	seenRadioGroups := make(map[string]bool)

	for i, el := range container.QueryAll("input, select, textarea") {
		if strings.ToLower(el.Attr("type")) == "radio" {
			name := el.Attr("name")
			if name != "" && seenRadioGroups[name] {
				continue
			}
			seenRadioGroups[name] = true
		}
		f := c.ClassifyWith(el, i, override)
		if f == nil {
			continue
		}
		if seenIDs[f.ID] {
			f.ID = fmt.Sprintf("%s-%d", f.ID, i)
		}
		seenIDs[f.ID] = true
		out = append(out, FieldNode{Field: *f, Node: el})
	}
	return out
}

func (b *strategyBase) classifyFields(container *dom.Node) []Field {
	pairs := classifyFieldNodes(b.cfg.Classifier, container, b.labelOverride)
	fields := make([]Field, len(pairs))
	for i, p := range pairs {
		fields[i] = p.Field
	}
	return fields
}

var stepIndicatorSelectors = ".step, .step-indicator, .progress-step, .wizard-step, [data-step], ol.steps li, ul.steps li"

var nextControlWords = []string{"next", "continue"}

// detectSteps looks for multi-step markers: a next/continue control, or at
// least two discrete step indicator elements.
func (b *strategyBase) detectSteps(container *dom.Node) (multi bool, current, total int) {
	indicators := container.QueryAll(stepIndicatorSelectors)
	if len(indicators) >= 2 {
		current = 1
		for i, ind := range indicators {
			if ind.HasClass("active") || ind.HasClass("current") || ind.Attr("aria-current") != "" {
				current = i + 1
				break
			}
		}
		return true, current, len(indicators)
	}
	if hasNextControl(container) {
		return true, 1, 0
	}
	return false, 0, 0
}

func hasNextControl(container *dom.Node) bool {
	for _, btn := range container.QueryAll("button, input[type=submit], input[type=button], a.button") {
		txt := strings.ToLower(btn.Text())
		if txt == "" {
			txt = strings.ToLower(btn.Attr("value"))
		}
		for _, w := range nextControlWords {
			if strings.Contains(txt, w) {
				return true
			}
		}
	}
	return false
}

// buildForm assembles a DetectedForm from a classified container. Errors
// here are per-container and non-fatal.
func (b *strategyBase) buildForm(doc *dom.Document, container *dom.Node, fields []Field, jc *jobContextSelectors) (*DetectedForm, error) {
	if len(fields) < minFieldsPerForm {
		return nil, nil
	}

	page := PageContext{
		URL:             doc.URL(),
		Title:           doc.Title(),
		SurroundingText: surroundingText(doc, container),
	}
	confidence := b.cfg.Scorer.Score(container, fields, b.platform, page)

	form := &DetectedForm{
		Platform:    b.platform,
		FormID:      b.cfg.NewID(),
		URL:         doc.URL(),
		Fields:      fields,
		Confidence:  confidence,
		DetectedAt:  nowFn(),
		Fingerprint: Fingerprint(container),
		Container:   container,
		SupportedFeatures: supportedFeatures(fields),
	}
	form.IsMultiStep, form.CurrentStep, form.TotalSteps = b.detectSteps(container)

	if !b.cfg.SkipJobContext && jc != nil {
		form.JobContext = extractJobContext(doc, *jc)
	}
	return form, nil
}

// analyzeContainer wraps buildForm with panic isolation so one bad
// container cannot abort the scan.
func (b *strategyBase) analyzeContainer(doc *dom.Document, container *dom.Node, jc *jobContextSelectors) (form *DetectedForm, err error) {
	defer func() {
		if r := recover(); r != nil {
			form = nil
			err = fmt.Errorf("container analysis panicked: %v", r)
		}
	}()
	fields := b.classifyFields(container)
	return b.buildForm(doc, container, fields, jc)
}

// detectAll runs container discovery and analysis with the given platform
// specifics. Shared by all four variants.
func (b *strategyBase) detectAll(doc *dom.Document, explicit []string, jc *jobContextSelectors) ([]DetectedForm, []Error) {
	var forms []DetectedForm
	var errs []Error
	for _, container := range b.findContainers(doc, explicit, minFieldsPerForm) {
		form, err := b.analyzeContainer(doc, container, jc)
		if err != nil {
			errs = append(errs, newError(StageContainer, b.platform, err))
			continue
		}
		if form != nil {
			forms = append(forms, *form)
		}
	}
	return forms, errs
}

// surroundingText is body text minus a crude subtraction of the container's
// own text, used for keyword scoring context.
func surroundingText(doc *dom.Document, container *dom.Node) string {
	body := doc.Query("body")
	if body == nil {
		return ""
	}
	full := body.Text()
	inner := container.Text()
	if inner != "" {
		full = strings.Replace(full, inner, "", 1)
	}
	if len(full) > 4000 {
		full = full[:4000]
	}
	return full
}

func supportedFeatures(fields []Field) []string {
	feats := map[string]bool{}
	for _, f := range fields {
		switch f.Type {
		case FieldFile:
			feats["file_upload"] = true
		case FieldSelect, FieldRadio:
			feats["choice_fields"] = true
		}
		if f.MappedProfileField != "" {
			feats["autofill"] = true
		}
	}
	var out []string
	for _, k := range []string{"autofill", "choice_fields", "file_upload"} {
		if feats[k] {
			out = append(out, k)
		}
	}
	return out
}

// ClassifyFields runs the same classification pass the strategies run and
// keeps the node references. The monitor uses it to (re)scan containers.
func ClassifyFields(c *Classifier, container *dom.Node) []FieldNode {
	if c == nil {
		c = NewClassifier(nil)
	}
	return classifyFieldNodes(c, container, nil)
}

// DetectSteps reports multi-step markers on a container: whether it looks
// like a wizard, the current 1-based step, and the total step count (0
// when only a next/continue control gives it away).
func DetectSteps(container *dom.Node) (multi bool, current, total int) {
	b := strategyBase{}
	return b.detectSteps(container)
}

// Fingerprint hashes the container's tag skeleton: structure only, no text
// or attributes, so content churn does not change it but step transitions
// and injected fields do.
func Fingerprint(container *dom.Node) string {
	var sb strings.Builder
	var walk func(n *dom.Node, depth int)
	walk = func(n *dom.Node, depth int) {
		for _, c := range n.Children() {
			fmt.Fprintf(&sb, "%d:%s;", depth, c.Tag())
			walk(c, depth+1)
		}
	}
	walk(container, 0)
	h := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", h[:16])
}
