package monitor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/dom"
)

// monitorAttr marks a registered container. Mutation records for data-fs-
// attributes are the monitor's own bookkeeping and are never acted on.
const monitorAttr = "data-fs-monitor"

// trackedField is a classified field plus the live node it reads from.
type trackedField struct {
	Field detect.Field
	Node  *dom.Node
}

// monitoredForm is the registry entry for one form. Guarded by Monitor.mu.
type monitoredForm struct {
	id          string
	container   *dom.Node
	fields      map[string]trackedField
	order       []string // field ids in discovery order
	validation  ValidationState
	lastChanged time.Time
	changeCount int
	isMultiStep bool
	currentStep int
	totalSteps  int
}

// fieldFor resolves a mutated node to the tracked field it belongs to.
// Radio inputs sharing a name all resolve to the group's field.
func (f *monitoredForm) fieldFor(target *dom.Node) (string, bool) {
	for _, id := range f.order {
		tf := f.fields[id]
		if tf.Node.Same(target) || tf.Node.Contains(target) {
			return id, true
		}
	}
	if strings.ToLower(target.Attr("type")) == "radio" {
		if name := target.Attr("name"); name != "" {
			for _, id := range f.order {
				tf := f.fields[id]
				if tf.Field.Type == detect.FieldRadio && tf.Node.Attr("name") == name {
					return id, true
				}
			}
		}
	}
	return "", false
}

// MonitoredForm is a point-in-time snapshot of one registry entry.
type MonitoredForm struct {
	ID          string          `json:"id"`
	FieldIDs    []string        `json:"field_ids"`
	Validation  ValidationState `json:"validation"`
	LastChanged time.Time       `json:"last_changed"`
	ChangeCount int             `json:"change_count"`
	IsMultiStep bool            `json:"is_multi_step"`
	CurrentStep int             `json:"current_step,omitempty"`
	TotalSteps  int             `json:"total_steps,omitempty"`
}

// Stats summarizes the monitor for health endpoints.
type Stats struct {
	IsMonitoring   bool `json:"is_monitoring"`
	FormsCount     int  `json:"forms_count"`
	TotalFields    int  `json:"total_fields"`
	ValidForms     int  `json:"valid_forms"`
	MultiStepForms int  `json:"multi_step_forms"`
}

// Config tunes the monitor. The zero value works.
type Config struct {
	// FieldDebounce coalesces rapid value changes per field before
	// revalidating. Default: 300ms.
	FieldDebounce time.Duration `yaml:"field_debounce"`
	// RescanDebounce coalesces structural churn before re-classifying a
	// container. Default: 500ms.
	RescanDebounce time.Duration `yaml:"rescan_debounce"`

	Classifier *detect.Classifier `yaml:"-"`
	Logger     *slog.Logger       `yaml:"-"`
	// NewID generates event ids; defaults to prefixed UUIDv7.
	NewID func() string `yaml:"-"`
}

func (c *Config) defaults() {
	if c.FieldDebounce <= 0 {
		c.FieldDebounce = 300 * time.Millisecond
	}
	if c.RescanDebounce <= 0 {
		c.RescanDebounce = 500 * time.Millisecond
	}
	if c.Classifier == nil {
		c.Classifier = detect.NewClassifier(nil)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = func() string {
			return "evt_" + uuid.Must(uuid.NewV7()).String()
		}
	}
}

// Monitor watches registered forms on one document and emits ChangeEvents.
// All mutation handling funnels through a single document-wide
// subscription; per-form work is debounced with cancel-and-replace timers
// keyed on (form, field, kind).
type Monitor struct {
	cfg Config
	doc *dom.Document

	mu        sync.Mutex
	forms     map[string]*monitoredForm
	listeners map[int]func(ChangeEvent)
	nextLst   int
	stopped   bool

	fieldDeb  *keyedDebouncer
	rescanDeb *keyedDebouncer
	sub       *dom.Subscription
}

// New creates a monitor over doc and starts observing mutations. Nothing
// is tracked until RegisterForm is called.
func New(doc *dom.Document, cfg Config) *Monitor {
	cfg.defaults()
	m := &Monitor{
		cfg:       cfg,
		doc:       doc,
		forms:     make(map[string]*monitoredForm),
		listeners: make(map[int]func(ChangeEvent)),
		fieldDeb:  newKeyedDebouncer(cfg.FieldDebounce),
		rescanDeb: newKeyedDebouncer(cfg.RescanDebounce),
	}
	if doc != nil {
		m.sub = doc.Subscribe(nil, m.onRecord)
	}
	return m
}

// RegisterForm starts tracking a detected form. It is idempotent per
// container: registering the same container twice returns the original
// monitor id without side effects. Emits form_added and computes the
// initial validation state synchronously.
func (m *Monitor) RegisterForm(form detect.DetectedForm) (string, error) {
	if form.Container == nil {
		return "", fmt.Errorf("monitor: register: form has no container")
	}
	if existing := form.Container.Attr(monitorAttr); existing != "" {
		m.mu.Lock()
		_, ok := m.forms[existing]
		m.mu.Unlock()
		if ok {
			return existing, nil
		}
	}

	id := form.FormID
	if id == "" {
		id = m.cfg.NewID()
	}

	fields, order := m.scanFields(form.Container)
	f := &monitoredForm{
		id:          id,
		container:   form.Container,
		fields:      fields,
		order:       order,
		isMultiStep: form.IsMultiStep,
		currentStep: form.CurrentStep,
		totalSteps:  form.TotalSteps,
	}
	f.validation = computeValidation(id, fields)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return "", fmt.Errorf("monitor: register: monitor is stopped")
	}
	m.forms[id] = f
	ls := m.listenersLocked()
	m.mu.Unlock()

	form.Container.SetAttr(monitorAttr, id)
	m.dispatch(ls, m.event(EventFormAdded, id, "", "", ""))
	m.cfg.Logger.Debug("form registered",
		"form_id", id, "fields", len(order), "multi_step", f.isMultiStep)
	return id, nil
}

// RegisterResult registers every form in a detection result and returns
// the monitor ids in order. Forms that fail to register are skipped.
func (m *Monitor) RegisterResult(res detect.Result) []string {
	ids := make([]string, 0, len(res.Forms))
	for _, form := range res.Forms {
		id, err := m.RegisterForm(form)
		if err != nil {
			m.cfg.Logger.Warn("form registration skipped", "form_id", form.FormID, "err", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// UnregisterForm stops tracking a form without emitting form_removed.
func (m *Monitor) UnregisterForm(id string) bool {
	m.mu.Lock()
	f, ok := m.forms[id]
	if ok {
		delete(m.forms, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.fieldDeb.cancelPrefix(id + "|")
	m.rescanDeb.cancelPrefix(id + "|")
	f.container.RemoveAttr(monitorAttr)
	return true
}

// Subscribe registers a listener for all change events. The returned
// function cancels the subscription. Listener panics are recovered and
// logged; a broken listener never takes down the monitor.
func (m *Monitor) Subscribe(fn func(ChangeEvent)) (cancel func()) {
	m.mu.Lock()
	id := m.nextLst
	m.nextLst++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Form returns a snapshot of one monitored form.
func (m *Monitor) Form(id string) (MonitoredForm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return MonitoredForm{}, false
	}
	return f.snapshot(), true
}

// Forms returns snapshots of all monitored forms.
func (m *Monitor) Forms() []MonitoredForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MonitoredForm, 0, len(m.forms))
	for _, f := range m.forms {
		out = append(out, f.snapshot())
	}
	return out
}

func (f *monitoredForm) snapshot() MonitoredForm {
	ids := make([]string, len(f.order))
	copy(ids, f.order)
	return MonitoredForm{
		ID:          f.id,
		FieldIDs:    ids,
		Validation:  f.validation,
		LastChanged: f.lastChanged,
		ChangeCount: f.changeCount,
		IsMultiStep: f.isMultiStep,
		CurrentStep: f.currentStep,
		TotalSteps:  f.totalSteps,
	}
}

// Validation returns the current validation state for a form.
func (m *Monitor) Validation(id string) (ValidationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return ValidationState{}, false
	}
	return f.validation, true
}

// Stats reports registry-wide counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{IsMonitoring: !m.stopped, FormsCount: len(m.forms)}
	for _, f := range m.forms {
		st.TotalFields += len(f.fields)
		if f.validation.IsValid {
			st.ValidForms++
		}
		if f.isMultiStep {
			st.MultiStepForms++
		}
	}
	return st
}

// NotifyNavigation forces an immediate re-scan of every monitored form,
// bypassing the rescan debounce. Call it after SPA navigations or step
// transitions signalled out of band.
func (m *Monitor) NotifyNavigation() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.forms))
	for id := range m.forms {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		id := id
		m.rescanDeb.flush(id+"|rescan", func() { m.rescan(id) })
	}
}

// Stop shuts the monitor down synchronously: the document subscription is
// closed, all pending timers are cancelled, and no event is delivered
// after Stop returns. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sub := m.sub
	m.sub = nil
	m.forms = make(map[string]*monitoredForm)
	m.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	m.fieldDeb.stop()
	m.rescanDeb.stop()
}

// scanFields classifies the container's fields and indexes them by id.
func (m *Monitor) scanFields(container *dom.Node) (map[string]trackedField, []string) {
	pairs := detect.ClassifyFields(m.cfg.Classifier, container)
	fields := make(map[string]trackedField, len(pairs))
	order := make([]string, 0, len(pairs))
	for _, p := range pairs {
		fields[p.Field.ID] = trackedField{Field: p.Field, Node: p.Node}
		order = append(order, p.Field.ID)
	}
	return fields, order
}

// Attribute groups that drive the record router.
var (
	valueAttrs      = map[string]bool{"value": true, "checked": true, "selected": true}
	classifyAttrs   = map[string]bool{"required": true, "disabled": true, "aria-required": true}
	structuralAttrs = map[string]bool{"class": true, "style": true, "hidden": true, "aria-current": true, "aria-hidden": true}
)

// onRecord routes one mutation record. It runs synchronously on the
// mutating call, so it only classifies the record and arms timers; all
// heavy work happens in debounced callbacks.
func (m *Monitor) onRecord(rec dom.Record) {
	if strings.HasPrefix(rec.Name, "data-fs-") {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var removed []string
	type pendingChange struct {
		formID, fieldID    string
		oldValue, newValue string
		reclassify         bool
	}
	var changes []pendingChange
	var rescans []string

	for id, f := range m.forms {
		switch rec.Op {
		case dom.OpRemove:
			if rec.Target.Same(f.container) || rec.Target.Contains(f.container) {
				removed = append(removed, id)
			} else if parentIn(f.container, rec) {
				rescans = append(rescans, id)
			}
		case dom.OpInsert:
			if f.container.Contains(rec.Target) {
				rescans = append(rescans, id)
			}
		case dom.OpAttr, dom.OpAttrDel:
			if !f.container.Contains(rec.Target) && !f.container.Same(rec.Target) {
				continue
			}
			fieldID, isField := f.fieldFor(rec.Target)
			switch {
			case isField && valueAttrs[rec.Name]:
				changes = append(changes, pendingChange{
					formID: id, fieldID: fieldID,
					oldValue: rec.OldValue, newValue: rec.Value,
				})
			case isField && classifyAttrs[rec.Name]:
				changes = append(changes, pendingChange{
					formID: id, fieldID: fieldID,
					oldValue: rec.OldValue, newValue: rec.Value,
					reclassify: true,
				})
			case structuralAttrs[rec.Name]:
				rescans = append(rescans, id)
			}
		case dom.OpText:
			if fieldID, ok := f.fieldFor(rec.Target); ok {
				tf := f.fields[fieldID]
				if tf.Field.Type == detect.FieldTextarea {
					changes = append(changes, pendingChange{
						formID: id, fieldID: fieldID,
						oldValue: rec.OldValue, newValue: rec.Value,
					})
				}
			}
		}
	}
	m.mu.Unlock()

	for _, id := range removed {
		m.removeForm(id)
	}
	for _, c := range changes {
		c := c
		key := c.formID + "|" + c.fieldID + "|change"
		m.fieldDeb.schedule(key, func() {
			m.fireFieldChange(c.formID, c.fieldID, c.oldValue, c.newValue, c.reclassify)
		})
	}
	for _, id := range rescans {
		id := id
		m.rescanDeb.schedule(id+"|rescan", func() { m.rescan(id) })
	}
}

// parentIn reports whether a removal happened inside the container: the
// detached target is no longer under it, so the former parent decides.
func parentIn(container *dom.Node, rec dom.Record) bool {
	if rec.Parent == nil {
		return false
	}
	return container.Contains(rec.Parent) || container.Same(rec.Parent)
}

// fireFieldChange is the debounced tail of a field value change: update
// bookkeeping, recompute validation, emit field_changed and, only when the
// structural validation state actually differs, validation_changed.
func (m *Monitor) fireFieldChange(formID, fieldID, oldValue, newValue string, reclassify bool) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	f, ok := m.forms[formID]
	if !ok {
		m.mu.Unlock()
		return
	}
	tf, ok := f.fields[fieldID]
	if !ok {
		m.mu.Unlock()
		return
	}

	if reclassify {
		// required/disabled flipped: refresh the field's classification but
		// keep its identity stable.
		if nf := m.cfg.Classifier.Classify(tf.Node, 0); nf != nil {
			nf.ID = tf.Field.ID
			tf.Field = *nf
			f.fields[fieldID] = tf
		}
	}

	f.lastChanged = time.Now()
	f.changeCount++
	prev := f.validation
	f.validation = computeValidation(formID, f.fields)

	events := []ChangeEvent{m.event(EventFieldChanged, formID, fieldID, oldValue, newValue)}
	if !f.validation.Equal(&prev) {
		events = append(events, m.event(EventValidationChanged, formID, "", "", ""))
	}
	ls := m.listenersLocked()
	m.mu.Unlock()
	m.dispatch(ls, events...)
}

// rescan is the debounced tail of structural churn: re-classify the
// container, diff fields by id, pick up step transitions, revalidate.
func (m *Monitor) rescan(formID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	f, ok := m.forms[formID]
	if !ok {
		m.mu.Unlock()
		return
	}

	root := m.doc.Root()
	if root == nil || (!root.Contains(f.container) && !root.Same(f.container)) {
		m.mu.Unlock()
		m.removeForm(formID)
		return
	}

	newFields, newOrder := m.scanFields(f.container)

	var events []ChangeEvent
	for _, id := range f.order {
		if _, still := newFields[id]; !still {
			events = append(events, m.event(EventFieldRemoved, formID, id, "", ""))
		}
	}
	for _, id := range newOrder {
		if _, was := f.fields[id]; !was {
			events = append(events, m.event(EventFieldAdded, formID, id, "", ""))
		}
	}
	structural := len(events) > 0

	f.fields = newFields
	f.order = newOrder

	if multi, cur, tot := detect.DetectSteps(f.container); multi {
		if cur != f.currentStep {
			m.cfg.Logger.Debug("step transition",
				"form_id", formID, "from", f.currentStep, "to", cur)
		}
		f.isMultiStep = true
		f.currentStep = cur
		if tot > 0 {
			f.totalSteps = tot
		}
	}

	prev := f.validation
	f.validation = computeValidation(formID, f.fields)
	if !f.validation.Equal(&prev) {
		events = append(events, m.event(EventValidationChanged, formID, "", "", ""))
	}
	if structural {
		f.lastChanged = time.Now()
		f.changeCount++
	}
	ls := m.listenersLocked()
	m.mu.Unlock()
	m.dispatch(ls, events...)
}

// removeForm drops a form from the registry and emits form_removed.
func (m *Monitor) removeForm(id string) {
	m.mu.Lock()
	_, ok := m.forms[id]
	if ok {
		delete(m.forms, id)
	}
	ls := m.listenersLocked()
	m.mu.Unlock()
	if !ok {
		return
	}
	m.fieldDeb.cancelPrefix(id + "|")
	m.rescanDeb.cancelPrefix(id + "|")
	m.dispatch(ls, m.event(EventFormRemoved, id, "", "", ""))
	m.cfg.Logger.Debug("form removed", "form_id", id)
}

func (m *Monitor) listenersLocked() []func(ChangeEvent) {
	ls := make([]func(ChangeEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		ls = append(ls, fn)
	}
	return ls
}

func (m *Monitor) event(t EventType, formID, fieldID, oldValue, newValue string) ChangeEvent {
	return ChangeEvent{
		ID:       m.cfg.NewID(),
		Type:     t,
		FormID:   formID,
		FieldID:  fieldID,
		OldValue: oldValue,
		NewValue: newValue,
		At:       time.Now(),
	}
}

// dispatch delivers events to a listener snapshot outside any lock.
func (m *Monitor) dispatch(ls []func(ChangeEvent), events ...ChangeEvent) {
	for _, ev := range events {
		for _, fn := range ls {
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.cfg.Logger.Error("event listener panicked",
							"event", string(ev.Type), "form_id", ev.FormID, "panic", r)
					}
				}()
				fn(ev)
			}()
		}
	}
}
