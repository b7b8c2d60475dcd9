package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/monitor"
)

func sampleResult() *detect.Result {
	return &detect.Result{
		Success:  true,
		Platform: detect.PlatformGreenhouse,
		Forms: []detect.DetectedForm{{
			Platform:   detect.PlatformGreenhouse,
			FormID:     "form_1",
			URL:        "https://boards.greenhouse.io/acme/jobs/1",
			Confidence: 0.91,
			Fields: []detect.Field{
				{ID: "email", Type: detect.FieldEmail, Label: "Email", Required: true},
				{ID: "name", Type: detect.FieldText, Label: "Full Name", Required: true},
			},
			JobContext: &detect.JobContext{Title: "Engineer", Company: "Acme"},
			DetectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}},
	}
}

func TestSaveAndLoadForm(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	f, err := s.Form(ctx, "form_1")
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	if f.Platform != detect.PlatformGreenhouse {
		t.Errorf("platform = %q, want greenhouse", f.Platform)
	}
	if len(f.Fields) != 2 || f.Fields[0].ID != "email" {
		t.Errorf("fields round-trip broken: %+v", f.Fields)
	}
	if f.JobContext == nil || f.JobContext.Company != "Acme" {
		t.Errorf("job context round-trip broken: %+v", f.JobContext)
	}
	if !f.DetectedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("detected_at = %v", f.DetectedAt)
	}
}

func TestSaveResultUpserts(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	res := sampleResult()
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("first save: %v", err)
	}
	res.Forms[0].Confidence = 0.75
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("second save: %v", err)
	}

	forms, err := s.RecentForms(ctx, 10)
	if err != nil {
		t.Fatalf("RecentForms: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("forms = %d, want 1 after upsert", len(forms))
	}
	if forms[0].Confidence != 0.75 {
		t.Errorf("confidence = %v, want updated 0.75", forms[0].Confidence)
	}
}

func TestFormNotFound(t *testing.T) {
	s := OpenMemory(t)
	if _, err := s.Form(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evs := []monitor.ChangeEvent{
		{ID: "e1", Type: monitor.EventFormAdded, FormID: "form_1", At: base},
		{ID: "e2", Type: monitor.EventFieldChanged, FormID: "form_1", FieldID: "email",
			OldValue: "", NewValue: "ada@example.com", At: base.Add(time.Second)},
		{ID: "e3", Type: monitor.EventFormAdded, FormID: "form_2", At: base},
	}
	for _, ev := range evs {
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent %s: %v", ev.ID, err)
		}
	}

	got, err := s.Events(ctx, "form_1", 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("order = [%s %s], want chronological [e1 e2]", got[0].ID, got[1].ID)
	}
	if got[1].NewValue != "ada@example.com" {
		t.Errorf("new value = %q", got[1].NewValue)
	}
}

func TestStats(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.AppendEvent(ctx, monitor.ChangeEvent{
		ID: "e1", Type: monitor.EventFormAdded, FormID: "form_1", At: time.Now(),
	}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalForms != 1 || st.TotalEvents != 1 {
		t.Errorf("stats = %+v, want 1 form / 1 event", st)
	}
	if st.FormsByPlatform["greenhouse"] != 1 {
		t.Errorf("by platform = %v", st.FormsByPlatform)
	}
}
