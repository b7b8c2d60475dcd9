package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/store"
)

const greenhousePage = `<html><head><title>Software Engineer at Acme</title></head><body>
<h1>Software Engineer</h1><p>Apply for this position and submit your application below.</p>
<div id="grnhse_app"><form id="application_form">
<label for="first_name">First Name</label><input id="first_name" type="text" required>
<label for="last_name">Last Name</label><input id="last_name" type="text" required>
<label for="email">Email</label><input id="email" type="email" required>
<label for="phone">Phone</label><input id="phone" type="tel">
<label for="resume">Resume</label><input id="resume" type="file" required>
<button type="submit">Submit Application</button>
</form></div></body></html>`

func testServer(t *testing.T) *server {
	t.Helper()
	return &server{
		engine: detect.NewEngine(detect.Options{Logger: slog.Default()}),
		store:  store.OpenMemory(t),
		logger: slog.Default(),
	}
}

func TestHandleDetect(t *testing.T) {
	s := testServer(t)
	body := `{"html":` + mustJSON(t, greenhousePage) + `,"url":"https://boards.greenhouse.io/acme/jobs/1"}`
	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res detect.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || len(res.Forms) == 0 {
		t.Fatalf("no forms detected: %+v", res)
	}
	if res.Forms[0].Platform != detect.PlatformGreenhouse {
		t.Errorf("platform = %q, want greenhouse", res.Forms[0].Platform)
	}
}

func TestHandleDetectRawHTML(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost,
		"/detect?url=https://boards.greenhouse.io/acme/jobs/1", strings.NewReader(greenhousePage))
	w := httptest.NewRecorder()

	s.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestHandleDetectEmptyBody(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(""))
	w := httptest.NewRecorder()

	s.routes().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleHealthzAndStats(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusOK {
		t.Errorf("stats status = %d", w.Code)
	}
}

func TestHandleFormNotFound(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
