package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/dom"
	"github.com/hireloop/formsense/store"
)

// detectRequest is the POST /detect body.
type detectRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url,omitempty"`
}

type server struct {
	engine *detect.Engine
	store  *store.Store
	logger *slog.Logger
}

func runServe(ctx context.Context, logger *slog.Logger, opts detect.Options, st *store.Store, addr string) error {
	s := &server{engine: detect.NewEngine(opts), store: st, logger: logger}
	srv := &http.Server{Addr: addr, Handler: s.routes()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Post("/detect", s.handleDetect)
	r.Get("/forms", s.handleForms)
	r.Get("/forms/{formID}", s.handleForm)
	r.Get("/forms/{formID}/events", s.handleEvents)
	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
	default:
		// Raw HTML body; page URL may ride in a query parameter.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
			return
		}
		req.HTML = string(body)
		req.URL = r.URL.Query().Get("url")
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("empty html"))
		return
	}

	doc, err := dom.ParseString(req.HTML, req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse html: %w", err))
		return
	}

	res := s.engine.Detect(r.Context(), doc)
	if s.store != nil {
		if err := s.store.SaveResult(r.Context(), &res); err != nil {
			s.logger.Warn("persist result failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleForms(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no store configured"))
		return
	}
	forms, err := s.store.RecentForms(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func (s *server) handleForm(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no store configured"))
		return
	}
	form, err := s.store.Form(r.Context(), chi.URLParam(r, "formID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no store configured"))
		return
	}
	events, err := s.store.Events(r.Context(), chi.URLParam(r, "formID"), 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, store.Stats{})
		return
	}
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
