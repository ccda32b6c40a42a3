//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package debug provides a read-only HTTP server over persisted chain runs
// and transform records, for inspecting what a run did and why each edge
// bridged the way it did.
package debug

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gptgram/chaincore/store"
)

// Server exposes runs and transform audit records over HTTP. It never
// mutates the store; execution happens elsewhere.
type Server struct {
	store  store.Store
	router *mux.Router
}

// New creates a Server over the given store.
func New(st store.Store) *Server {
	s := &Server{store: st, router: mux.NewRouter()}
	s.registerRoutes()
	return s
}

// Handler returns the underlying mux so callers can mount it.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{runId}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{runId}/records", s.handleListRecords).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// handleListRuns lists runs, optionally filtered by ?chain_id=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	chainID := r.URL.Query().Get("chain_id")
	runs, err := s.store.ListRuns(r.Context(), chainID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, run)
}

// handleListRecords returns the transform audit trail for a run. A run with
// no records returns an empty list, not 404; direct-connect runs are valid.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if _, err := s.store.GetRun(r.Context(), runID); errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	records, err := s.store.ListRecords(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"records": records})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
