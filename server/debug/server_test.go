//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptgram/chaincore/chain"
	"github.com/gptgram/chaincore/store"
	"github.com/gptgram/chaincore/transform"
)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *chain.Run) {
	t.Helper()
	st := store.NewMemoryStore()
	run := chain.NewRun("chain-1", []string{"a"})
	require.NoError(t, st.SaveRun(context.Background(), run))
	require.NoError(t, st.Append(context.Background(), transform.Record{
		TransformID: "t1",
		ChainRunID:  run.RunID,
		Method:      transform.MethodDeterministic,
		Status:      transform.RecordStatusSuccess,
		Timestamp:   time.Now().UTC(),
	}))
	return New(st), st, run
}

func TestListRuns(t *testing.T) {
	s, _, run := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []*chain.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, run.RunID, body.Runs[0].RunID)
}

func TestListRunsFilteredOut(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?chain_id=other", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []*chain.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Runs)
}

func TestGetRun(t *testing.T) {
	s, _, run := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got chain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.ChainID, got.ChainID)
}

func TestGetRunNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecords(t *testing.T) {
	s, _, run := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+run.RunID+"/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records []transform.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "t1", body.Records[0].TransformID)
}

func TestListRecordsUnknownRun(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing/records", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
