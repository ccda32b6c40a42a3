//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gptgram/chaincore/chain"
	"github.com/gptgram/chaincore/store"
)

// SaveRun implements chain.RunSaver. The same run ID may be saved repeatedly
// as the run progresses; the stored document is always the latest snapshot.
func (s *PGStore) SaveRun(ctx context.Context, run *chain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("postgres: marshal run %s: %w", run.RunID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO chain_runs (run_id, chain_id, status, data, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status,
		    data = EXCLUDED.data,
		    completed_at = EXCLUDED.completed_at`,
		run.RunID, run.ChainID, string(run.Status), data,
		nullableTime(run.StartedAt), nullableTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun implements store.RunStore.
func (s *PGStore) GetRun(ctx context.Context, runID string) (*chain.Run, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM chain_runs WHERE run_id = $1`, runID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get run %s: %w", runID, err)
	}
	var run chain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("postgres: decode run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns implements store.RunStore. An empty chainID lists every run.
func (s *PGStore) ListRuns(ctx context.Context, chainID string) ([]*chain.Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT data FROM chain_runs
		WHERE $1 = '' OR chain_id = $1
		ORDER BY started_at DESC NULLS LAST`,
		chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var out []*chain.Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		var run chain.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("postgres: decode run: %w", err)
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
