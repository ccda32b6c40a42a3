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
	"fmt"

	"github.com/gptgram/chaincore/transform"
)

// Append implements transform.Recorder. Records are append-only; a duplicate
// transform ID is a caller bug and surfaces as a constraint violation.
func (s *PGStore) Append(ctx context.Context, rec transform.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: marshal record %s: %w", rec.TransformID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO transform_records (transform_id, chain_run_id, method, status, idempotency_key, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.TransformID, rec.ChainRunID, string(rec.Method), string(rec.Status),
		rec.IdempotencyKey, data, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append record %s: %w", rec.TransformID, err)
	}
	return nil
}

// ListRecords implements store.RecordStore.
func (s *PGStore) ListRecords(ctx context.Context, chainRunID string) ([]transform.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT data FROM transform_records
		WHERE chain_run_id = $1
		ORDER BY created_at, transform_id`,
		chainRunID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}
	defer rows.Close()

	var out []transform.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		var rec transform.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("postgres: decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
