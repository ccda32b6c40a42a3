//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chain_runs (
    run_id       TEXT PRIMARY KEY,
    chain_id     TEXT NOT NULL,
    status       TEXT NOT NULL,
    data         JSONB NOT NULL DEFAULT '{}',
    started_at   TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS transform_records (
    transform_id    TEXT PRIMARY KEY,
    chain_run_id    TEXT NOT NULL,
    method          TEXT NOT NULL,
    status          TEXT NOT NULL,
    idempotency_key TEXT NOT NULL DEFAULT '',
    data            JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chain_runs_chain_id    ON chain_runs(chain_id);
CREATE INDEX IF NOT EXISTS idx_chain_runs_started_at  ON chain_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_transform_records_run  ON transform_records(chain_run_id);
CREATE INDEX IF NOT EXISTS idx_transform_records_pair ON transform_records(method, status);
`

// CreateSchema creates the chain_runs and transform_records tables if they
// don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the chain_runs and transform_records tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS transform_records, chain_runs CASCADE;`)
	return err
}
