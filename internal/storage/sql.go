package storage

import (
	_ "embed"
)

const (
	insertRunSQL = `
INSERT INTO runs (id,
                  band,
                  started_at)
VALUES (?, ?, ?)`

	endRunSQL = `
UPDATE runs
SET ended_at = ?,
    outcome  = ?,
    reason   = ?
WHERE id = ?`

	selectRunSQL = `
SELECT
    id,
    band,
    started_at,
    ended_at,
    outcome,
    reason
FROM runs
WHERE
    id = ?`

	selectRunsSQL = `
SELECT
    id,
    band,
    started_at,
    ended_at,
    outcome,
    reason
FROM runs
ORDER BY started_at`

	insertSweepSQL = `
    INSERT INTO sweeps (
        run_id,
        sweep_seq,
        started_at,
        points,
        frequency_start,
        frequency_end,
        peak_frequency,
        peak_power
    )
    VALUES `

	selectSweepsSQL = `
SELECT
    run_id,
    sweep_seq,
    started_at,
    points,
    frequency_start,
    frequency_end,
    peak_frequency,
    peak_power
FROM sweeps
WHERE run_id = ?
ORDER BY sweep_seq`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_sweeps_run ON sweeps (run_id, sweep_seq);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs (started_at);`
)

//go:embed schema.sql
var initSchemaSQL string
