package db

import (
	"context"
	"database/sql"
)

const countRuns = `-- name: CountRuns :one
SELECT COUNT(*) FROM runs
`

func (q *Queries) CountRuns(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRuns)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createRun = `-- name: CreateRun :exec
INSERT INTO runs (
    id,
    flow_id,
    query,
    caller_context,
    status,
    step_count,
    started_at
) VALUES (
    ?, ?, ?, ?, ?, 0, ?
)
`

type CreateRunParams struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	Query         string         `json:"query"`
	CallerContext sql.NullString `json:"caller_context"`
	Status        string         `json:"status"`
	StartedAt     int64          `json:"started_at"`
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.FlowID,
		arg.Query,
		arg.CallerContext,
		arg.Status,
		arg.StartedAt,
	)
	return err
}

const deleteRun = `-- name: DeleteRun :exec
DELETE FROM runs
WHERE id = ?
`

func (q *Queries) DeleteRun(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteRun, id)
	return err
}

const finishRun = `-- name: FinishRun :exec
UPDATE runs
SET
    status = ?,
    error = ?,
    step_count = ?,
    output = ?,
    ended_at = ?
WHERE id = ?
`

type FinishRunParams struct {
	Status    string         `json:"status"`
	Error     sql.NullString `json:"error"`
	StepCount int64          `json:"step_count"`
	Output    sql.NullString `json:"output"`
	EndedAt   sql.NullInt64  `json:"ended_at"`
	ID        string         `json:"id"`
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	_, err := q.db.ExecContext(ctx, finishRun,
		arg.Status,
		arg.Error,
		arg.StepCount,
		arg.Output,
		arg.EndedAt,
		arg.ID,
	)
	return err
}

const getRun = `-- name: GetRun :one
SELECT id, flow_id, query, caller_context, status, error, step_count, output, started_at, ended_at
FROM runs
WHERE id = ? LIMIT 1
`

func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i Run
	err := row.Scan(
		&i.ID,
		&i.FlowID,
		&i.Query,
		&i.CallerContext,
		&i.Status,
		&i.Error,
		&i.StepCount,
		&i.Output,
		&i.StartedAt,
		&i.EndedAt,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
SELECT id, flow_id, query, caller_context, status, error, step_count, output, started_at, ended_at
FROM runs
ORDER BY started_at DESC
LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

const listRunsByFlow = `-- name: ListRunsByFlow :many
SELECT id, flow_id, query, caller_context, status, error, step_count, output, started_at, ended_at
FROM runs
WHERE flow_id = ?
ORDER BY started_at DESC
LIMIT ?
`

type ListRunsByFlowParams struct {
	FlowID string `json:"flow_id"`
	Limit  int64  `json:"limit"`
}

func (q *Queries) ListRunsByFlow(ctx context.Context, arg ListRunsByFlowParams) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRunsByFlow, arg.FlowID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	items := []Run{}
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.FlowID,
			&i.Query,
			&i.CallerContext,
			&i.Status,
			&i.Error,
			&i.StepCount,
			&i.Output,
			&i.StartedAt,
			&i.EndedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRunStepCount = `-- name: UpdateRunStepCount :exec
UPDATE runs
SET step_count = ?
WHERE id = ?
`

type UpdateRunStepCountParams struct {
	StepCount int64  `json:"step_count"`
	ID        string `json:"id"`
}

func (q *Queries) UpdateRunStepCount(ctx context.Context, arg UpdateRunStepCountParams) error {
	_, err := q.db.ExecContext(ctx, updateRunStepCount, arg.StepCount, arg.ID)
	return err
}
