package db

import (
	"context"
	"database/sql"
)

const insertStepResult = `-- name: InsertStepResult :exec
INSERT INTO step_results (
    run_id,
    seq,
    step_id,
    action,
    worker,
    status,
    error,
    error_kind,
    output,
    confidence,
    started_at,
    ended_at
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
)
`

type InsertStepResultParams struct {
	RunID      string          `json:"run_id"`
	Seq        int64           `json:"seq"`
	StepID     string          `json:"step_id"`
	Action     string          `json:"action"`
	Worker     string          `json:"worker"`
	Status     string          `json:"status"`
	Error      sql.NullString  `json:"error"`
	ErrorKind  sql.NullString  `json:"error_kind"`
	Output     sql.NullString  `json:"output"`
	Confidence sql.NullFloat64 `json:"confidence"`
	StartedAt  int64           `json:"started_at"`
	EndedAt    int64           `json:"ended_at"`
}

func (q *Queries) InsertStepResult(ctx context.Context, arg InsertStepResultParams) error {
	_, err := q.db.ExecContext(ctx, insertStepResult,
		arg.RunID,
		arg.Seq,
		arg.StepID,
		arg.Action,
		arg.Worker,
		arg.Status,
		arg.Error,
		arg.ErrorKind,
		arg.Output,
		arg.Confidence,
		arg.StartedAt,
		arg.EndedAt,
	)
	return err
}

const listStepResults = `-- name: ListStepResults :many
SELECT run_id, seq, step_id, action, worker, status, error, error_kind, output, confidence, started_at, ended_at
FROM step_results
WHERE run_id = ?
ORDER BY seq ASC
`

func (q *Queries) ListStepResults(ctx context.Context, runID string) ([]StepResult, error) {
	rows, err := q.db.QueryContext(ctx, listStepResults, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StepResult{}
	for rows.Next() {
		var i StepResult
		if err := rows.Scan(
			&i.RunID,
			&i.Seq,
			&i.StepID,
			&i.Action,
			&i.Worker,
			&i.Status,
			&i.Error,
			&i.ErrorKind,
			&i.Output,
			&i.Confidence,
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
