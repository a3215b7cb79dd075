package db

import (
	"database/sql"
)

type Run struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	Query         string         `json:"query"`
	CallerContext sql.NullString `json:"caller_context"`
	Status        string         `json:"status"`
	Error         sql.NullString `json:"error"`
	StepCount     int64          `json:"step_count"`
	Output        sql.NullString `json:"output"`
	StartedAt     int64          `json:"started_at"`
	EndedAt       sql.NullInt64  `json:"ended_at"`
}

type StepResult struct {
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
