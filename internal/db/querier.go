package db

import (
	"context"
)

type Querier interface {
	CountRuns(ctx context.Context) (int64, error)
	CreateRun(ctx context.Context, arg CreateRunParams) error
	DeleteRun(ctx context.Context, id string) error
	FinishRun(ctx context.Context, arg FinishRunParams) error
	GetRun(ctx context.Context, id string) (Run, error)
	InsertStepResult(ctx context.Context, arg InsertStepResultParams) error
	ListRuns(ctx context.Context, limit int64) ([]Run, error)
	ListRunsByFlow(ctx context.Context, arg ListRunsByFlowParams) ([]Run, error)
	ListStepResults(ctx context.Context, runID string) ([]StepResult, error)
	UpdateRunStepCount(ctx context.Context, arg UpdateRunStepCountParams) error
}

var _ Querier = (*Queries)(nil)
