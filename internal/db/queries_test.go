package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"
)

var runColumns = []string{"id", "flow_id", "query", "caller_context", "status", "error", "step_count", "output", "started_at", "ended_at"}

type QueriesTestSuite struct {
	suite.Suite
	mockDB  *sql.DB
	mock    sqlmock.Sqlmock
	queries QuerierWithTx
}

func TestQueriesSuite(t *testing.T) {
	suite.Run(t, new(QueriesTestSuite))
}

func (suite *QueriesTestSuite) SetupTest() {
	var err error
	suite.mockDB, suite.mock, err = sqlmock.New()
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.queries = NewQuerier(suite.mockDB)
}

func (suite *QueriesTestSuite) TearDownTest() {
	if suite.mock != nil {
		if err := suite.mock.ExpectationsWereMet(); err != nil {
			suite.T().Fatalf("There were unfulfilled expectations: %v", err)
		}
	}
	suite.mockDB.Close()
}

func (suite *QueriesTestSuite) TestCreateRun() {
	suite.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WithArgs("run-1", "research", "what is go", `{"user":"ann"}`, "running", int64(100)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := suite.queries.CreateRun(context.Background(), CreateRunParams{
		ID:            "run-1",
		FlowID:        "research",
		Query:         "what is go",
		CallerContext: sql.NullString{String: `{"user":"ann"}`, Valid: true},
		Status:        "running",
		StartedAt:     100,
	})
	suite.NoError(err)
}

func (suite *QueriesTestSuite) TestFinishRun() {
	suite.mock.ExpectExec(regexp.QuoteMeta("UPDATE runs")).
		WithArgs("failed", "step limit exceeded", int64(20), nil, int64(200), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := suite.queries.FinishRun(context.Background(), FinishRunParams{
		Status:    "failed",
		Error:     sql.NullString{String: "step limit exceeded", Valid: true},
		StepCount: 20,
		EndedAt:   sql.NullInt64{Int64: 200, Valid: true},
		ID:        "run-1",
	})
	suite.NoError(err)
}

func (suite *QueriesTestSuite) TestInsertStepResult() {
	suite.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO step_results")).
		WithArgs("run-1", int64(2), "analyze", "analyze", "default", "failed",
			"boom", "CapabilityError", nil, nil, int64(10), int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := suite.queries.InsertStepResult(context.Background(), InsertStepResultParams{
		RunID:     "run-1",
		Seq:       2,
		StepID:    "analyze",
		Action:    "analyze",
		Worker:    "default",
		Status:    "failed",
		Error:     sql.NullString{String: "boom", Valid: true},
		ErrorKind: sql.NullString{String: "CapabilityError", Valid: true},
		StartedAt: 10,
		EndedAt:   12,
	})
	suite.NoError(err)
}

func (suite *QueriesTestSuite) TestGetRun() {
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-1", "research", "q", nil, "completed", nil, int64(3), `{"content":"x"}`, int64(1), int64(2))
	suite.mock.ExpectQuery(regexp.QuoteMeta("FROM runs")).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := suite.queries.GetRun(context.Background(), "run-1")
	suite.Require().NoError(err)
	suite.Equal("research", run.FlowID)
	suite.Equal(int64(3), run.StepCount)
	suite.False(run.CallerContext.Valid)
	suite.Equal(`{"content":"x"}`, run.Output.String)
	suite.Equal(int64(2), run.EndedAt.Int64)
}

func (suite *QueriesTestSuite) TestGetRunNotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta("FROM runs")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := suite.queries.GetRun(context.Background(), "missing")
	suite.ErrorIs(err, sql.ErrNoRows)
}

func (suite *QueriesTestSuite) TestListRunsByFlow() {
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "research", "q2", nil, "running", nil, int64(1), nil, int64(5), nil).
		AddRow("run-1", "research", "q1", nil, "completed", nil, int64(2), nil, int64(1), int64(3))
	suite.mock.ExpectQuery(regexp.QuoteMeta("WHERE flow_id = ?")).
		WithArgs("research", int64(10)).
		WillReturnRows(rows)

	runs, err := suite.queries.ListRunsByFlow(context.Background(), ListRunsByFlowParams{FlowID: "research", Limit: 10})
	suite.Require().NoError(err)
	suite.Len(runs, 2)
	suite.Equal("run-2", runs[0].ID)
	suite.False(runs[0].EndedAt.Valid)
}

func (suite *QueriesTestSuite) TestListRunsError() {
	suite.mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC")).
		WithArgs(int64(5)).
		WillReturnError(errors.New("connection lost"))

	_, err := suite.queries.ListRuns(context.Background(), 5)
	suite.EqualError(err, "connection lost")
}

func (suite *QueriesTestSuite) TestListStepResults() {
	cols := []string{"run_id", "seq", "step_id", "action", "worker", "status", "error", "error_kind", "output", "confidence", "started_at", "ended_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("run-1", int64(1), "search", "search", "web", "success", nil, nil, `{"results":[]}`, 0.8, int64(1), int64(2)).
		AddRow("run-1", int64(2), "search", "search", "web", "success", nil, nil, `{"results":[]}`, nil, int64(3), int64(4))
	suite.mock.ExpectQuery(regexp.QuoteMeta("FROM step_results")).
		WithArgs("run-1").
		WillReturnRows(rows)

	steps, err := suite.queries.ListStepResults(context.Background(), "run-1")
	suite.Require().NoError(err)
	suite.Len(steps, 2)
	suite.Equal(int64(2), steps[1].Seq)
	suite.InDelta(0.8, steps[0].Confidence.Float64, 1e-9)
	suite.False(steps[1].Confidence.Valid)
}

func (suite *QueriesTestSuite) TestWithTx() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM runs")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	suite.mock.ExpectCommit()

	tx, err := suite.mockDB.Begin()
	suite.Require().NoError(err)
	suite.NoError(suite.queries.WithTx(tx).DeleteRun(context.Background(), "run-1"))
	suite.NoError(tx.Commit())
}
