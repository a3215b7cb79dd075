// Package history persists finished and in-flight runs by listening to the
// flow event bus.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/flowrun/flowrun/internal/db"
	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/pubsub"
)

const (
	DefaultListLimit = 50
	writeTimeout     = 5 * time.Second
)

var ErrRunNotFound = errors.New("run not found")

type Step struct {
	Seq        int             `json:"seq"`
	StepID     string          `json:"stepId"`
	Action     string          `json:"action"`
	Worker     string          `json:"worker"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"errorKind,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt"`
}

type Run struct {
	ID            string          `json:"id"`
	FlowID        string          `json:"flowId"`
	Query         string          `json:"query"`
	CallerContext json.RawMessage `json:"callerContext,omitempty"`
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	StepCount     int             `json:"stepCount"`
	Output        json.RawMessage `json:"output,omitempty"`
	StartedAt     time.Time       `json:"startedAt"`
	EndedAt       time.Time       `json:"endedAt,omitzero"`
	Steps         []Step          `json:"steps,omitempty"`
}

// Summary is the content field of the final output, or the error of a
// failed run.
func (r Run) Summary() string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Output) == 0 {
		return ""
	}
	return gjson.GetBytes(r.Output, "content").String()
}

type Service interface {
	pubsub.Suscriber[Run]
	// Attach records every run published on bus until the returned func is called.
	Attach(bus *flow.Bus) (detach func())
	Record(ctx context.Context, e flow.Event) error
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, flowID string, limit int) ([]Run, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	*pubsub.Broker[Run]
	db *sql.DB
	q  db.QuerierWithTx

	mu  sync.Mutex
	seq map[string]int
}

func NewService(q db.QuerierWithTx, database *sql.DB) Service {
	return &service{
		Broker: pubsub.NewBroker[Run](),
		q:      q,
		db:     database,
		seq:    make(map[string]int),
	}
}

func (s *service) Attach(bus *flow.Bus) func() {
	return bus.On("", func(e flow.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.Record(ctx, e); err != nil {
			logging.Error("Failed to record run event", "kind", e.Kind, "session", e.SessionID, "error", err)
		}
	})
}

// Record persists the part of a run carried by e. Events without a session
// (a flow that could not be found) and thinking events are ignored.
func (s *service) Record(ctx context.Context, e flow.Event) error {
	if e.SessionID == "" {
		return nil
	}
	switch e.Kind {
	case flow.EventFlowStart:
		return s.start(ctx, e)
	case flow.EventStepComplete:
		return s.step(ctx, e)
	case flow.EventFlowComplete, flow.EventFlowError:
		return s.finish(ctx, e)
	}
	return nil
}

func (s *service) start(ctx context.Context, e flow.Event) error {
	if e.Context == nil {
		return nil
	}
	s.mu.Lock()
	s.seq[e.SessionID] = 0
	s.mu.Unlock()

	callerCtx, err := nullJSON(e.Context.CallerContext, len(e.Context.CallerContext) > 0)
	if err != nil {
		return err
	}
	err = s.q.CreateRun(ctx, db.CreateRunParams{
		ID:            e.SessionID,
		FlowID:        e.FlowID,
		Query:         e.Context.OriginalQuery,
		CallerContext: callerCtx,
		Status:        string(flow.RunRunning),
		StartedAt:     e.Context.StartTime.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("creating run %s: %w", e.SessionID, err)
	}
	s.Publish(pubsub.CreatedEvent, Run{
		ID:        e.SessionID,
		FlowID:    e.FlowID,
		Query:     e.Context.OriginalQuery,
		Status:    string(flow.RunRunning),
		StartedAt: e.Context.StartTime,
	})
	return nil
}

// step stores one execution of a step. A revisited step gets a new row, so
// the stored sequence mirrors the run's trail.
func (s *service) step(ctx context.Context, e flow.Event) error {
	r := e.Result
	if r == nil {
		return nil
	}
	s.mu.Lock()
	s.seq[e.SessionID]++
	seq := s.seq[e.SessionID]
	s.mu.Unlock()

	output, err := nullJSON(r.Output, r.Output != nil)
	if err != nil {
		return err
	}
	params := db.InsertStepResultParams{
		RunID:     e.SessionID,
		Seq:       int64(seq),
		StepID:    r.StepID,
		Action:    string(r.Action),
		Worker:    r.Worker,
		Status:    string(r.Status),
		Error:     nullString(r.Error),
		ErrorKind: nullString(string(r.ErrorKind)),
		Output:    output,
		StartedAt: r.StartTime.UnixMilli(),
		EndedAt:   r.EndTime.UnixMilli(),
	}
	if r.Confidence != nil {
		params.Confidence = sql.NullFloat64{Float64: *r.Confidence, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	qtx := s.q.WithTx(tx)
	if err := qtx.InsertStepResult(ctx, params); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting step %s of run %s: %w", r.StepID, e.SessionID, err)
	}
	if err := qtx.UpdateRunStepCount(ctx, db.UpdateRunStepCountParams{StepCount: int64(seq), ID: e.SessionID}); err != nil {
		tx.Rollback()
		return fmt.Errorf("updating run %s: %w", e.SessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	logging.Debug("Step result recorded", "session", e.SessionID, "step", r.StepID, "seq", seq)
	return nil
}

func (s *service) finish(ctx context.Context, e flow.Event) error {
	ectx := e.Context
	if ectx == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.seq, e.SessionID)
	s.mu.Unlock()

	var last any
	if r, ok := ectx.LastResult(); ok {
		last = r.Output
	}
	output, err := nullJSON(last, last != nil)
	if err != nil {
		return err
	}
	params := db.FinishRunParams{
		Status:    string(ectx.Status),
		Error:     nullString(ectx.Error),
		StepCount: int64(len(ectx.Trail)),
		Output:    output,
		ID:        e.SessionID,
	}
	if !ectx.EndTime.IsZero() {
		params.EndedAt = sql.NullInt64{Int64: ectx.EndTime.UnixMilli(), Valid: true}
	}
	if err := s.q.FinishRun(ctx, params); err != nil {
		return fmt.Errorf("finishing run %s: %w", e.SessionID, err)
	}

	run := Run{
		ID:        e.SessionID,
		FlowID:    ectx.FlowID,
		Query:     ectx.OriginalQuery,
		Status:    string(ectx.Status),
		Error:     ectx.Error,
		StepCount: len(ectx.Trail),
		StartedAt: ectx.StartTime,
		EndedAt:   ectx.EndTime,
	}
	if output.Valid {
		run.Output = json.RawMessage(output.String)
	}
	s.Publish(pubsub.UpdatedEvent, run)
	logging.Debug("Run recorded", "session", e.SessionID, "status", ectx.Status, "steps", len(ectx.Trail))
	return nil
}

func (s *service) Get(ctx context.Context, id string) (Run, error) {
	dbRun, err := s.q.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return Run{}, err
	}
	run := fromDBRun(dbRun)

	steps, err := s.q.ListStepResults(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Steps = make([]Step, len(steps))
	for i, st := range steps {
		run.Steps[i] = fromDBStep(st)
	}
	return run, nil
}

// List returns the newest runs first, optionally only those of flowID.
func (s *service) List(ctx context.Context, flowID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var (
		dbRuns []db.Run
		err    error
	)
	if flowID == "" {
		dbRuns, err = s.q.ListRuns(ctx, int64(limit))
	} else {
		dbRuns, err = s.q.ListRunsByFlow(ctx, db.ListRunsByFlowParams{FlowID: flowID, Limit: int64(limit)})
	}
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(dbRuns))
	for i, r := range dbRuns {
		runs[i] = fromDBRun(r)
	}
	return runs, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	run, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.q.DeleteRun(ctx, id); err != nil {
		return err
	}
	s.Publish(pubsub.DeletedEvent, run)
	return nil
}

func fromDBRun(r db.Run) Run {
	run := Run{
		ID:        r.ID,
		FlowID:    r.FlowID,
		Query:     r.Query,
		Status:    r.Status,
		Error:     r.Error.String,
		StepCount: int(r.StepCount),
		StartedAt: time.UnixMilli(r.StartedAt),
	}
	if r.CallerContext.Valid {
		run.CallerContext = json.RawMessage(r.CallerContext.String)
	}
	if r.Output.Valid {
		run.Output = json.RawMessage(r.Output.String)
	}
	if r.EndedAt.Valid {
		run.EndedAt = time.UnixMilli(r.EndedAt.Int64)
	}
	return run
}

func fromDBStep(st db.StepResult) Step {
	step := Step{
		Seq:       int(st.Seq),
		StepID:    st.StepID,
		Action:    st.Action,
		Worker:    st.Worker,
		Status:    st.Status,
		Error:     st.Error.String,
		ErrorKind: st.ErrorKind.String,
		StartedAt: time.UnixMilli(st.StartedAt),
		EndedAt:   time.UnixMilli(st.EndedAt),
	}
	if st.Output.Valid {
		step.Output = json.RawMessage(st.Output.String)
	}
	if st.Confidence.Valid {
		c := st.Confidence.Float64
		step.Confidence = &c
	}
	return step
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(v any, valid bool) (sql.NullString, error) {
	if !valid {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding run data: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
