package flow

import (
	"context"
	"time"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/pubsub"
)

// Options tune a Service.
type Options struct {
	MaxSteps           int
	StepTimeout        time.Duration
	DefaultWorker      string
	EventBuffer        int
	SequentialFallback bool
	Actions            *action.Registry
}

// OptionsFromConfig maps the engine section of the configuration.
func OptionsFromConfig(e config.Engine) Options {
	return Options{
		MaxSteps:           e.MaxSteps,
		StepTimeout:        time.Duration(e.StepTimeout) * time.Second,
		DefaultWorker:      e.DefaultWorker,
		EventBuffer:        e.EventBuffer,
		SequentialFallback: e.SequentialFallback,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxSteps <= 0 {
		o.MaxSteps = config.DefaultMaxSteps
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = config.DefaultStepTimeout * time.Second
	}
	if o.DefaultWorker == "" {
		o.DefaultWorker = config.DefaultWorkerName
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = config.DefaultEventBuffer
	}
	if o.Actions == nil {
		o.Actions = action.DefaultRegistry()
	}
}

// Service is the caller-facing API of the engine.
type Service struct {
	flows  *Registry
	bus    *Bus
	runner *Runner
}

func NewService(flows *Registry, workers WorkerSource, opts Options) *Service {
	opts.applyDefaults()
	bus := NewBus(opts.EventBuffer)
	executor := NewExecutor(opts.Actions, workers, bus, opts.DefaultWorker, opts.StepTimeout)
	return &Service{
		flows:  flows,
		bus:    bus,
		runner: NewRunner(flows, executor, bus, opts.MaxSteps, opts.SequentialFallback),
	}
}

func (s *Service) Run(ctx context.Context, query, flowID string, callerContext map[string]any) (*ExecutionContext, error) {
	return s.runner.Run(ctx, query, flowID, callerContext)
}

func (s *Service) GetFlow(id string) (*Flow, error) {
	return s.flows.Get(id)
}

func (s *Service) ListFlows() ([]Flow, error) {
	return s.flows.All()
}

// Flows exposes the registry, for filtering and hot reload.
func (s *Service) Flows() *Registry {
	return s.flows
}

func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return s.bus.Subscribe(ctx)
}

func (s *Service) On(kind EventKind, handler func(Event)) (unsubscribe func()) {
	return s.bus.On(kind, handler)
}

func (s *Service) Shutdown() {
	s.bus.Shutdown()
}

// Bus exposes the event bus to recorders and transports.
func (s *Service) Bus() *Bus {
	return s.bus
}
