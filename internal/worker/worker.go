// Package worker provides the named capability providers that execute flow
// steps: LLM-backed workers, an HTML search worker and static workers.
package worker

//go:generate mockgen -destination=mocks/worker.go -package=mock_worker github.com/flowrun/flowrun/internal/worker Worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
)

var (
	ErrWorkerNotFound    = errors.New("worker not found")
	ErrWorkerDisabled    = errors.New("worker is disabled")
	ErrUnsupportedAction = errors.New("action not supported by worker")
)

// Worker executes action requests under a registered name.
type Worker interface {
	action.Invoker
	Name() string
}

// Factory lazily builds a worker the first time it is requested.
type Factory func() (Worker, error)

type funcWorker struct {
	name string
	fn   func(ctx context.Context, req action.Request) (any, error)
}

// Func adapts a function to a Worker.
func Func(name string, fn func(ctx context.Context, req action.Request) (any, error)) Worker {
	return &funcWorker{name: name, fn: fn}
}

func (w *funcWorker) Name() string { return w.name }

func (w *funcWorker) Invoke(ctx context.Context, req action.Request) (any, error) {
	return w.fn(ctx, req)
}

// Registry resolves workers by name. The set of names is fixed once the
// registry is shared; instances behind factories are created on first use
// and cached.
type Registry struct {
	mu        sync.Mutex
	workers   map[string]Worker
	factories map[string]Factory
	disabled  map[string]bool
}

func NewRegistry(workers ...Worker) *Registry {
	r := &Registry{
		workers:   make(map[string]Worker),
		factories: make(map[string]Factory),
		disabled:  make(map[string]bool),
	}
	for _, w := range workers {
		r.Register(w)
	}
	return r
}

func (r *Registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.Name()] = w
}

func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Disable keeps name known to the registry but refuses to hand it out.
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[name] = true
}

func (r *Registry) Get(name string) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disabled[name] {
		return nil, fmt.Errorf("%w: %s", ErrWorkerDisabled, name)
	}
	if w, ok := r.workers[name]; ok {
		return w, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, name)
	}
	w, err := f()
	if err != nil {
		return nil, fmt.Errorf("creating worker %q: %w", name, err)
	}
	logging.Debug("Lazily created worker", "worker", name)
	r.workers[name] = w
	return w, nil
}

// Has reports whether name is registered, without creating it.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.workers[name]
	if !ok {
		_, ok = r.factories[name]
	}
	return ok
}

// Names lists registered worker names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.workers)+len(r.factories))
	for n := range r.workers {
		seen[n] = true
	}
	for n := range r.factories {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
