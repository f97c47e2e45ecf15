// Package fetch provides keyed asynchronous resources.
//
// A Resource holds the state of one remote collection whose key is derived
// from the current selection. Loading happens in two halves so callers can run
// the network part anywhere (a goroutine, a bubbletea command, inline) while
// state changes stay ordered:
//
//	job := res.Begin(key)    // state -> Loading, previous data discarded
//	out := job.Run(ctx)      // performs the load, touches no state
//	err := out.Commit()      // state -> Success/Error, or ErrStale
//
// Every Begin or Disable bumps a generation counter. An outcome whose
// generation is no longer current is dropped by Commit, so a late response can
// never overwrite state that belongs to a newer key.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrStale is returned by Outcome.Commit when the outcome belongs to a key
// that is no longer current.
var ErrStale = errors.New("stale response")

// Status is the observable phase of a Resource.
type Status int

// Resource statuses.
const (
	Idle Status = iota
	Loading
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// LoadFunc loads the data for key. It must honour ctx cancellation.
type LoadFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Options configures a Resource.
type Options[K comparable, T any] struct {
	// Name identifies the resource in logs.
	Name string
	Load LoadFunc[K, T]
	// Accept is checked at write-back. Returning false drops the outcome as
	// stale even if its generation is current.
	Accept func(key K) bool
	// OnSuccess runs after a successful commit, with the committed data.
	OnSuccess func(key K, data T)
	// ErrorMessage is the fixed user-facing text stored on failure.
	ErrorMessage string
	Logger       *slog.Logger
}

// State is a snapshot of a Resource.
type State[K comparable, T any] struct {
	Status Status
	Key    K
	Data   T
	// Message is the user-facing error text when Status is Failed.
	Message string
	// Err is the underlying failure, kept for logging.
	Err error
}

// Resource is a keyed asynchronous value. It is safe for concurrent use.
type Resource[K comparable, T any] struct {
	opts   Options[K, T]
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	state  State[K, T]
	cancel context.CancelFunc
}

// New creates an idle Resource.
func New[K comparable, T any](opts Options[K, T]) *Resource[K, T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resource[K, T]{
		opts:   opts,
		logger: logger.With("resource", opts.Name),
	}
}

// Name returns the resource name.
func (r *Resource[K, T]) Name() string {
	return r.opts.Name
}

// State returns a snapshot of the current state.
func (r *Resource[K, T]) State() State[K, T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Begin starts a load for key. The resource moves to Loading at once and any
// previous data or error is dropped. The in-flight request of the previous
// generation, if any, is cancelled.
func (r *Resource[K, T]) Begin(key K) *Job[K, T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.invalidateLocked()
	r.state = State[K, T]{Status: Loading, Key: key}
	r.logger.Debug("fetch begin", "key", key, "generation", r.gen)
	return &Job[K, T]{r: r, gen: r.gen, key: key}
}

// Disable moves the resource to Idle with no data and invalidates in-flight
// work.
func (r *Resource[K, T]) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status == Idle && r.cancel == nil {
		return
	}
	r.invalidateLocked()
	r.state = State[K, T]{}
	r.logger.Debug("fetch disabled", "generation", r.gen)
}

func (r *Resource[K, T]) invalidateLocked() {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Job is one pending load, bound to the generation that created it.
type Job[K comparable, T any] struct {
	r   *Resource[K, T]
	gen uint64
	key K
}

// Key returns the key being loaded.
func (j *Job[K, T]) Key() K {
	return j.key
}

// Resource returns the resource the job belongs to.
func (j *Job[K, T]) Resource() *Resource[K, T] {
	return j.r
}

// Run performs the load. It does not modify the resource state; the returned
// Outcome must be committed. If the job is already stale the loader is not
// called.
func (j *Job[K, T]) Run(ctx context.Context) *Outcome[K, T] {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := j.r
	r.mu.Lock()
	if r.gen != j.gen {
		r.mu.Unlock()
		return &Outcome[K, T]{job: j, err: ErrStale}
	}
	r.cancel = cancel
	r.mu.Unlock()

	data, err := r.opts.Load(ctx, j.key)

	r.mu.Lock()
	if r.gen == j.gen {
		r.cancel = nil
	}
	r.mu.Unlock()

	return &Outcome[K, T]{job: j, data: data, err: err}
}

// Outcome is the result of a Job waiting to be written back.
type Outcome[K comparable, T any] struct {
	job  *Job[K, T]
	data T
	err  error
}

// Key returns the key the outcome was loaded for.
func (o *Outcome[K, T]) Key() K {
	return o.job.key
}

// Err returns the load error, if any.
func (o *Outcome[K, T]) Err() error {
	return o.err
}

// Commit writes the outcome into its resource. It returns ErrStale and leaves
// the resource untouched when the outcome's generation is no longer current
// or the write-back guard rejects its key.
func (o *Outcome[K, T]) Commit() error {
	r := o.job.r

	r.mu.Lock()
	if r.gen != o.job.gen || errors.Is(o.err, ErrStale) {
		r.mu.Unlock()
		r.logger.Debug("fetch dropped", "key", o.job.key, "reason", "generation")
		return ErrStale
	}
	if r.opts.Accept != nil && !r.opts.Accept(o.job.key) {
		r.mu.Unlock()
		r.logger.Debug("fetch dropped", "key", o.job.key, "reason", "guard")
		return ErrStale
	}

	if o.err != nil {
		r.state = State[K, T]{
			Status:  Failed,
			Key:     o.job.key,
			Message: r.opts.ErrorMessage,
			Err:     o.err,
		}
		r.mu.Unlock()
		r.logger.Warn("fetch failed", "key", o.job.key, "error", o.err)
		return nil
	}

	r.state = State[K, T]{Status: Success, Key: o.job.key, Data: o.data}
	r.mu.Unlock()

	r.logger.Debug("fetch succeeded", "key", o.job.key)
	if r.opts.OnSuccess != nil {
		r.opts.OnSuccess(o.job.key, o.data)
	}
	return nil
}
