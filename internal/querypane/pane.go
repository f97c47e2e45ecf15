// Package querypane holds the state of the query editor.
//
// A Pane sends free-text SQL to the execution endpoint, one query at a time.
// Submission is split from execution the same way catalog fetches are:
// Submit flips the pane to loading and returns a Request, the caller runs it
// wherever it likes, and Finish writes the response back.
package querypane

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/pkshell/internal/api"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
)

var (
	// ErrBusy is returned by Submit while a query is running.
	ErrBusy = errors.New("query already running")
	// ErrEmpty is returned by Submit for blank query text.
	ErrEmpty = errors.New("empty query")
)

// Executor runs a query on the backend.
type Executor interface {
	Execute(ctx context.Context, req api.ExecuteRequest) (*api.Result, error)
}

// TargetFunc returns the database and schema a query should run against.
// Either may be empty.
type TargetFunc func() (database, schema string)

// Options configures a Pane.
type Options struct {
	Executor Executor
	// Target, when set, attaches the current selection to each request.
	Target     TargetFunc
	Translator *locale.Translator
	Logger     *slog.Logger
}

// State is a snapshot of the pane.
type State struct {
	Text       string
	Loading    bool
	LastResult *api.Result
	// LastError is the user-facing error of the last run, empty on success.
	LastError string
	// Err is the error behind LastError.
	Err     error
	Elapsed time.Duration
}

// Pane is the query editor state. It is safe for concurrent use.
type Pane struct {
	exec   Executor
	target TargetFunc
	tr     *locale.Translator
	logger *slog.Logger

	mu      sync.Mutex
	text    string
	loading bool
	result  *api.Result
	errMsg  string
	err     error
	elapsed time.Duration
}

// New creates an empty Pane.
func New(opts Options) *Pane {
	tr := opts.Translator
	if tr == nil {
		tr = locale.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pane{
		exec:   opts.Executor,
		target: opts.Target,
		tr:     tr,
		logger: logger,
	}
}

// SetText replaces the editor text.
func (p *Pane) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

// State returns a snapshot of the pane.
func (p *Pane) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Text:       p.text,
		Loading:    p.loading,
		LastResult: p.result,
		LastError:  p.errMsg,
		Err:        p.err,
		Elapsed:    p.elapsed,
	}
}

// Request is a submitted query waiting to be executed.
type Request struct {
	pane *Pane
	body api.ExecuteRequest
}

// Body returns the request that will be sent.
func (r *Request) Body() api.ExecuteRequest {
	return r.body
}

// Response is the outcome of a Request.
type Response struct {
	req     *Request
	result  *api.Result
	err     error
	elapsed time.Duration
}

// Err returns the execution error, if any.
func (r *Response) Err() error {
	return r.err
}

// Submit records text as the current query and marks the pane as loading.
// It fails with ErrBusy while another query runs; no request is produced in
// that case.
func (p *Pane) Submit(text string) (*Request, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loading {
		return nil, ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	p.text = text
	p.loading = true

	body := api.ExecuteRequest{Query: text}
	if p.target != nil {
		body.Database, body.Schema = p.target()
	}
	return &Request{pane: p, body: body}, nil
}

// Run executes the request. It does not touch pane state.
func (r *Request) Run(ctx context.Context) *Response {
	start := time.Now()
	res, err := r.pane.exec.Execute(ctx, r.body)
	return &Response{req: r, result: res, err: err, elapsed: time.Since(start)}
}

// Finish writes a response back and clears the loading flag. A failure keeps
// the previous result.
func (p *Pane) Finish(resp *Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loading = false
	p.elapsed = resp.elapsed
	if resp.err != nil {
		p.err = resp.err
		p.errMsg = p.message(resp.err)
		p.logger.Warn("query failed", "error", resp.err, "elapsed", resp.elapsed)
		return
	}

	p.result = resp.result
	p.err = nil
	p.errMsg = ""
	if resp.result != nil {
		p.logger.Debug("query finished",
			"request_id", resp.result.RequestID,
			"rows", len(resp.result.Rows),
			"elapsed", resp.elapsed)
	}
}

// Run submits text, executes it and finishes it. The returned error is
// ErrBusy, ErrEmpty or the execution error; the user-facing message is in
// State().LastError.
func (p *Pane) Run(ctx context.Context, text string) error {
	req, err := p.Submit(text)
	if err != nil {
		return err
	}
	resp := req.Run(ctx)
	p.Finish(resp)
	return resp.err
}

func (p *Pane) message(err error) string {
	var httpErr *api.HTTPError
	var netErr *api.NetworkError
	var decErr *catalog.DecodeError

	switch {
	case errors.As(err, &httpErr):
		if httpErr.Detail != "" {
			return p.tr.T(locale.QueryFailedWith, httpErr.Detail)
		}
		return p.tr.T(locale.QueryFailed)
	case errors.As(err, &netErr):
		return p.tr.T(locale.QueryUnreachable)
	case errors.As(err, &decErr):
		return p.tr.T(locale.QueryMalformed)
	default:
		return p.tr.T(locale.QueryFailed)
	}
}
