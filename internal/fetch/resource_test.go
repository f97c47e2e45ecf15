package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/pkshell/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(t *testing.T, opts Options[string, []string]) *Resource[string, []string] {
	t.Helper()
	if opts.Load == nil {
		opts.Load = func(_ context.Context, key string) ([]string, error) {
			return []string{key}, nil
		}
	}
	if opts.ErrorMessage == "" {
		opts.ErrorMessage = "could not load"
	}
	opts.Name = "test"
	opts.Logger = testutil.NewTestLogger(t)
	return New(opts)
}

func TestResource_Lifecycle(t *testing.T) {
	r := newEcho(t, Options[string, []string]{})
	assert.Equal(t, Idle, r.State().Status)

	job := r.Begin("a")
	st := r.State()
	assert.Equal(t, Loading, st.Status)
	assert.Equal(t, "a", st.Key)
	assert.Nil(t, st.Data)

	require.NoError(t, job.Run(context.Background()).Commit())
	st = r.State()
	assert.Equal(t, Success, st.Status)
	assert.Equal(t, []string{"a"}, st.Data)
}

func TestResource_BeginDiscardsPreviousData(t *testing.T) {
	r := newEcho(t, Options[string, []string]{})
	require.NoError(t, r.Begin("a").Run(context.Background()).Commit())
	require.Equal(t, Success, r.State().Status)

	r.Begin("b")
	st := r.State()
	assert.Equal(t, Loading, st.Status)
	assert.Empty(t, st.Data, "no stale data while the new key loads")
}

func TestResource_BeginFromErrorGoesLoading(t *testing.T) {
	boom := errors.New("boom")
	r := newEcho(t, Options[string, []string]{
		Load: func(context.Context, string) ([]string, error) { return nil, boom },
	})
	require.NoError(t, r.Begin("a").Run(context.Background()).Commit())

	st := r.State()
	assert.Equal(t, Failed, st.Status)
	assert.Equal(t, "could not load", st.Message)
	assert.ErrorIs(t, st.Err, boom)

	r.Begin("a")
	st = r.State()
	assert.Equal(t, Loading, st.Status)
	assert.Empty(t, st.Message)
	assert.NoError(t, st.Err)
}

func TestResource_ErrorMessageIsFixed(t *testing.T) {
	r := newEcho(t, Options[string, []string]{
		Load: func(context.Context, string) ([]string, error) {
			return nil, errors.New("dial tcp 127.0.0.1:8000: connection refused")
		},
		ErrorMessage: "No se pudieron obtener los datos",
	})
	require.NoError(t, r.Begin("a").Run(context.Background()).Commit())
	assert.Equal(t, "No se pudieron obtener los datos", r.State().Message)
}

func TestOutcome_CommitStale(t *testing.T) {
	tests := []struct {
		name    string
		between func(r *Resource[string, []string])
	}{
		{"newer key", func(r *Resource[string, []string]) { r.Begin("b") }},
		{"same key again", func(r *Resource[string, []string]) { r.Begin("a") }},
		{"disabled", func(r *Resource[string, []string]) { r.Disable() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pushed []string
			r := newEcho(t, Options[string, []string]{
				OnSuccess: func(_ string, data []string) { pushed = data },
			})
			out := r.Begin("a").Run(context.Background())
			tt.between(r)
			before := r.State()

			err := out.Commit()
			require.ErrorIs(t, err, ErrStale)
			assert.Equal(t, before, r.State())
			assert.Nil(t, pushed)
		})
	}
}

func TestOutcome_CommitGuardRejects(t *testing.T) {
	current := "s1"
	var pushed []string
	r := newEcho(t, Options[string, []string]{
		Accept:    func(key string) bool { return key == current },
		OnSuccess: func(_ string, data []string) { pushed = data },
	})

	out := r.Begin("s1").Run(context.Background())
	current = "s2"
	require.ErrorIs(t, out.Commit(), ErrStale)
	assert.Equal(t, Loading, r.State().Status)
	assert.Nil(t, pushed)
}

func TestOutcome_CommitCallsOnSuccess(t *testing.T) {
	var gotKey string
	var gotData []string
	r := newEcho(t, Options[string, []string]{
		OnSuccess: func(key string, data []string) {
			gotKey, gotData = key, data
		},
	})
	require.NoError(t, r.Begin("users").Run(context.Background()).Commit())
	assert.Equal(t, "users", gotKey)
	assert.Equal(t, []string{"users"}, gotData)
}

func TestJob_RunStaleSkipsLoader(t *testing.T) {
	calls := 0
	r := newEcho(t, Options[string, []string]{
		Load: func(_ context.Context, key string) ([]string, error) {
			calls++
			return []string{key}, nil
		},
	})
	job := r.Begin("a")
	r.Begin("b")

	out := job.Run(context.Background())
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, out.Err(), ErrStale)
	assert.ErrorIs(t, out.Commit(), ErrStale)
}

func TestResource_BeginCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	r := newEcho(t, Options[string, []string]{
		Load: func(ctx context.Context, key string) ([]string, error) {
			if key == "slow" {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []string{key}, nil
		},
	})

	slow := r.Begin("slow")
	done := make(chan *Outcome[string, []string], 1)
	go func() { done <- slow.Run(context.Background()) }()

	<-started
	fast := r.Begin("fast")

	var out *Outcome[string, []string]
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight load was not cancelled")
	}
	assert.ErrorIs(t, out.Err(), context.Canceled)
	assert.ErrorIs(t, out.Commit(), ErrStale)

	require.NoError(t, fast.Run(context.Background()).Commit())
	assert.Equal(t, []string{"fast"}, r.State().Data)
}

func TestResource_DisableWhenIdleIsNoop(t *testing.T) {
	r := newEcho(t, Options[string, []string]{})
	r.Disable()
	assert.Equal(t, Idle, r.State().Status)
}

// Only the outcome of the last Begin may land, whatever order the loads
// finish in.
func TestResource_ConcurrentLoadsLastWins(t *testing.T) {
	r := newEcho(t, Options[string, []string]{
		Load: func(_ context.Context, key string) ([]string, error) {
			time.Sleep(time.Millisecond)
			return []string{key}, nil
		},
	})

	keys := []string{"a", "b", "c", "d", "e", "f"}
	jobs := make([]*Job[string, []string], len(keys))
	for i, k := range keys {
		jobs[i] = r.Begin(k)
	}

	var wg sync.WaitGroup
	results := make([]error, len(jobs))
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j *Job[string, []string]) {
			defer wg.Done()
			results[i] = j.Run(context.Background()).Commit()
		}(i, j)
	}
	wg.Wait()

	for i, err := range results[:len(results)-1] {
		assert.ErrorIs(t, err, ErrStale, "job %d", i)
	}
	require.NoError(t, results[len(results)-1])
	assert.Equal(t, []string{"f"}, r.State().Data)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "error", Failed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
