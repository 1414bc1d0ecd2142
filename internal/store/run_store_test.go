package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"logincheck/internal/flow"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func passedResult(id string, started time.Time) *flow.Result {
	return &flow.Result{
		ID:         id,
		TargetURL:  "https://www.saucedemo.com/v1/",
		Username:   "standard_user",
		Headless:   true,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		FinalURL:   "https://www.saucedemo.com/v1/inventory.html",
		Steps: []flow.StepRecord{
			{Name: flow.StepAcquire, Duration: 800 * time.Millisecond},
			{Name: flow.StepNavigate, Duration: 400 * time.Millisecond},
			{Name: flow.StepRelease, Duration: 50 * time.Millisecond},
		},
	}
}

func failedResult(id string, started time.Time, kind error) *flow.Result {
	err := &flow.StepError{Step: flow.StepLocate, Selector: "#login-button", Kind: kind, Err: context.DeadlineExceeded}
	return &flow.Result{
		ID:         id,
		TargetURL:  "https://www.saucedemo.com/v1/",
		Username:   "standard_user",
		StartedAt:  started,
		FinishedAt: started.Add(10 * time.Second),
		Screenshot: "/tmp/" + id + ".png",
		Steps: []flow.StepRecord{
			{Name: flow.StepAcquire, Duration: time.Second},
			{Name: flow.StepLocate, Duration: 9 * time.Second, Error: err.Error()},
			{Name: flow.StepRelease, Duration: 10 * time.Millisecond},
		},
		Err: err,
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("", nil)
	require.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, passedResult("run-1", time.Now())))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestRecord_GetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.UnixMilli(1_700_000_000_000)

	res := failedResult("5b3c0d9e-1111-2222-3333-444455556666", started, flow.ErrElementNotFound)
	require.NoError(t, s.Record(ctx, res))

	got, err := s.Get(ctx, res.ID)
	require.NoError(t, err)

	want := &Run{
		ID:           res.ID,
		TargetURL:    res.TargetURL,
		Username:     "standard_user",
		Outcome:      OutcomeFail,
		ErrorKind:    "element_not_found",
		ErrorMessage: res.Err.Error(),
		Screenshot:   res.Screenshot,
		StartedAt:    started,
		Duration:     10 * time.Second,
		Steps: []Step{
			{Seq: 0, Name: flow.StepAcquire, Duration: time.Second},
			{Seq: 1, Name: flow.StepLocate, Duration: 9 * time.Second, Error: res.Steps[1].Error},
			{Seq: 2, Name: flow.StepRelease, Duration: 10 * time.Millisecond},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.Passed())
}

func TestRecord_AssignsID(t *testing.T) {
	s := newTestStore(t)
	res := passedResult("", time.Now())

	require.NoError(t, s.Record(context.Background(), res))
	assert.NotEmpty(t, res.ID)

	got, err := s.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, got.Passed())
	assert.True(t, got.Headless)
	assert.Empty(t, got.ErrorKind)
	assert.Empty(t, got.ErrorMessage)
}

func TestRecord_DuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, passedResult("dup", time.Now())))
	require.Error(t, s.Record(ctx, passedResult("dup", time.Now())))

	// The failed transaction must not leave extra steps behind.
	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 3)
}

func TestGet_ByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Record(ctx, passedResult("abc123-one", now)))
	require.NoError(t, s.Record(ctx, passedResult("abc999-two", now)))

	got, err := s.Get(ctx, "abc1")
	require.NoError(t, err)
	assert.Equal(t, "abc123-one", got.ID)

	_, err = s.Get(ctx, "abc")
	assert.True(t, errors.Is(err, ErrAmbiguousID), "got %v", err)

	_, err = s.Get(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)

	_, err = s.Get(ctx, "")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Record(ctx, passedResult(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)
	assert.Nil(t, runs[0].Steps)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total)

	now := time.Now()
	require.NoError(t, s.Record(ctx, passedResult("p1", now)))
	require.NoError(t, s.Record(ctx, passedResult("p2", now)))
	require.NoError(t, s.Record(ctx, failedResult("f1", now, flow.ErrElementNotFound)))
	require.NoError(t, s.Record(ctx, failedResult("f2", now, flow.ErrNavigationTimeout)))
	require.NoError(t, s.Record(ctx, failedResult("f3", now, flow.ErrNavigationTimeout)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Total)
	assert.Equal(t, int64(2), st.Passed)
	assert.Equal(t, int64(3), st.Failed)
	assert.Equal(t, map[string]int64{
		"element_not_found":  1,
		"navigation_timeout": 2,
	}, st.ByKind)
	assert.Greater(t, st.AvgDurationMs, 0.0)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, passedResult("old", time.Now().Add(-48*time.Hour))))
	require.NoError(t, s.Record(ctx, passedResult("new", time.Now())))

	n, err := s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrRunNotFound)

	var orphanSteps int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM run_steps WHERE run_id = 'old'`).Scan(&orphanSteps))
	assert.Zero(t, orphanSteps)
}
