package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/pipeline"
)

type fakeSweeper struct {
	results []pipeline.Result
	err     error
	calls   int
	opts    []pipeline.SweepOptions
}

func (f *fakeSweeper) SweepPending(ctx context.Context, opts pipeline.SweepOptions) ([]pipeline.Result, error) {
	f.calls++
	f.opts = append(f.opts, opts)
	return f.results, f.err
}

func TestSchedulerRestart(t *testing.T) {
	sched := NewScheduler(&config.SchedulerConfig{IntervalMinutes: 60}, &fakeSweeper{})

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start())
	assert.False(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.True(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	require.NotNil(t, sched.ctx)
	assert.NoError(t, sched.ctx.Err(), "context should be active after restart")
	assert.Len(t, sched.cron.Entries(), 1)
	require.NoError(t, sched.Stop())
}

func TestSchedulerRejectsBadInterval(t *testing.T) {
	sched := NewScheduler(&config.SchedulerConfig{}, &fakeSweeper{})
	assert.Error(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

func TestRunOnceSummarizes(t *testing.T) {
	sweeper := &fakeSweeper{results: []pipeline.Result{
		{Row: 2, Outcome: pipeline.OutcomeSent},
		{Row: 3, Outcome: pipeline.OutcomeSent},
		{Row: 4, Outcome: pipeline.OutcomeRateLimited},
	}}
	sched := NewScheduler(&config.SchedulerConfig{IntervalMinutes: 5}, sweeper)
	assert.Nil(t, sched.LastRun())

	summary, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Outcomes[pipeline.OutcomeSent])
	assert.Equal(t, 1, summary.Outcomes[pipeline.OutcomeRateLimited])
	assert.Empty(t, summary.Error)
	assert.Same(t, summary, sched.LastRun())

	sweeper.err = errors.New("sheet unavailable")
	sweeper.results = nil
	summary, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sheet unavailable", summary.Error)
	assert.Equal(t, 2, sweeper.calls)
	for _, o := range sweeper.opts {
		assert.False(t, o.RetryFailed, "scheduled sweeps must not retry failed rows")
	}
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	sched := NewScheduler(&config.SchedulerConfig{IntervalMinutes: 5}, &fakeSweeper{})
	sched.runMu.Lock()
	_, err := sched.RunOnce(context.Background())
	sched.runMu.Unlock()
	assert.Error(t, err)
}
