package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/services"
)

type countingProcessor struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (p *countingProcessor) ProcessDue(ctx context.Context, now time.Time) (services.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, now)
	if p.err != nil {
		return services.ProcessResult{}, p.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return services.ProcessResult{}, errors.New("pass without deadline")
	}
	return services.ProcessResult{Checked: 2, Fired: 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&countingProcessor{}, SchedulerConfig{Spec: "every day", Logger: quietLogger()})
	assert.Error(t, err)

	_, err = NewScheduler(nil, SchedulerConfig{Spec: "5 0 * * *"})
	assert.Error(t, err)
}

func TestScheduler_RunOnce(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)
	proc := &countingProcessor{}
	s, err := NewScheduler(proc, SchedulerConfig{
		Spec:   "5 0 * * *",
		Now:    func() time.Time { return fixed },
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fired)
	assert.Equal(t, []time.Time{fixed}, proc.calls)
	assert.Equal(t, 1, s.Passes())

	proc.err = errors.New("store locked")
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "store locked")
	assert.Equal(t, 2, s.Passes())
}

func TestScheduler_NextRun(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s, err := NewScheduler(&countingProcessor{}, SchedulerConfig{
		Spec:     "5 0 * * *",
		Location: time.UTC,
		Now:      func() time.Time { return fixed },
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 16, 0, 5, 0, 0, time.UTC), s.NextRun())
}

func TestScheduler_StartRunsCatchUpPass(t *testing.T) {
	proc := &countingProcessor{}
	s, err := NewScheduler(proc, SchedulerConfig{Spec: "0 3 1 1 *", Logger: quietLogger()})
	require.NoError(t, err)

	s.Start(context.Background())
	<-s.Stop().Done()

	assert.Equal(t, 1, s.Passes())
}

func TestScheduler_TickSkippedAfterCancel(t *testing.T) {
	proc := &countingProcessor{}
	s, err := NewScheduler(proc, SchedulerConfig{Spec: "0 3 1 1 *", Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.tick()
	<-s.Stop().Done()

	assert.Equal(t, 1, s.Passes())
}
