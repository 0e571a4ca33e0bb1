package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type scriptedExpirer struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   int
}

func (e *scriptedExpirer) ExpireIntents(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return 0, e.err
	}
	if len(e.results) == 0 {
		return 0, nil
	}
	n := e.results[0]
	e.results = e.results[1:]
	return n, nil
}

func (e *scriptedExpirer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestSweepDrainsBacklog(t *testing.T) {
	exp := &scriptedExpirer{results: []int{100, 100, 7}}
	s := NewIntentSweeper(exp, time.Hour, zap.NewNop())

	s.sweep(context.Background())
	assert.Equal(t, 4, exp.callCount())
}

func TestSweepStopsOnError(t *testing.T) {
	exp := &scriptedExpirer{err: errors.New("connection refused")}
	s := NewIntentSweeper(exp, time.Hour, zap.NewNop())

	s.sweep(context.Background())
	assert.Equal(t, 1, exp.callCount())
}

func TestSweeperRunsOnTickAndStops(t *testing.T) {
	exp := &scriptedExpirer{}
	s := NewIntentSweeper(exp, 5*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return exp.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	s := NewIntentSweeper(&scriptedExpirer{}, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
