package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func manualTicker(s *Scheduler) chan time.Time {
	ch := make(chan time.Time)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
	return ch
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRun_FiresImmediatelyThenOnTick(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func(context.Context) { calls.Add(1) })
	ticks := manualTicker(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return calls.Load() == 1 })
	ticks <- time.Now()
	ticks <- time.Now()
	waitFor(t, func() bool { return calls.Load() == 3 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRun_WaitsForInFlightTrigger(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := New(time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	manualTicker(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	<-done
	if !finished.Load() {
		t.Error("Run returned before the running trigger finished")
	}
}

func TestRun_TriggerReceivesCancellation(t *testing.T) {
	var sawCancel atomic.Bool
	s := New(time.Hour, func(ctx context.Context) {
		<-ctx.Done()
		sawCancel.Store(true)
	})
	manualTicker(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	<-done

	if !sawCancel.Load() {
		t.Error("trigger should observe the cancelled context")
	}
}
