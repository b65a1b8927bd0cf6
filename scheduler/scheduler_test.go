package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"

	"ai-exchange/observability"
)

func TestEvery_InvalidInterval(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	for _, interval := range []time.Duration{0, -time.Second, 500 * time.Millisecond} {
		if _, err := s.Every(interval, TaskFunc("noop", func(context.Context) error { return nil })); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Every(%s) error = %v, want ErrInvalidInterval", interval, err)
		}
	}
}

func TestEvery_RunsAndCancels(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	handle, err := s.Every(time.Second, TaskFunc("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("task never ran")
	}

	handle.Cancel()
	handle.Cancel()
	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	if runs.Load() > after+1 {
		t.Errorf("task kept running after cancel: %d -> %d", after, runs.Load())
	}
	if len(s.cron.Entries()) != 0 {
		t.Errorf("expected no entries, got %d", len(s.cron.Entries()))
	}
}

func TestSchedule_SkipsOverlappingRuns(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32
	task := TaskFunc("slow", func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	wrapped := cron.NewChain(jobWrappers(NewCronLogger(s.log))...).Then(s.job(task))
	done := make(chan struct{})
	go func() {
		wrapped.Run()
		close(done)
	}()
	<-started

	// a second tick while the first is in flight returns immediately
	wrapped.Run()
	close(release)
	<-done

	if runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runs.Load())
	}
}

func TestSchedule_RecoversPanics(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	task := TaskFunc("boom", func(context.Context) error {
		panic("task exploded")
	})
	wrapped := cron.NewChain(jobWrappers(NewCronLogger(s.log))...).Then(s.job(task))

	wrapped.Run()
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	finished := make(chan error, 1)
	task := TaskFunc("blocking", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	})

	if _, err := s.Every(time.Second, task); err != nil {
		t.Fatal(err)
	}
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task never started")
	}

	s.Stop()
	select {
	case err := <-finished:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	default:
		t.Error("Stop returned before the running task finished")
	}
	s.Stop()
}

func TestRunNow(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := New(metrics)
	defer s.Stop()

	wantErr := errors.New("feed down")
	err := s.RunNow(context.Background(), TaskFunc("market-refresh", func(context.Context) error {
		return wantErr
	}))
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
	if got := testutil.CollectAndCount(metrics.RefreshDuration); got != 1 {
		t.Errorf("expected one refresh series, got %d", got)
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewCronLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Info("skip", "job", "refresh")
	l.Error(errors.New("boom"), "panic", "stack", "trace")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG msg=skip job=refresh") {
		t.Errorf("info should log at debug, got %s", out)
	}
	if !strings.Contains(out, "level=ERROR msg=panic stack=trace error=boom") {
		t.Errorf("unexpected error log %s", out)
	}
}
