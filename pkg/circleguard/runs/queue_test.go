package runs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/circleguard/pkg/logger"
)

func quiet() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard
	return logger.New(cfg)
}

// waitStatus polls until run id reaches want or the deadline passes.
func waitStatus(t *testing.T, q *Queue, id int, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := q.Status(id); s == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s, _ := q.Status(id)
	t.Fatalf("run %d status = %s, want %s", id, s, want)
}

func TestStatusHelpers(t *testing.T) {
	for _, s := range []Status{StatusLoading, StatusRatelimited, StatusInvestigating} {
		if !s.IsActive() || s.IsFinished() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []Status{StatusFinished, StatusCanceled, StatusError, StatusInvalidArguments} {
		if s.IsActive() || !s.IsFinished() {
			t.Errorf("%s should be finished", s)
		}
	}
	if StatusQueued.IsActive() || StatusQueued.IsFinished() {
		t.Error("queued is neither active nor finished")
	}
}

func TestRunsExecuteInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		report(StatusInvestigating)
		mu.Lock()
		order = append(order, r.ID)
		mu.Unlock()
		return nil
	}
	q := NewQueue(exec, quiet())
	defer q.Close()

	for i := 0; i < 5; i++ {
		r, err := q.Submit([]Check{{Kind: CheckSteal, BeatmapID: 221777}})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if r.ID != i {
			t.Errorf("run id = %d, want %d", r.ID, i)
		}
	}
	waitStatus(t, q, 4, StatusFinished)

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		if id != i {
			t.Fatalf("execution order %v", order)
		}
	}
}

func TestUpdatesSequence(t *testing.T) {
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		report(StatusInvestigating)
		return nil
	}
	q := NewQueue(exec, quiet())
	r, _ := q.Submit(nil)
	waitStatus(t, q, r.ID, StatusFinished)
	q.Close()

	var got []Status
	for u := range q.Updates() {
		if u.RunID != r.ID {
			t.Errorf("unexpected run id %d", u.RunID)
		}
		got = append(got, u.Status)
	}
	want := []Status{StatusQueued, StatusLoading, StatusInvestigating, StatusFinished}
	if len(got) != len(want) {
		t.Fatalf("updates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCancelQueuedRunNeverExecutes(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	executed := map[int]bool{}
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		mu.Lock()
		executed[r.ID] = true
		mu.Unlock()
		if r.ID == 0 {
			<-release
		}
		return nil
	}
	q := NewQueue(exec, quiet())
	defer q.Close()

	first, _ := q.Submit(nil)
	second, _ := q.Submit(nil)
	waitStatus(t, q, first.ID, StatusLoading)

	if err := q.Cancel(second.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s := second.Status(); s != StatusCanceled {
		t.Errorf("queued run status after cancel = %s", s)
	}
	close(release)
	waitStatus(t, q, first.ID, StatusFinished)

	// give the worker a chance to reach the canceled run
	third, _ := q.Submit(nil)
	waitStatus(t, q, third.ID, StatusFinished)

	mu.Lock()
	defer mu.Unlock()
	if executed[second.ID] {
		t.Error("canceled run was executed")
	}
}

func TestCancelRunningRun(t *testing.T) {
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		report(StatusInvestigating)
		<-ctx.Done()
		return ctx.Err()
	}
	q := NewQueue(exec, quiet())
	defer q.Close()

	r, _ := q.Submit(nil)
	waitStatus(t, q, r.ID, StatusInvestigating)
	if err := q.Cancel(r.ID); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, q, r.ID, StatusCanceled)
	if r.Err() != nil {
		t.Errorf("canceled run should carry no error, got %v", r.Err())
	}
	if r.ID != 0 {
		t.Errorf("run id changed to %d", r.ID)
	}
}

func TestExecutorErrors(t *testing.T) {
	boom := errors.New("boom")
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		if r.ID == 0 {
			return boom
		}
		return ErrInvalidArguments
	}
	q := NewQueue(exec, quiet())
	defer q.Close()

	a, _ := q.Submit(nil)
	b, _ := q.Submit(nil)
	waitStatus(t, q, a.ID, StatusError)
	waitStatus(t, q, b.ID, StatusInvalidArguments)

	if !errors.Is(a.Err(), boom) {
		t.Errorf("run error = %v, want boom", a.Err())
	}
	if !errors.Is(b.Err(), ErrInvalidArguments) {
		t.Errorf("run error = %v, want ErrInvalidArguments", b.Err())
	}
}

func TestUnknownRun(t *testing.T) {
	q := NewQueue(func(context.Context, *Run, func(Status)) error { return nil }, quiet())
	defer q.Close()

	if err := q.Cancel(42); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel unknown: %v", err)
	}
	if _, err := q.Status(42); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Status unknown: %v", err)
	}
}

func TestForget(t *testing.T) {
	block := make(chan struct{})
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		<-block
		return nil
	}
	q := NewQueue(exec, quiet())
	defer q.Close()

	r, _ := q.Submit(nil)
	if err := q.Forget(r.ID); err == nil {
		t.Error("expected Forget to refuse an unfinished run")
	}
	close(block)
	waitStatus(t, q, r.ID, StatusFinished)
	if err := q.Forget(r.ID); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, err := q.Get(r.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("run still present after Forget: %v", err)
	}
}

func TestCloseCancelsAndRejects(t *testing.T) {
	started := make(chan struct{})
	exec := func(ctx context.Context, r *Run, report func(Status)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	q := NewQueue(exec, quiet())
	running, _ := q.Submit(nil)
	queued, _ := q.Submit(nil)
	<-started

	q.Close()

	if s := running.Status(); s != StatusCanceled {
		t.Errorf("running run = %s after Close", s)
	}
	if s := queued.Status(); s != StatusCanceled {
		t.Errorf("queued run = %s after Close", s)
	}
	if _, err := q.Submit(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close: %v", err)
	}
	q.Close()
}
