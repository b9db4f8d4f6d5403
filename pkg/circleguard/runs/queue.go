// Package runs queues groups of analysis checks and executes them one at a
// time, in submission order, with per-run cancellation.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/logger"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrClosed      = errors.New("run queue closed")
	// ErrInvalidArguments is returned by an Executor when the checks cannot
	// be run as given. The run ends in StatusInvalidArguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// CheckKind names what a check looks for.
type CheckKind string

const (
	CheckSteal      CheckKind = "steal"
	CheckRelax      CheckKind = "relax"
	CheckCorrection CheckKind = "correction"
	CheckVisualize  CheckKind = "visualize"
)

// Check is one unit of analysis inside a run. Which fields matter depends
// on Kind and on the executor.
type Check struct {
	Kind      CheckKind
	BeatmapID int
	UserID    int
	// Mods restricts the replays considered; nil means any mods.
	Mods        *mods.Mod
	ReplayPaths []string
	// Threshold is the similarity, UR or angle limit for the check.
	Threshold float64
}

// Run is a group of checks submitted together. ID is assigned at Submit
// and never changes.
type Run struct {
	ID        int
	Checks    []Check
	Submitted time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
	err    error
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the executor error for runs that ended in StatusError or
// StatusInvalidArguments.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Context is canceled when the run is canceled or the queue closes.
func (r *Run) Context() context.Context { return r.ctx }

// setStatus moves the run to s unless it already reached a terminal state.
func (r *Run) setStatus(s Status, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.IsFinished() {
		return false
	}
	r.status = s
	r.err = err
	return true
}

// Update is sent on the queue's Updates channel on every status change.
type Update struct {
	RunID  int
	Status Status
}

// Executor runs every check in run. It reports intermediate states through
// report and must return promptly once ctx is done.
type Executor func(ctx context.Context, run *Run, report func(Status)) error

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type Queue struct {
	exec Executor
	log  Logger

	mu      sync.Mutex
	nextID  int
	runs    map[int]*Run
	pending []*Run
	closed  bool
	wake    chan struct{}

	emitMu        sync.Mutex
	updates       chan Update
	updatesClosed bool

	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}
}

// UpdateBuffer is the capacity of the Updates channel. Updates that do not
// fit are dropped; Status stays authoritative.
const UpdateBuffer = 256

// NewQueue starts the worker. Close must be called to stop it.
func NewQueue(exec Executor, log Logger) *Queue {
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, stop := context.WithCancel(context.Background())
	q := &Queue{
		exec:    exec,
		log:     log,
		runs:    make(map[int]*Run),
		wake:    make(chan struct{}, 1),
		updates: make(chan Update, UpdateBuffer),
		ctx:     ctx,
		stop:    stop,
		done:    make(chan struct{}),
	}
	go q.worker()
	return q
}

// Submit enqueues checks as a new run.
func (q *Queue) Submit(checks []Check) (*Run, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(q.ctx)
	r := &Run{
		ID:        q.nextID,
		Checks:    checks,
		Submitted: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusQueued,
	}
	q.nextID++
	q.runs[r.ID] = r
	q.pending = append(q.pending, r)
	q.log.Debugf("run %d queued with %d checks", r.ID, len(checks))
	q.emit(r.ID, StatusQueued)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return r, nil
}

// Cancel stops run id. A queued run is marked canceled immediately and will
// never execute; a running one is canceled through its context.
func (q *Queue) Cancel(id int) error {
	q.mu.Lock()
	r, ok := q.runs[id]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	q.cancelRun(r)
	return nil
}

func (q *Queue) CancelAll() {
	q.mu.Lock()
	all := make([]*Run, 0, len(q.runs))
	for _, r := range q.runs {
		all = append(all, r)
	}
	q.mu.Unlock()
	for _, r := range all {
		q.cancelRun(r)
	}
}

func (q *Queue) cancelRun(r *Run) {
	r.cancel()
	if r.Status() == StatusQueued && r.setStatus(StatusCanceled, nil) {
		q.log.Infof("run %d canceled before start", r.ID)
		q.emit(r.ID, StatusCanceled)
	}
}

func (q *Queue) Status(id int) (Status, error) {
	q.mu.Lock()
	r, ok := q.runs[id]
	q.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return r.Status(), nil
}

// Get returns run id, including its final error once it has finished.
func (q *Queue) Get(id int) (*Run, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return r, nil
}

// Forget drops a finished run from the queue's bookkeeping.
func (q *Queue) Forget(id int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.runs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if !r.Status().IsFinished() {
		return fmt.Errorf("run %d is still %s", id, r.Status())
	}
	delete(q.runs, id)
	return nil
}

// Updates delivers status changes. It is closed by Close.
func (q *Queue) Updates() <-chan Update { return q.updates }

// Close cancels every run, waits for the worker to exit and closes Updates.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.CancelAll()
	q.stop()
	<-q.done

	q.emitMu.Lock()
	q.updatesClosed = true
	close(q.updates)
	q.emitMu.Unlock()
}

func (q *Queue) emit(id int, s Status) {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	if q.updatesClosed {
		return
	}
	select {
	case q.updates <- Update{RunID: id, Status: s}:
	default:
		q.log.Warnf("update channel full, dropped %s for run %d", s, id)
	}
}

func (q *Queue) next() *Run {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	r := q.pending[0]
	q.pending = q.pending[1:]
	return r
}

func (q *Queue) worker() {
	defer close(q.done)
	for {
		r := q.next()
		if r == nil {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		q.execute(r)
	}
}

func (q *Queue) execute(r *Run) {
	if r.ctx.Err() != nil {
		q.log.Debugf("skipping canceled run %d", r.ID)
		return
	}
	if !r.setStatus(StatusLoading, nil) {
		return
	}
	q.emit(r.ID, StatusLoading)
	q.log.Infof("run %d started", r.ID)

	report := func(s Status) {
		if s.IsFinished() {
			return
		}
		if r.setStatus(s, nil) {
			q.emit(r.ID, s)
		}
	}

	err := q.exec(r.ctx, r, report)

	var final Status
	switch {
	case r.ctx.Err() != nil:
		final, err = StatusCanceled, nil
	case errors.Is(err, ErrInvalidArguments):
		final = StatusInvalidArguments
	case err != nil:
		final = StatusError
	default:
		final = StatusFinished
	}
	r.cancel()
	if r.setStatus(final, err) {
		q.emit(r.ID, final)
	}
	if err != nil {
		q.log.Warnf("run %d ended with %s: %v", r.ID, final, err)
	} else {
		q.log.Infof("run %d %s", r.ID, final)
	}
}
