package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/pkg/scheduler"
)

// ErrTaskRunning is returned by Submit while a previous task has not
// reached a terminal status yet.
var ErrTaskRunning = errors.New("a task is already running")

// maxLogLines caps the retained tool output per task. Older lines are
// dropped from the front so the tail stays available for error reports.
const maxLogLines = 200

// ProgressReporter lets an operation publish progress and log lines
// while it runs. Implementations are safe for use from the worker
// goroutine only.
type ProgressReporter interface {
	// Progress reports completion in percent. Values below the last
	// reported value are ignored.
	Progress(percent int)
	// Indeterminate switches the task to a busy indicator.
	Indeterminate()
	// Log appends one line of tool output.
	Log(line string)
}

// Operation is a cancellable unit of provisioning work.
type Operation func(ctx context.Context, rep ProgressReporter) (any, error)

// TaskRunner executes at most one operation at a time on the scheduler
// and exposes its state as immutable snapshots. Terminal status is
// always visible in a snapshot before the underlying future resolves.
type TaskRunner struct {
	scheduler *scheduler.Scheduler

	mu      sync.Mutex
	current *taskState
}

type taskState struct {
	id       uuid.UUID
	kind     models.TaskKind
	status   models.TaskStatus
	progress int
	log      []string
	result   any
	err      *models.TaskError
	future   *models.Future[models.Result[any]]
}

func NewTaskRunner(sched *scheduler.Scheduler) *TaskRunner {
	return &TaskRunner{scheduler: sched}
}

// Submit queues op as the current task. It fails with ErrTaskRunning,
// without side effects, while another task is not yet terminal.
func (r *TaskRunner) Submit(kind models.TaskKind, op Operation) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && !r.current.status.IsTerminal() {
		return uuid.Nil, ErrTaskRunning
	}

	state := &taskState{
		id:     uuid.New(),
		kind:   kind,
		status: models.TaskStatusPending,
	}
	r.current = state

	rep := &taskReporter{runner: r, state: state}
	state.future = r.scheduler.AddWork(func(ctx context.Context) (any, error) {
		r.setRunning(state)
		value, err := op(ctx, rep)
		// The terminal status must be observable before the future
		// resolves, so consumers polling snapshots never see a
		// resolved future behind a still-running task.
		r.finish(state, value, err)
		return value, err
	})

	// A shut-down scheduler resolves the future without running the
	// wrapper; fold that refusal into the task state here.
	if result, ok := state.future.Poll(); ok {
		r.finishLocked(state, result.Value, result.Err)
	}

	zap.S().Infow("task submitted", "task", state.id, "kind", kind)
	return state.id, nil
}

func (r *TaskRunner) setRunning(state *taskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.status == models.TaskStatusPending {
		state.status = models.TaskStatusRunning
	}
}

func (r *TaskRunner) finish(state *taskState, value any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked(state, value, err)
}

func (r *TaskRunner) finishLocked(state *taskState, value any, err error) {
	if state.status.IsTerminal() {
		return
	}
	switch {
	case err == nil:
		state.status = models.TaskStatusSucceeded
		state.result = value
		state.progress = 100
	case errors.Is(err, context.Canceled):
		state.status = models.TaskStatusCancelled
		state.err = models.NewTaskError(models.ErrKindCancelled, string(state.kind), err)
	default:
		state.status = models.TaskStatusFailed
		if te, ok := models.AsTaskError(err); ok {
			if len(te.LogTail) == 0 {
				te.LogTail = append([]string(nil), state.log...)
			}
			state.err = te
		} else {
			state.err = models.NewTaskError(models.ErrKindInternal, string(state.kind), err)
		}
	}
	zap.S().Infow("task finished", "task", state.id, "kind", state.kind, "status", state.status)
}

// Cancel requests cooperative cancellation of the current task. It is a
// no-op when no task is running.
func (r *TaskRunner) Cancel() {
	r.mu.Lock()
	state := r.current
	r.mu.Unlock()

	if state == nil || state.status.IsTerminal() {
		return
	}
	zap.S().Infow("task cancel requested", "task", state.id, "kind", state.kind)
	state.future.Stop()
}

// Snapshot returns a point-in-time copy of the current task, or nil when
// nothing has been submitted yet.
func (r *TaskRunner) Snapshot() *models.TaskSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil
	}
	state := r.current
	return &models.TaskSnapshot{
		ID:       state.id,
		Kind:     state.kind,
		Status:   state.status,
		Progress: state.progress,
		Log:      append([]string(nil), state.log...),
		Result:   state.result,
		Error:    state.err,
	}
}

// Idle reports whether a new task may be submitted.
func (r *TaskRunner) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current == nil || r.current.status.IsTerminal()
}

type taskReporter struct {
	runner *TaskRunner
	state  *taskState
}

func (t *taskReporter) Progress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.runner.mu.Lock()
	defer t.runner.mu.Unlock()
	// Progress never moves backwards, except away from the busy
	// indicator once the operation becomes measurable again.
	if t.state.progress == models.ProgressIndeterminate || percent > t.state.progress {
		t.state.progress = percent
	}
}

func (t *taskReporter) Indeterminate() {
	t.runner.mu.Lock()
	defer t.runner.mu.Unlock()
	t.state.progress = models.ProgressIndeterminate
}

func (t *taskReporter) Log(line string) {
	t.runner.mu.Lock()
	defer t.runner.mu.Unlock()
	t.state.log = append(t.state.log, line)
	if over := len(t.state.log) - maxLogLines; over > 0 {
		t.state.log = t.state.log[over:]
	}
}

// Logf is a convenience for operations that format their own lines.
func Logf(rep ProgressReporter, format string, args ...any) {
	rep.Log(fmt.Sprintf(format, args...))
}
