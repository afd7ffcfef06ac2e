package models

import "github.com/google/uuid"

// TaskKind identifies the background operation a task executes.
type TaskKind string

const (
	TaskKindEnsureToolchain TaskKind = "ensure_toolchain"
	TaskKindSyncRepository  TaskKind = "sync_repository"
	TaskKindCheckout        TaskKind = "checkout"
	TaskKindCompile         TaskKind = "compile"
	TaskKindUpload          TaskKind = "upload"
)

// TaskStatus is the lifecycle state of a task. A task reaches exactly one
// terminal status.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressIndeterminate marks a task whose true progress cannot be
// measured (e.g. compiler output); the console shows a busy indicator
// and the raw log lines instead.
const ProgressIndeterminate = -1

// TaskSnapshot is an immutable point-in-time view of a task, safe to hand
// across the presentation boundary.
type TaskSnapshot struct {
	ID       uuid.UUID
	Kind     TaskKind
	Status   TaskStatus
	Progress int
	Log      []string
	Result   any
	Error    *TaskError
}
