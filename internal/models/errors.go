package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a task failure so the wizard can decide whether a
// retry makes sense and what the console should tell the user.
type ErrorKind string

const (
	// ErrKindTransientNetwork - network failure, eligible for user-initiated retry
	ErrKindTransientNetwork ErrorKind = "transient_network"
	// ErrKindTimeout - a bounded network wait expired, retryable
	ErrKindTimeout ErrorKind = "timeout"
	// ErrKindCorruptArtifact - incomplete or corrupt download, partial state was cleaned up
	ErrKindCorruptArtifact ErrorKind = "corrupt_artifact"
	// ErrKindDiskSpace - insufficient disk space, not retryable
	ErrKindDiskSpace ErrorKind = "disk_space"
	// ErrKindRepositoryState - missing ref or broken clone
	ErrKindRepositoryState ErrorKind = "repository_state"
	// ErrKindDeviceUnavailable - the selected device vanished
	ErrKindDeviceUnavailable ErrorKind = "device_unavailable"
	// ErrKindBuild - compiler exited non-zero, carries the log tail
	ErrKindBuild ErrorKind = "build"
	// ErrKindFlash - uploader exited non-zero, carries the log tail
	ErrKindFlash ErrorKind = "flash"
	// ErrKindConfigIncomplete - precondition violation, guarded at the stage boundary
	ErrKindConfigIncomplete ErrorKind = "configuration_incomplete"
	// ErrKindCancelled - user-initiated cancellation, not a failure
	ErrKindCancelled ErrorKind = "cancelled"
	// ErrKindInternal - anything that escaped classification
	ErrKindInternal ErrorKind = "internal"
)

// TaskError is the structured error every failed task surfaces to the
// wizard and, through it, to the console.
type TaskError struct {
	Kind ErrorKind
	// Step names the operation that failed, e.g. "download toolchain".
	Step string
	// LogTail holds the last captured tool output lines for build and
	// flash failures.
	LogTail []string
	Err     error
}

func NewTaskError(kind ErrorKind, step string, err error) *TaskError {
	return &TaskError{Kind: kind, Step: step, Err: err}
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the wizard should offer the user a retry of
// the failed step. Disk exhaustion and precondition violations are not
// fixed by trying again; cancellation is not a failure at all.
func (e *TaskError) Retryable() bool {
	switch e.Kind {
	case ErrKindDiskSpace, ErrKindConfigIncomplete, ErrKindCancelled:
		return false
	default:
		return true
	}
}

// AsTaskError unwraps err to a *TaskError if one is in the chain.
func AsTaskError(err error) (*TaskError, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
