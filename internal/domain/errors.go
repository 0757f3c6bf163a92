package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business-level errors that can occur in the system.
// These errors are used across layers to communicate specific failure conditions.
var (
	// Instance errors
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrInstanceBusy        = errors.New("instance busy: another backup or restore is in progress")

	// Volume errors
	ErrVolumeNotFound  = errors.New("data volume not found")
	ErrAmbiguousVolume = errors.New("more than one mount matches the data path")

	// Workflow preconditions
	ErrConfirmationRequired = errors.New("destructive action not confirmed")
	ErrArtifactNotFound     = errors.New("backup artifact not found")
	ErrInvalidBackupDir     = errors.New("invalid backup directory")

	// Helper session errors
	ErrSessionProvision = errors.New("failed to provision helper session")
	ErrCommandFailed    = errors.New("command failed")

	// Workflow command errors
	ErrDumpFailed          = errors.New("dump failed")
	ErrLoadFailed          = errors.New("load failed")
	ErrPermissionFixFailed = errors.New("permission fix failed")
	ErrAuditAppendFailed   = errors.New("audit append failed")
)

// CommandError describes a command that ran inside a helper session and
// exited with a nonzero status.
type CommandError struct {
	Step     string
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %q exited with code %d", e.Step, strings.Join(e.Command, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Unwrap makes errors.Is(err, ErrCommandFailed) hold for every CommandError.
func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// StepError records which workflow step failed.
type StepError struct {
	Step WorkflowStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the workflow step recorded in err, if any.
func FailedStep(err error) (WorkflowStep, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
