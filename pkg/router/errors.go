package router

import (
	"errors"
	"fmt"
)

// NoEligibleInstanceError reports that scoring yielded zero candidates after
// hard disqualification. No plan is persisted when this is returned.
type NoEligibleInstanceError struct {
	TaskID string
	Reason string
}

func (e *NoEligibleInstanceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no eligible instance for task %s: %s", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("no eligible instance for task %s", e.TaskID)
}

// RegistryUnavailableError reports that a provider registry snapshot could
// not be obtained. It is never silently treated as an empty pool.
type RegistryUnavailableError struct {
	Err error
}

func (e *RegistryUnavailableError) Error() string {
	return fmt.Sprintf("provider registry unavailable: %v", e.Err)
}

func (e *RegistryUnavailableError) Unwrap() error { return e.Err }

// InvalidOverrideTargetError reports an override to an instance absent from
// the current registry snapshot. The prior plan remains current.
type InvalidOverrideTargetError struct {
	TaskID     string
	InstanceID string
}

func (e *InvalidOverrideTargetError) Error() string {
	return fmt.Sprintf("override target %q not present in registry snapshot for task %s", e.InstanceID, e.TaskID)
}

// PersistenceError reports a failed store write. A routing decision is not
// final until persisted; callers must retry or fail the task.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNoEligibleInstance reports whether err is a NoEligibleInstanceError.
func IsNoEligibleInstance(err error) bool {
	var target *NoEligibleInstanceError
	return errors.As(err, &target)
}

// IsRegistryUnavailable reports whether err is a RegistryUnavailableError.
func IsRegistryUnavailable(err error) bool {
	var target *RegistryUnavailableError
	return errors.As(err, &target)
}

// IsInvalidOverrideTarget reports whether err is an InvalidOverrideTargetError.
func IsInvalidOverrideTarget(err error) bool {
	var target *InvalidOverrideTargetError
	return errors.As(err, &target)
}

// IsPersistenceFailure reports whether err is a PersistenceError.
func IsPersistenceFailure(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
