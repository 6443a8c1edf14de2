package lifecycle

import (
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
)

// EmployeeStatus is the lifecycle state of an employee record.
type EmployeeStatus string

const (
	EmployeePending    EmployeeStatus = "pending"
	EmployeeActive     EmployeeStatus = "active"
	EmployeeOnLeave    EmployeeStatus = "on_leave"
	EmployeeTerminated EmployeeStatus = "terminated"
)

// TaskStatus is the lifecycle state of a single case task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskCompleted  TaskStatus = "completed"
)

// Employee transitions are externally driven: activation only happens when an
// onboarding case completes, termination only when an offboarding case
// completes. Terminated is absorbing.
var employeeTransitions = map[EmployeeStatus][]EmployeeStatus{
	EmployeePending:    {EmployeeActive},
	EmployeeActive:     {EmployeeOnLeave, EmployeeTerminated},
	EmployeeOnLeave:    {EmployeeActive, EmployeeTerminated},
	EmployeeTerminated: {},
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskNotStarted: {TaskInProgress, TaskCompleted, TaskBlocked},
	TaskInProgress: {TaskCompleted, TaskBlocked, TaskNotStarted},
	TaskCompleted:  {TaskInProgress},
	TaskBlocked:    {TaskNotStarted, TaskInProgress},
}

// ValidEmployeeStatus reports whether s is a known employee status.
func ValidEmployeeStatus(s EmployeeStatus) bool {
	_, ok := employeeTransitions[s]
	return ok
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	_, ok := taskTransitions[s]
	return ok
}

// CheckEmployeeTransition validates from → to against the employee transition
// table. Employee statuses never self-loop: every change is driven by an
// external completion, so "already there" is a conflict, not a no-op.
func CheckEmployeeTransition(from, to EmployeeStatus) error {
	if !ValidEmployeeStatus(to) {
		return apperrors.Validationf("unknown employee status %q", to)
	}
	if !ValidEmployeeStatus(from) {
		return apperrors.Validationf("unknown employee status %q", from)
	}
	for _, next := range employeeTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperrors.Conflictf("invalid employee transition %s -> %s", from, to)
}

// CheckTaskTransition validates from → to against the task transition table.
// Self-transitions are allowed.
func CheckTaskTransition(from, to TaskStatus) error {
	if !ValidTaskStatus(to) {
		return apperrors.Validationf("unknown task status %q", to)
	}
	if !ValidTaskStatus(from) {
		return apperrors.Validationf("unknown task status %q", from)
	}
	if from == to {
		return nil
	}
	for _, next := range taskTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperrors.Conflictf("invalid task transition %s -> %s", from, to)
}
