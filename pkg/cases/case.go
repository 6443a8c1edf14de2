package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
)

// Kind distinguishes the two workflow case types.
type Kind string

const (
	KindOnboarding  Kind = "onboarding"
	KindOffboarding Kind = "offboarding"
)

// Status of a case is always derived from its tasks, never set directly.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Task belongs to exactly one case and has no storage key of its own.
type Task struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Status        lifecycle.TaskStatus `json:"status"`
	DueDate       time.Time            `json:"due_date"`
	CompletedDate *time.Time           `json:"completed_date,omitempty"`
}

// Case is an onboarding or offboarding workflow instance owning its tasks.
type Case struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"_schemaVersion"`
	Kind          Kind      `json:"kind"`
	EmployeeID    string    `json:"employee_id"`
	Status        Status    `json:"status"`
	Tasks         []Task    `json:"tasks"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TaskTemplate seeds the task list when a case is created.
type TaskTemplate struct {
	Title string
	DueIn time.Duration
}

// New builds a case of the given kind with one NotStarted task per template.
func New(kind Kind, employeeID string, templates []TaskTemplate, now time.Time) *Case {
	c := &Case{
		ID:            uuid.New().String(),
		SchemaVersion: 1,
		Kind:          kind,
		EmployeeID:    employeeID,
		Status:        StatusNotStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, t := range templates {
		c.Tasks = append(c.Tasks, Task{
			ID:      uuid.New().String(),
			Title:   t.Title,
			Status:  lifecycle.TaskNotStarted,
			DueDate: now.Add(t.DueIn),
		})
	}
	return c
}

// CompletionPercentage is 100 × completed / total, 0 for an empty task list.
func (c *Case) CompletionPercentage() float64 {
	if len(c.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range c.Tasks {
		if t.Status == lifecycle.TaskCompleted {
			completed++
		}
	}
	return 100 * float64(completed) / float64(len(c.Tasks))
}

// Recompute derives the case status from its tasks. It returns true when the
// case transitioned to Completed during this call, which is the caller's cue
// to emit the matching lifecycle event.
func (c *Case) Recompute() bool {
	prev := c.Status
	c.Status = c.deriveStatus()
	return c.Status == StatusCompleted && prev != StatusCompleted
}

func (c *Case) deriveStatus() Status {
	if len(c.Tasks) == 0 {
		return StatusNotStarted
	}
	completed := 0
	touched := 0
	for _, t := range c.Tasks {
		if t.Status == lifecycle.TaskCompleted {
			completed++
		}
		if t.Status != lifecycle.TaskNotStarted {
			touched++
		}
	}
	switch {
	case completed == len(c.Tasks):
		return StatusCompleted
	case touched > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// TransitionTask moves the task with the given id to a new status, validating
// against the task transition table and keeping completedDate in lock-step:
// entering Completed sets it if unset, leaving Completed clears it. The task
// and case are only mutated when the transition is legal.
func (c *Case) TransitionTask(taskID string, to lifecycle.TaskStatus, now time.Time) error {
	idx := -1
	for i := range c.Tasks {
		if c.Tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.NotFoundf("task %s not found in case %s", taskID, c.ID)
	}

	task := &c.Tasks[idx]
	if err := lifecycle.CheckTaskTransition(task.Status, to); err != nil {
		return err
	}

	from := task.Status
	task.Status = to
	if to == lifecycle.TaskCompleted {
		if task.CompletedDate == nil {
			task.CompletedDate = &now
		}
	} else if from == lifecycle.TaskCompleted {
		task.CompletedDate = nil
	}

	c.UpdatedAt = now
	return nil
}
