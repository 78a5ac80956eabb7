package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is a task lifecycle state. StatusBlocked is derived from the
// dependency graph and is never accepted from clients.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further client transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Task struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title       string    `gorm:"not null"`
	Description string
	// Status holds the client-set state only. The blocking overlay lives in
	// Blocked; cascade logic never writes this column.
	Status     Status     `gorm:"type:varchar(20);not null;default:'open';index"`
	Blocked    bool       `gorm:"not null;default:false"`
	Priority   Priority   `gorm:"type:varchar(20);not null;default:'medium';index"`
	AssigneeID *uuid.UUID `gorm:"type:uuid;index"`
	CreatorID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	DueAt      *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Assignee *User `gorm:"foreignKey:AssigneeID"`
	Creator  *User `gorm:"foreignKey:CreatorID"`
	Tags     []Tag `gorm:"many2many:task_tags"`
}

// EffectiveStatus is the externally observable status: the derived blocking
// overlay wins over the client-set state.
func (t *Task) EffectiveStatus() Status {
	if t.Blocked {
		return StatusBlocked
	}
	return t.Status
}
