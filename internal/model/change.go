package model

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityTask EntityType = "task"
	EntityEdge EntityType = "edge"
)

type ChangeType string

const (
	ChangeCreate           ChangeType = "create"
	ChangeUpdate           ChangeType = "update"
	ChangeBulkUpdate       ChangeType = "bulk_update"
	ChangeDelete           ChangeType = "delete"
	ChangeStatusChange     ChangeType = "status_change"
	ChangeAssign           ChangeType = "assign"
	ChangeDependencyAdd    ChangeType = "dependency_add"
	ChangeDependencyRemove ChangeType = "dependency_remove"
)

// SystemActorID attributes audit entries produced by cascade recomputation
// rather than by a user request.
var SystemActorID = uuid.Nil

// ChangeRecord is one immutable audit entry capturing a single field
// transition. Records are append-only: corrections are new records, never
// edits. Ordering is by OccurredAt with ID as a deterministic tie-break.
type ChangeRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EntityType EntityType `gorm:"type:varchar(10);not null"`
	// EntityID references the subject task; dependency records point at the
	// blocked task so the timeline relevance join treats all records alike.
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Field      string     `gorm:"not null"`
	OldValue   string
	NewValue   string
	ChangeType ChangeType `gorm:"type:varchar(20);not null"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	OccurredAt time.Time  `gorm:"not null;index"`
}

// TableName specifies the table name for ChangeRecord
func (ChangeRecord) TableName() string {
	return "change_records"
}
