package model

import (
	"time"

	"github.com/google/uuid"
)

// DependencyEdge is a directed blocker -> blocked relation: the blocker must
// reach done (or cancelled, depending on policy) before the blocked task can
// leave the blocked state. Edges are never edited in place; changes are
// delete + recreate.
type DependencyEdge struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BlockerID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_edge_pair"`
	BlockedID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_edge_pair"`
	CreatedAt time.Time

	Blocker *Task `gorm:"foreignKey:BlockerID"`
	Blocked *Task `gorm:"foreignKey:BlockedID"`
}

// TableName specifies the table name for DependencyEdge
func (DependencyEdge) TableName() string {
	return "task_dependencies"
}
