package model

import (
	"time"

	"github.com/google/uuid"
)

type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time

	Tasks []Task `gorm:"many2many:task_tags"`
}
