package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
	"tasktrack/internal/repository"
)

// Change describes one logically atomic field transition to be audited.
type Change struct {
	EntityType model.EntityType
	EntityID   uuid.UUID
	Field      string
	OldValue   string
	NewValue   string
	Type       model.ChangeType
	ActorID    uuid.UUID
}

// Recorder appends change records inside the caller's transaction, so the
// mutation and its audit entry commit or roll back together. A write failure
// propagates and aborts the enclosing transaction; audit and data never
// diverge.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one ChangeRecord through the given transaction handle.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, ch Change) error {
	rec := &model.ChangeRecord{
		EntityType: ch.EntityType,
		EntityID:   ch.EntityID,
		Field:      ch.Field,
		OldValue:   ch.OldValue,
		NewValue:   ch.NewValue,
		ChangeType: ch.Type,
		ActorID:    ch.ActorID,
		OccurredAt: time.Now().UTC(),
	}
	return repository.NewChangeRepository(tx).Append(ctx, rec)
}
