package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
)

type ChangeRepository struct {
	db *gorm.DB
}

func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Append writes one change record. The record is immutable once written; no
// update or delete is exposed. Errors propagate so the enclosing transaction
// aborts rather than committing a mutation without its audit entry.
func (r *ChangeRepository) Append(ctx context.Context, rec *model.ChangeRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// TimelinePage identifies the position after the last returned record for
// keyset pagination over (occurred_at, id) descending.
type TimelinePage struct {
	OccurredAt time.Time
	ID         uuid.UUID
}

// Timeline returns records relevant to the given user since the given time,
// newest first with ID as tie-break. Relevance means the user is the actor,
// or is the current creator or assignee of the subject task.
func (r *ChangeRepository) Timeline(ctx context.Context, userID uuid.UUID, since time.Time, after *TimelinePage, limit int) ([]model.ChangeRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.ChangeRecord{}).
		Select("change_records.*").
		Joins("LEFT JOIN tasks ON tasks.id = change_records.entity_id").
		Where("change_records.occurred_at >= ?", since).
		Where("change_records.actor_id = ? OR tasks.creator_id = ? OR tasks.assignee_id = ?",
			userID, userID, userID)
	if after != nil {
		q = q.Where("(change_records.occurred_at, change_records.id) < (?, ?)", after.OccurredAt, after.ID)
	}

	var recs []model.ChangeRecord
	result := q.
		Order("change_records.occurred_at DESC, change_records.id DESC").
		Limit(limit).
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return recs, nil
}

// HistoryOf returns every record for a single task, oldest first
func (r *ChangeRepository) HistoryOf(ctx context.Context, taskID uuid.UUID) ([]model.ChangeRecord, error) {
	var recs []model.ChangeRecord
	result := r.db.WithContext(ctx).
		Where("entity_id = ?", taskID).
		Order("occurred_at, id").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return recs, nil
}
