package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
)

// graphLockKey identifies the advisory lock serializing all dependency graph
// mutations. A single coarse lock over the whole graph is a known scalability
// ceiling; graphs here are expected to stay small.
const graphLockKey int64 = 0x7461736b67726168

type DependencyRepository struct {
	db *gorm.DB
}

func NewDependencyRepository(db *gorm.DB) *DependencyRepository {
	return &DependencyRepository{db: db}
}

// LockGraph takes the transaction-scoped advisory lock over the dependency
// graph. Must run inside a transaction; the lock is held until commit or
// rollback, so the cycle check and the edge insert observe the same graph.
func (r *DependencyRepository) LockGraph(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", graphLockKey).Error
}

// Create persists a new dependency edge
func (r *DependencyRepository) Create(ctx context.Context, edge *model.DependencyEdge) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

// DeleteByPair removes the edge for the given ordered pair
func (r *DependencyRepository) DeleteByPair(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.DependencyEdge{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

// Exists reports whether the edge for the given ordered pair exists
func (r *DependencyRepository) Exists(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.DependencyEdge{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// ListAll returns every edge in the graph. The graph is re-derived from the
// store per transaction instead of being cached in process.
func (r *DependencyRepository) ListAll(ctx context.Context) ([]model.DependencyEdge, error) {
	var edges []model.DependencyEdge
	result := r.db.WithContext(ctx).Find(&edges)
	if result.Error != nil {
		return nil, result.Error
	}
	return edges, nil
}

// BlockersOf returns the IDs of tasks that block the given task
func (r *DependencyRepository) BlockersOf(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := r.db.WithContext(ctx).Model(&model.DependencyEdge{}).
		Where("blocked_id = ?", taskID).
		Order("created_at").
		Pluck("blocker_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// BlockedBy returns the IDs of tasks blocked by the given task
func (r *DependencyRepository) BlockedBy(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := r.db.WithContext(ctx).Model(&model.DependencyEdge{}).
		Where("blocker_id = ?", taskID).
		Order("created_at").
		Pluck("blocked_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}
