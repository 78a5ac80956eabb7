package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
	"tasktrack/internal/repository"
)

// GraphEngine validates and mutates the dependency edge set, keeping it
// acyclic and consistent, and answers blocking/blocked-by queries. All edge
// mutations run under the graph advisory lock: two concurrent insertions that
// are individually acyclic could jointly close a cycle if checked against
// stale snapshots.
type GraphEngine struct {
	db       *gorm.DB
	status   *StatusEngine
	recorder *Recorder
}

func NewGraphEngine(db *gorm.DB, status *StatusEngine, recorder *Recorder) *GraphEngine {
	return &GraphEngine{db: db, status: status, recorder: recorder}
}

// AddEdge creates a blocker -> blocked edge. Validation order: self
// dependency, unknown tasks, duplicate pair, cycle. On success the edge, its
// dependency_add record and the status cascade commit together.
func (g *GraphEngine) AddEdge(ctx context.Context, blockerID, blockedID, actorID uuid.UUID) error {
	if blockerID == blockedID {
		return ErrSelfDependency
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deps := repository.NewDependencyRepository(tx)
		if err := deps.LockGraph(ctx); err != nil {
			return err
		}

		tasks := repository.NewTaskRepository(tx)
		for _, id := range []uuid.UUID{blockerID, blockedID} {
			ok, err := tasks.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrUnknownTask
			}
		}

		exists, err := deps.Exists(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateEdge
		}

		edges, err := deps.ListAll(ctx)
		if err != nil {
			return err
		}
		if wouldCreateCycle(edges, blockerID, blockedID) {
			return ErrCycleDetected
		}

		edge := &model.DependencyEdge{BlockerID: blockerID, BlockedID: blockedID}
		if err := deps.Create(ctx, edge); err != nil {
			return err
		}

		if err := g.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityEdge,
			EntityID:   blockedID,
			Field:      "blocker_id",
			NewValue:   blockerID.String(),
			Type:       model.ChangeDependencyAdd,
			ActorID:    actorID,
		}); err != nil {
			return err
		}

		return g.status.Cascade(ctx, tx, []uuid.UUID{blockedID})
	})
}

// RemoveEdge deletes the edge for the ordered pair, which may unblock the
// formerly blocked task.
func (g *GraphEngine) RemoveEdge(ctx context.Context, blockerID, blockedID, actorID uuid.UUID) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deps := repository.NewDependencyRepository(tx)
		if err := deps.LockGraph(ctx); err != nil {
			return err
		}

		err := deps.DeleteByPair(ctx, blockerID, blockedID)
		if errors.Is(err, repository.ErrEdgeNotFound) {
			return ErrEdgeNotFound
		}
		if err != nil {
			return err
		}

		if err := g.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityEdge,
			EntityID:   blockedID,
			Field:      "blocker_id",
			OldValue:   blockerID.String(),
			Type:       model.ChangeDependencyRemove,
			ActorID:    actorID,
		}); err != nil {
			return err
		}

		return g.status.Cascade(ctx, tx, []uuid.UUID{blockedID})
	})
}

// Blockers returns the IDs of tasks blocking the given task.
func (g *GraphEngine) Blockers(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	if err := g.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	return repository.NewDependencyRepository(g.db).BlockersOf(ctx, taskID)
}

// Blocked returns the IDs of tasks the given task blocks.
func (g *GraphEngine) Blocked(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	if err := g.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	return repository.NewDependencyRepository(g.db).BlockedBy(ctx, taskID)
}

func (g *GraphEngine) requireTask(ctx context.Context, taskID uuid.UUID) error {
	ok, err := repository.NewTaskRepository(g.db).Exists(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownTask
	}
	return nil
}

// wouldCreateCycle checks if adding blocker -> blocked would close a cycle.
// BFS from the blocked task along the blocker -> blocked direction: the new
// edge closes a cycle exactly when the blocker is already reachable.
func wouldCreateCycle(edges []model.DependencyEdge, blockerID, blockedID uuid.UUID) bool {
	adjacency := make(map[uuid.UUID][]uuid.UUID, len(edges))
	for _, e := range edges {
		adjacency[e.BlockerID] = append(adjacency[e.BlockerID], e.BlockedID)
	}

	visited := make(map[uuid.UUID]bool)
	queue := []uuid.UUID{blockedID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == blockerID {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		queue = append(queue, adjacency[current]...)
	}
	return false
}
