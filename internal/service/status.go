package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
	"tasktrack/internal/repository"
)

// BlockerPolicy decides which blocker states release a dependent task.
type BlockerPolicy string

const (
	// PolicyDoneOrCancelled treats both done and cancelled blockers as
	// satisfied. This is the default.
	PolicyDoneOrCancelled BlockerPolicy = "done_or_cancelled"

	// PolicyDoneOnly requires blockers to actually reach done; a cancelled
	// blocker keeps its dependents blocked.
	PolicyDoneOnly BlockerPolicy = "done_only"
)

// ParseBlockerPolicy maps a config value to a policy, defaulting to
// done-or-cancelled for unrecognized input.
func ParseBlockerPolicy(s string) BlockerPolicy {
	if BlockerPolicy(s) == PolicyDoneOnly {
		return PolicyDoneOnly
	}
	return PolicyDoneOrCancelled
}

// Satisfied reports whether a blocker in the given effective status releases
// its dependents. A blocked blocker never does.
func (p BlockerPolicy) Satisfied(s model.Status) bool {
	switch s {
	case model.StatusDone:
		return true
	case model.StatusCancelled:
		return p == PolicyDoneOrCancelled
	default:
		return false
	}
}

// StatusEngine keeps Task.Status consistent with the dependency graph: it
// enforces the client state machine and recomputes the derived blocking
// overlay whenever the graph or a blocker's status changes.
type StatusEngine struct {
	db       *gorm.DB
	recorder *Recorder
	policy   BlockerPolicy
}

func NewStatusEngine(db *gorm.DB, recorder *Recorder, policy BlockerPolicy) *StatusEngine {
	return &StatusEngine{db: db, recorder: recorder, policy: policy}
}

// validTransition is the client-settable state machine. StatusBlocked is
// derived and therefore never a valid target.
func validTransition(from, to model.Status) bool {
	switch to {
	case model.StatusInProgress:
		return from == model.StatusOpen
	case model.StatusDone:
		return from == model.StatusInProgress
	case model.StatusCancelled:
		return !from.Terminal()
	default:
		return false
	}
}

// SetStatus applies a client-requested status change, audits it and cascades
// the blocking overlay to dependents, all in one transaction.
func (e *StatusEngine) SetStatus(ctx context.Context, taskID uuid.UUID, newStatus model.Status, actorID uuid.UUID) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deps := repository.NewDependencyRepository(tx)
		if err := deps.LockGraph(ctx); err != nil {
			return err
		}

		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.GetByIDForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrUnknownTask
		}
		if err != nil {
			return err
		}

		if !validTransition(task.Status, newStatus) {
			return ErrInvalidTransition
		}

		oldUnderlying := task.Status
		oldEffective := task.EffectiveStatus()
		task.Status = newStatus
		newEffective := task.EffectiveStatus()

		if err := tasks.SetStatus(ctx, taskID, newStatus); err != nil {
			return err
		}

		oldVal, newVal := auditStatusValues(oldEffective, newEffective, oldUnderlying, newStatus)
		if err := e.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   taskID,
			Field:      "status",
			OldValue:   oldVal,
			NewValue:   newVal,
			Type:       model.ChangeStatusChange,
			ActorID:    actorID,
		}); err != nil {
			return err
		}

		return e.Cascade(ctx, tx, []uuid.UUID{taskID})
	})
}

// auditStatusValues picks the values recorded for an accepted status change:
// the effective transition; while the task stays blocked the effective status
// does not move, so the underlying one is recorded instead.
func auditStatusValues(oldEffective, newEffective, oldUnderlying, newUnderlying model.Status) (string, string) {
	if oldEffective == newEffective {
		return string(oldUnderlying), string(newUnderlying)
	}
	return string(oldEffective), string(newEffective)
}

// Cascade recomputes the blocking overlay starting from the given origin
// tasks. It must run inside the transaction that performed the triggering
// mutation: either the whole cascade and its audit records commit, or none do.
// Each flipped task yields one status_change record attributed to the system
// actor.
func (e *StatusEngine) Cascade(ctx context.Context, tx *gorm.DB, origins []uuid.UUID) error {
	snap, err := loadGraphSnapshot(ctx, tx, origins)
	if err != nil {
		return err
	}

	tasks := repository.NewTaskRepository(tx)
	for _, ch := range recomputeBlocked(snap, origins, e.policy) {
		if err := tasks.SetBlocked(ctx, ch.TaskID, ch.Blocked); err != nil {
			return err
		}
		if err := e.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   ch.TaskID,
			Field:      "status",
			OldValue:   string(ch.OldEffective),
			NewValue:   string(ch.NewEffective),
			Type:       model.ChangeStatusChange,
			ActorID:    model.SystemActorID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// graphSnapshot is the per-transaction view of the dependency graph. Graph
// state lives in the store; nothing graph-shaped survives the transaction.
type graphSnapshot struct {
	status     map[uuid.UUID]model.Status    // underlying client-set state
	blocked    map[uuid.UUID]bool            // derived overlay
	blockers   map[uuid.UUID][]uuid.UUID     // blocked -> blockers
	dependents map[uuid.UUID][]uuid.UUID     // blocker -> blocked
}

func (s *graphSnapshot) effective(id uuid.UUID) model.Status {
	if s.blocked[id] {
		return model.StatusBlocked
	}
	return s.status[id]
}

func (s *graphSnapshot) hasUnsatisfiedBlocker(id uuid.UUID, policy BlockerPolicy) bool {
	for _, b := range s.blockers[id] {
		if _, known := s.status[b]; !known {
			continue
		}
		if !policy.Satisfied(s.effective(b)) {
			return true
		}
	}
	return false
}

func loadGraphSnapshot(ctx context.Context, tx *gorm.DB, origins []uuid.UUID) (*graphSnapshot, error) {
	edges, err := repository.NewDependencyRepository(tx).ListAll(ctx)
	if err != nil {
		return nil, err
	}

	snap := &graphSnapshot{
		status:     make(map[uuid.UUID]model.Status),
		blocked:    make(map[uuid.UUID]bool),
		blockers:   make(map[uuid.UUID][]uuid.UUID),
		dependents: make(map[uuid.UUID][]uuid.UUID),
	}

	idSet := make(map[uuid.UUID]struct{})
	for _, e := range edges {
		snap.blockers[e.BlockedID] = append(snap.blockers[e.BlockedID], e.BlockerID)
		snap.dependents[e.BlockerID] = append(snap.dependents[e.BlockerID], e.BlockedID)
		idSet[e.BlockerID] = struct{}{}
		idSet[e.BlockedID] = struct{}{}
	}
	for _, id := range origins {
		idSet[id] = struct{}{}
	}

	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	tasks, err := repository.NewTaskRepository(tx).ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		snap.status[t.ID] = t.Status
		snap.blocked[t.ID] = t.Blocked
	}
	return snap, nil
}

// blockedChange is one flip of the derived overlay, with the effective
// statuses before and after for the audit record.
type blockedChange struct {
	TaskID       uuid.UUID
	Blocked      bool
	OldEffective model.Status
	NewEffective model.Status
}

// recomputeBlocked walks the blocked-by adjacency breadth-first from the
// origins, flipping the blocked flag where the graph disagrees with it.
// Origins always propagate to their dependents (their status just changed);
// other tasks propagate only when their own effective status flipped. The walk
// terminates because the edge set is acyclic and a single mutation moves flags
// in one direction only.
func recomputeBlocked(snap *graphSnapshot, origins []uuid.UUID, policy BlockerPolicy) []blockedChange {
	origin := make(map[uuid.UUID]bool, len(origins))
	for _, id := range origins {
		origin[id] = true
	}

	var changes []blockedChange
	queue := append([]uuid.UUID(nil), origins...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		changed := false
		if _, known := snap.status[id]; known {
			blocked := snap.hasUnsatisfiedBlocker(id, policy)
			if blocked != snap.blocked[id] {
				old := snap.effective(id)
				snap.blocked[id] = blocked
				changes = append(changes, blockedChange{
					TaskID:       id,
					Blocked:      blocked,
					OldEffective: old,
					NewEffective: snap.effective(id),
				})
				changed = true
			}
		}
		if changed || origin[id] {
			origin[id] = false
			queue = append(queue, snap.dependents[id]...)
		}
	}
	return changes
}
