package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
	"tasktrack/internal/repository"
)

// TaskService owns the task mutations outside the graph: creation, plain
// field updates and assignment. Every accepted mutation writes its audit
// records in the same transaction.
type TaskService struct {
	db       *gorm.DB
	recorder *Recorder
	status   *StatusEngine
}

func NewTaskService(db *gorm.DB, recorder *Recorder, status *StatusEngine) *TaskService {
	return &TaskService{db: db, recorder: recorder, status: status}
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    model.Priority
	DueAt       *time.Time
	AssigneeID  *uuid.UUID
	Tags        []string
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	DueAt       *time.Time
	Tags        *[]string
}

// TaskDetail is a task together with its adjacency in the dependency graph.
type TaskDetail struct {
	Task        *model.Task
	BlockerIDs  []uuid.UUID
	BlockingIDs []uuid.UUID
}

// Create persists a new task in the open state together with a create record
// holding the initial field snapshot.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput, actorID uuid.UUID) (*model.Task, error) {
	var created *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		ok, err := users.Exists(ctx, actorID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownUser
		}
		if in.AssigneeID != nil {
			ok, err := users.Exists(ctx, *in.AssigneeID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrUnknownUser
			}
		}

		if in.Priority == "" {
			in.Priority = model.PriorityMedium
		}
		task := &model.Task{
			ID:          uuid.New(),
			Title:       in.Title,
			Description: in.Description,
			Status:      model.StatusOpen,
			Priority:    in.Priority,
			AssigneeID:  in.AssigneeID,
			CreatorID:   actorID,
			DueAt:       in.DueAt,
		}

		tags := repository.NewTagRepository(tx)
		for _, name := range in.Tags {
			tag, err := tags.GetOrCreate(ctx, name)
			if err != nil {
				return err
			}
			task.Tags = append(task.Tags, *tag)
		}

		if err := repository.NewTaskRepository(tx).Create(ctx, task); err != nil {
			return err
		}

		initial, err := taskSnapshot(task)
		if err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   task.ID,
			Field:      "initial_state",
			NewValue:   initial,
			Type:       model.ChangeCreate,
			ActorID:    actorID,
		}); err != nil {
			return err
		}

		created = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateFields applies the set fields, writing one update record per field
// that actually changed. Status is not updatable here; it goes through the
// StatusEngine.
func (s *TaskService) UpdateFields(ctx context.Context, taskID uuid.UUID, in UpdateTaskInput, actorID uuid.UUID) (*model.Task, error) {
	var updated *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.GetByIDForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrUnknownTask
		}
		if err != nil {
			return err
		}

		record := func(field, oldVal, newVal string) error {
			return s.recorder.Record(ctx, tx, Change{
				EntityType: model.EntityTask,
				EntityID:   taskID,
				Field:      field,
				OldValue:   oldVal,
				NewValue:   newVal,
				Type:       model.ChangeUpdate,
				ActorID:    actorID,
			})
		}

		if in.Title != nil && *in.Title != task.Title {
			if err := record("title", task.Title, *in.Title); err != nil {
				return err
			}
			task.Title = *in.Title
		}
		if in.Description != nil && *in.Description != task.Description {
			if err := record("description", task.Description, *in.Description); err != nil {
				return err
			}
			task.Description = *in.Description
		}
		if in.Priority != nil && *in.Priority != task.Priority {
			if err := record("priority", string(task.Priority), string(*in.Priority)); err != nil {
				return err
			}
			task.Priority = *in.Priority
		}
		if in.DueAt != nil && (task.DueAt == nil || !task.DueAt.Equal(*in.DueAt)) {
			oldVal := ""
			if task.DueAt != nil {
				oldVal = task.DueAt.Format(time.RFC3339)
			}
			if err := record("due_at", oldVal, in.DueAt.Format(time.RFC3339)); err != nil {
				return err
			}
			task.DueAt = in.DueAt
		}

		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		if in.Tags != nil {
			current, err := tasks.GetWithDetails(ctx, taskID)
			if err != nil {
				return err
			}
			oldNames := repository.TagNames(current.Tags)

			tagRepo := repository.NewTagRepository(tx)
			newTags := make([]model.Tag, 0, len(*in.Tags))
			for _, name := range *in.Tags {
				tag, err := tagRepo.GetOrCreate(ctx, name)
				if err != nil {
					return err
				}
				newTags = append(newTags, *tag)
			}
			if err := tasks.ReplaceTags(ctx, task, newTags); err != nil {
				return err
			}
			if newNames := repository.TagNames(newTags); newNames != oldNames {
				if err := record("tags", oldNames, newNames); err != nil {
					return err
				}
			}
			task.Tags = newTags
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Assign sets the task's assignee and writes an assign record.
func (s *TaskService) Assign(ctx context.Context, taskID, userID, actorID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.GetByIDForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrUnknownTask
		}
		if err != nil {
			return err
		}

		ok, err := repository.NewUserRepository(tx).Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownUser
		}

		oldVal := ""
		if task.AssigneeID != nil {
			if *task.AssigneeID == userID {
				return nil
			}
			oldVal = task.AssigneeID.String()
		}

		if err := tasks.AssignUser(ctx, taskID, userID); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   taskID,
			Field:      "assignee_id",
			OldValue:   oldVal,
			NewValue:   userID.String(),
			Type:       model.ChangeAssign,
			ActorID:    actorID,
		})
	})
}

// Unassign clears the task's assignee and writes an assign record.
func (s *TaskService) Unassign(ctx context.Context, taskID, actorID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.GetByIDForUpdate(ctx, taskID)
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrUnknownTask
		}
		if err != nil {
			return err
		}
		if task.AssigneeID == nil {
			return nil
		}
		oldVal := task.AssigneeID.String()

		if err := tasks.UnassignUser(ctx, taskID); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   taskID,
			Field:      "assignee_id",
			OldValue:   oldVal,
			Type:       model.ChangeAssign,
			ActorID:    actorID,
		})
	})
}

// Delete removes a task. Edges and tag links go with it through the schema's
// ON DELETE CASCADE; its change records are kept (the audit trail outlives the
// task). Former dependents are recomputed, so a deleted blocker releases them
// the same way a completed one does.
func (s *TaskService) Delete(ctx context.Context, taskID, actorID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		// Dependents must be read before the delete cascades the edges away.
		dependents, err := deps.BlockedBy(ctx, taskID)
		if err != nil {
			return err
		}

		if err := tasks.Delete(ctx, taskID); err != nil {
			return err
		}

		final, err := taskSnapshot(task)
		if err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, tx, Change{
			EntityType: model.EntityTask,
			EntityID:   taskID,
			Field:      "final_state",
			OldValue:   final,
			Type:       model.ChangeDelete,
			ActorID:    actorID,
		}); err != nil {
			return err
		}

		if len(dependents) == 0 {
			return nil
		}
		return s.status.Cascade(ctx, tx, dependents)
	})
}

type BulkUpdateInput struct {
	TaskIDs  []uuid.UUID
	Status   *model.Status
	Priority *model.Priority
}

// BulkUpdate applies a status and/or priority change to a set of tasks in one
// transaction, writing one bulk_update record per task per changed field. The
// batch is atomic: an unknown task or an invalid transition anywhere rolls the
// whole batch back.
func (s *TaskService) BulkUpdate(ctx context.Context, in BulkUpdateInput, actorID uuid.UUID) error {
	if len(in.TaskIDs) == 0 || (in.Status == nil && in.Priority == nil) {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Status != nil {
			if err := repository.NewDependencyRepository(tx).LockGraph(ctx); err != nil {
				return err
			}
		}

		tasks := repository.NewTaskRepository(tx)
		var origins []uuid.UUID
		for _, id := range in.TaskIDs {
			task, err := tasks.GetByIDForUpdate(ctx, id)
			if errors.Is(err, repository.ErrTaskNotFound) {
				return ErrUnknownTask
			}
			if err != nil {
				return err
			}

			if in.Priority != nil && *in.Priority != task.Priority {
				if err := tasks.SetPriority(ctx, id, *in.Priority); err != nil {
					return err
				}
				if err := s.recorder.Record(ctx, tx, Change{
					EntityType: model.EntityTask,
					EntityID:   id,
					Field:      "priority",
					OldValue:   string(task.Priority),
					NewValue:   string(*in.Priority),
					Type:       model.ChangeBulkUpdate,
					ActorID:    actorID,
				}); err != nil {
					return err
				}
			}

			if in.Status != nil {
				if !validTransition(task.Status, *in.Status) {
					return ErrInvalidTransition
				}
				oldUnderlying := task.Status
				oldEffective := task.EffectiveStatus()
				task.Status = *in.Status
				newEffective := task.EffectiveStatus()

				if err := tasks.SetStatus(ctx, id, *in.Status); err != nil {
					return err
				}
				oldVal, newVal := auditStatusValues(oldEffective, newEffective, oldUnderlying, *in.Status)
				if err := s.recorder.Record(ctx, tx, Change{
					EntityType: model.EntityTask,
					EntityID:   id,
					Field:      "status",
					OldValue:   oldVal,
					NewValue:   newVal,
					Type:       model.ChangeBulkUpdate,
					ActorID:    actorID,
				}); err != nil {
					return err
				}
				origins = append(origins, id)
			}
		}

		if len(origins) == 0 {
			return nil
		}
		return s.status.Cascade(ctx, tx, origins)
	})
}

// History returns every change record for a task, oldest first.
func (s *TaskService) History(ctx context.Context, taskID uuid.UUID) ([]model.ChangeRecord, error) {
	_, err := repository.NewTaskRepository(s.db).GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		return nil, ErrUnknownTask
	}
	if err != nil {
		return nil, err
	}
	return repository.NewChangeRepository(s.db).HistoryOf(ctx, taskID)
}

// Get returns a task with its tags and graph adjacency.
func (s *TaskService) Get(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error) {
	task, err := repository.NewTaskRepository(s.db).GetWithDetails(ctx, taskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		return nil, ErrUnknownTask
	}
	if err != nil {
		return nil, err
	}

	deps := repository.NewDependencyRepository(s.db)
	blockers, err := deps.BlockersOf(ctx, taskID)
	if err != nil {
		return nil, err
	}
	blocking, err := deps.BlockedBy(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: task, BlockerIDs: blockers, BlockingIDs: blocking}, nil
}

// List returns tasks with offset/limit pagination.
func (s *TaskService) List(ctx context.Context, offset, limit int) ([]model.Task, error) {
	return repository.NewTaskRepository(s.db).List(ctx, offset, limit)
}

// taskSnapshot captures the fields worth auditing when a task appears or
// disappears: the initial_state value on create, the final_state on delete.
func taskSnapshot(task *model.Task) (string, error) {
	state := map[string]any{
		"title":    task.Title,
		"status":   task.Status,
		"priority": task.Priority,
	}
	if task.DueAt != nil {
		state["due_at"] = task.DueAt.Format(time.RFC3339)
	}
	if task.AssigneeID != nil {
		state["assignee_id"] = task.AssigneeID.String()
	}
	if len(task.Tags) > 0 {
		state["tags"] = repository.TagNames(task.Tags)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
