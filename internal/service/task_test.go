package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"tasktrack/internal/model"
)

func newTestTaskService(db *gorm.DB) *TaskService {
	recorder := NewRecorder()
	status := NewStatusEngine(db, recorder, PolicyDoneOrCancelled)
	return NewTaskService(db, recorder, status)
}

func TestDeleteTask_UnknownTask(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	taskID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	// Act
	err := svc.Delete(context.Background(), taskID, uuid.New())

	// Assert
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Deleting a blocker releases its dependents: the delete, its final_state
// record and the system unblock record commit together.
func TestDeleteTask_UnblocksDependent(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	blockerID := uuid.New()
	dependentID := uuid.New()
	actorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(blockerID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(blockerID, "Blocker", "in_progress", false, "medium", uuid.New()))
	mock.ExpectQuery(`SELECT "blocked_id" FROM "task_dependencies" WHERE blocker_id = .*`).
		WithArgs(blockerID).
		WillReturnRows(sqlmock.NewRows([]string{"blocked_id"}).AddRow(dependentID.String()))
	mock.ExpectExec(`DELETE FROM "tasks"`).
		WithArgs(blockerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	// Edges are already gone through the FK cascade
	mock.ExpectQuery(`SELECT .* FROM "task_dependencies"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "blocker_id", "blocked_id"}))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN`).
		WithArgs(dependentID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "blocked"}).
			AddRow(dependentID, "open", true))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs(false, sqlmock.AnyArg(), dependentID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	// Act
	err := svc.Delete(context.Background(), blockerID, actorID)

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An invalid transition anywhere in the batch rolls the whole batch back.
func TestBulkUpdate_InvalidTransitionRollsBack(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	first, second := uuid.New(), uuid.New()
	status := model.StatusInProgress

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(first, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(first, "First", "open", false, "medium", uuid.New()))
	mock.ExpectExec(`UPDATE "tasks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(second, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(second, "Second", "done", false, "medium", uuid.New()))
	mock.ExpectRollback()

	// Act
	err := svc.BulkUpdate(context.Background(), BulkUpdateInput{
		TaskIDs: []uuid.UUID{first, second},
		Status:  &status,
	}, uuid.New())

	// Assert
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A priority-only batch needs no graph lock and no cascade.
func TestBulkUpdate_PriorityOnly(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	taskID := uuid.New()
	priority := model.PriorityHigh

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(taskID, "Task", "open", false, "medium", uuid.New()))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs("high", sqlmock.AnyArg(), taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	// Act
	err := svc.BulkUpdate(context.Background(), BulkUpdateInput{
		TaskIDs:  []uuid.UUID{taskID},
		Priority: &priority,
	}, uuid.New())

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	taskID := uuid.New()
	createID := uuid.New()
	statusID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .*`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(taskID, "Task", "open", false, "medium", uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "change_records" WHERE entity_id = .*`).
		WithArgs(taskID).
		WillReturnRows(changeRows().
			AddRow(createID, "task", taskID, "initial_state", "", "{}", "create", uuid.New(), time.Now().Add(-time.Hour)).
			AddRow(statusID, "task", taskID, "status", "open", "in_progress", "status_change", uuid.New(), time.Now()))

	// Act
	recs, err := svc.History(context.Background(), taskID)

	// Assert: oldest first
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, createID, recs[0].ID)
	assert.Equal(t, statusID, recs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_UnknownTask(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	svc := newTestTaskService(gormDB)
	taskID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .*`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Act
	_, err := svc.History(context.Background(), taskID)

	// Assert
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}
