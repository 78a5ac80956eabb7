package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tasktrack/internal/model"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from model.Status
		to   model.Status
		ok   bool
	}{
		{model.StatusOpen, model.StatusInProgress, true},
		{model.StatusInProgress, model.StatusDone, true},
		{model.StatusOpen, model.StatusCancelled, true},
		{model.StatusInProgress, model.StatusCancelled, true},

		{model.StatusOpen, model.StatusDone, false},
		{model.StatusDone, model.StatusInProgress, false},
		{model.StatusDone, model.StatusCancelled, false},
		{model.StatusCancelled, model.StatusCancelled, false},
		{model.StatusOpen, model.StatusOpen, false},
		// blocked is derived, never a client target
		{model.StatusOpen, model.StatusBlocked, false},
		{model.StatusInProgress, model.StatusBlocked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, validTransition(tt.from, tt.to))
		})
	}
}

func TestBlockerPolicySatisfied(t *testing.T) {
	tests := []struct {
		policy BlockerPolicy
		status model.Status
		want   bool
	}{
		{PolicyDoneOrCancelled, model.StatusDone, true},
		{PolicyDoneOrCancelled, model.StatusCancelled, true},
		{PolicyDoneOrCancelled, model.StatusOpen, false},
		{PolicyDoneOrCancelled, model.StatusInProgress, false},
		{PolicyDoneOrCancelled, model.StatusBlocked, false},
		{PolicyDoneOnly, model.StatusDone, true},
		{PolicyDoneOnly, model.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy)+"/"+string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Satisfied(tt.status))
		})
	}
}

func TestParseBlockerPolicy(t *testing.T) {
	assert.Equal(t, PolicyDoneOnly, ParseBlockerPolicy("done_only"))
	assert.Equal(t, PolicyDoneOrCancelled, ParseBlockerPolicy("done_or_cancelled"))
	assert.Equal(t, PolicyDoneOrCancelled, ParseBlockerPolicy("nonsense"))
}

func chainSnapshot(a, b, c uuid.UUID) *graphSnapshot {
	// a blocks b, b blocks c
	return &graphSnapshot{
		status: map[uuid.UUID]model.Status{
			a: model.StatusOpen,
			b: model.StatusOpen,
			c: model.StatusOpen,
		},
		blocked: map[uuid.UUID]bool{},
		blockers: map[uuid.UUID][]uuid.UUID{
			b: {a},
			c: {b},
		},
		dependents: map[uuid.UUID][]uuid.UUID{
			a: {b},
			b: {c},
		},
	}
}

// Adding a -> b then b -> c blocks both b and c.
func TestRecomputeBlocked_ChainBlocks(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	snap := chainSnapshot(a, b, c)

	changes := recomputeBlocked(snap, []uuid.UUID{b}, PolicyDoneOrCancelled)

	assert.Len(t, changes, 2)
	assert.Equal(t, b, changes[0].TaskID)
	assert.True(t, changes[0].Blocked)
	assert.Equal(t, model.StatusOpen, changes[0].OldEffective)
	assert.Equal(t, model.StatusBlocked, changes[0].NewEffective)
	assert.Equal(t, c, changes[1].TaskID)
	assert.True(t, changes[1].Blocked)
}

// With a blocks b blocks c: completing a unblocks b only; c stays blocked
// until b itself is done. c never unblocks while b is still blocked.
func TestRecomputeBlocked_ChainCascade(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	snap := chainSnapshot(a, b, c)
	snap.blocked[b] = true
	snap.blocked[c] = true

	// a reaches done
	snap.status[a] = model.StatusDone
	changes := recomputeBlocked(snap, []uuid.UUID{a}, PolicyDoneOrCancelled)

	assert.Len(t, changes, 1)
	assert.Equal(t, b, changes[0].TaskID)
	assert.False(t, changes[0].Blocked)
	assert.Equal(t, model.StatusBlocked, changes[0].OldEffective)
	assert.Equal(t, model.StatusOpen, changes[0].NewEffective)
	assert.True(t, snap.blocked[c], "c must stay blocked while b is not done")

	// b reaches done
	snap.status[b] = model.StatusDone
	changes = recomputeBlocked(snap, []uuid.UUID{b}, PolicyDoneOrCancelled)

	assert.Len(t, changes, 1)
	assert.Equal(t, c, changes[0].TaskID)
	assert.False(t, changes[0].Blocked)
}

// A blocked blocker never releases its own dependents, even if its underlying
// state is done.
func TestRecomputeBlocked_BlockedBlockerDoesNotSatisfy(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	snap := chainSnapshot(a, b, c)
	snap.blocked[b] = true
	snap.blocked[c] = true
	snap.status[b] = model.StatusDone // underlying done, effective still blocked

	changes := recomputeBlocked(snap, []uuid.UUID{b}, PolicyDoneOrCancelled)

	assert.Empty(t, changes)
	assert.True(t, snap.blocked[c])
}

func TestRecomputeBlocked_CancelledPolicy(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	snap := func() *graphSnapshot {
		return &graphSnapshot{
			status:     map[uuid.UUID]model.Status{a: model.StatusCancelled, b: model.StatusOpen},
			blocked:    map[uuid.UUID]bool{b: true},
			blockers:   map[uuid.UUID][]uuid.UUID{b: {a}},
			dependents: map[uuid.UUID][]uuid.UUID{a: {b}},
		}
	}

	changes := recomputeBlocked(snap(), []uuid.UUID{a}, PolicyDoneOrCancelled)
	assert.Len(t, changes, 1, "cancelled blocker releases under default policy")

	changes = recomputeBlocked(snap(), []uuid.UUID{a}, PolicyDoneOnly)
	assert.Empty(t, changes, "cancelled blocker keeps blocking under done_only")
}

// Removing the last blocker unblocks a task: origin recomputes itself.
func TestRecomputeBlocked_EdgeRemoval(t *testing.T) {
	b := uuid.New()
	snap := &graphSnapshot{
		status:     map[uuid.UUID]model.Status{b: model.StatusOpen},
		blocked:    map[uuid.UUID]bool{b: true},
		blockers:   map[uuid.UUID][]uuid.UUID{},
		dependents: map[uuid.UUID][]uuid.UUID{},
	}

	changes := recomputeBlocked(snap, []uuid.UUID{b}, PolicyDoneOrCancelled)

	assert.Len(t, changes, 1)
	assert.Equal(t, b, changes[0].TaskID)
	assert.False(t, changes[0].Blocked)
}

func TestSetStatus_InvalidTransition(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	recorder := NewRecorder()
	engine := NewStatusEngine(gormDB, recorder, PolicyDoneOrCancelled)
	taskID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(taskID, "Task", "done", false, "medium", uuid.New()))
	mock.ExpectRollback()

	// Act
	err := engine.SetStatus(context.Background(), taskID, model.StatusInProgress, uuid.New())

	// Assert
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_UnknownTask(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	engine := NewStatusEngine(gormDB, NewRecorder(), PolicyDoneOrCancelled)
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
	err := engine.SetStatus(context.Background(), taskID, model.StatusInProgress, uuid.New())

	// Assert
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Driving the chain t1 blocks t2 blocks t3 through two done transitions
// yields exactly four status_change records: one client record and one
// system cascade record per transition, and t3 is only released by t2.
func TestSetStatus_ChainRecordCounts(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	engine := NewStatusEngine(gormDB, NewRecorder(), PolicyDoneOrCancelled)
	t1, t2, t3 := uuid.New(), uuid.New(), uuid.New()
	actorID := uuid.New()

	edgeRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "blocker_id", "blocked_id"}).
			AddRow(uuid.New(), t1, t2).
			AddRow(uuid.New(), t2, t3)
	}
	taskRow := func(id uuid.UUID, status string, blocked bool) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(id, "Task", status, blocked, "medium", uuid.New())
	}

	// t1 done: client record for t1, cascade record for t2
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(t1, 1).
		WillReturnRows(taskRow(t1, "in_progress", false))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs("done", sqlmock.AnyArg(), t1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WithArgs("task", t1, "status", "in_progress", "done", "status_change", actorID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "task_dependencies"`).
		WillReturnRows(edgeRows())
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "blocked"}).
			AddRow(t1, "done", false).
			AddRow(t2, "in_progress", true).
			AddRow(t3, "in_progress", true))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs(false, sqlmock.AnyArg(), t2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WithArgs("task", t2, "status", "blocked", "in_progress", "status_change", model.SystemActorID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	// t2 done: client record for t2, cascade record for t3
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(t2, 1).
		WillReturnRows(taskRow(t2, "in_progress", false))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs("done", sqlmock.AnyArg(), t2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WithArgs("task", t2, "status", "in_progress", "done", "status_change", actorID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "task_dependencies"`).
		WillReturnRows(edgeRows())
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "blocked"}).
			AddRow(t1, "done", false).
			AddRow(t2, "done", false).
			AddRow(t3, "in_progress", true))
	mock.ExpectExec(`UPDATE "tasks"`).
		WithArgs(false, sqlmock.AnyArg(), t3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WithArgs("task", t3, "status", "blocked", "in_progress", "status_change", model.SystemActorID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	// Act
	err := engine.SetStatus(context.Background(), t1, model.StatusDone, actorID)
	assert.NoError(t, err)
	err = engine.SetStatus(context.Background(), t2, model.StatusDone, actorID)
	assert.NoError(t, err)

	// Assert: exactly the four scripted record inserts happened, no more
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Accepted transition with no dependents: status update, one audit record and
// an empty cascade commit together.
func TestSetStatus_Accepted(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	engine := NewStatusEngine(gormDB, NewRecorder(), PolicyDoneOrCancelled)
	taskID := uuid.New()
	actorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = .* FOR UPDATE`).
		WithArgs(taskID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "blocked", "priority", "creator_id"}).
			AddRow(taskID, "Task", "open", false, "medium", uuid.New()))
	mock.ExpectExec(`UPDATE "tasks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "change_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "task_dependencies"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "blocker_id", "blocked_id"}))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN`).
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "blocked"}).
			AddRow(taskID, "in_progress", false))
	mock.ExpectCommit()

	// Act
	err := engine.SetStatus(context.Background(), taskID, model.StatusInProgress, actorID)

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
