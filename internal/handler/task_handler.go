package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tasktrack/internal/middleware"
	"tasktrack/internal/model"
	"tasktrack/internal/service"
)

// TaskWriter is the task mutation surface consumed by the handler
type TaskWriter interface {
	Create(ctx context.Context, in service.CreateTaskInput, actorID uuid.UUID) (*model.Task, error)
	UpdateFields(ctx context.Context, taskID uuid.UUID, in service.UpdateTaskInput, actorID uuid.UUID) (*model.Task, error)
	Assign(ctx context.Context, taskID, userID, actorID uuid.UUID) error
	Unassign(ctx context.Context, taskID, actorID uuid.UUID) error
	Delete(ctx context.Context, taskID, actorID uuid.UUID) error
	BulkUpdate(ctx context.Context, in service.BulkUpdateInput, actorID uuid.UUID) error
	Get(ctx context.Context, taskID uuid.UUID) (*service.TaskDetail, error)
	List(ctx context.Context, offset, limit int) ([]model.Task, error)
	History(ctx context.Context, taskID uuid.UUID) ([]model.ChangeRecord, error)
}

// StatusWriter is the state machine surface consumed by the handler
type StatusWriter interface {
	SetStatus(ctx context.Context, taskID uuid.UUID, newStatus model.Status, actorID uuid.UUID) error
}

type TaskHandler struct {
	tasks  TaskWriter
	status StatusWriter
}

func NewTaskHandler(tasks TaskWriter, status StatusWriter) *TaskHandler {
	return &TaskHandler{tasks: tasks, status: status}
}

// TaskRequest is the payload for creating a task
type TaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueAt       *time.Time `json:"due_at"`
	AssigneeID  *string    `json:"assignee_id" binding:"omitempty,uuid"`
	Tags        []string   `json:"tags"`
}

// TaskUpdateRequest is the payload for a partial task update
type TaskUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueAt       *time.Time `json:"due_at"`
	Tags        *[]string  `json:"tags"`
}

// StatusRequest is the payload for a status change
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BulkUpdateRequest is the payload for a bulk status/priority update
type BulkUpdateRequest struct {
	TaskIDs  []string `json:"task_ids" binding:"required,min=1,dive,uuid"`
	Status   *string  `json:"status"`
	Priority *string  `json:"priority" binding:"omitempty,oneof=low medium high critical"`
}

// TaskAssignRequest is the payload for assigning a user to a task
type TaskAssignRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// TaskResponse carries task data with the effective status applied
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Blocked     bool       `json:"blocked"`
	Priority    string     `json:"priority"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	CreatorID   string     `json:"creator_id"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Tags        []string   `json:"tags,omitempty"`
	BlockerIDs  []string   `json:"blocker_ids,omitempty"`
	BlockingIDs []string   `json:"blocking_ids,omitempty"`
}

func toTaskResponse(task *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.EffectiveStatus()),
		Blocked:     task.Blocked,
		Priority:    string(task.Priority),
		CreatorID:   task.CreatorID.String(),
		DueAt:       task.DueAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.AssigneeID != nil {
		s := task.AssigneeID.String()
		resp.AssigneeID = &s
	}
	for _, tag := range task.Tags {
		resp.Tags = append(resp.Tags, tag.Name)
	}
	return resp
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// Create handles POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	in := service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
		DueAt:       req.DueAt,
		Tags:        req.Tags,
	}
	if req.AssigneeID != nil {
		id, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignee ID format"})
			return
		}
		in.AssigneeID = &id
	}

	task, err := h.tasks.Create(c.Request.Context(), in, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetByID handles GET /tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	detail, err := h.tasks.Get(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toTaskResponse(detail.Task)
	resp.BlockerIDs = uuidStrings(detail.BlockerIDs)
	resp.BlockingIDs = uuidStrings(detail.BlockingIDs)
	c.JSON(http.StatusOK, resp)
}

// List handles GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	tasks, err := h.tasks.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Update handles PATCH /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	in := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		in.Priority = &p
	}

	task, err := h.tasks.UpdateFields(c.Request.Context(), taskID, in, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), taskID, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkUpdate handles PATCH /tasks
func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Status == nil && req.Priority == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	in := service.BulkUpdateInput{}
	for _, raw := range req.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
			return
		}
		in.TaskIDs = append(in.TaskIDs, id)
	}
	if req.Status != nil {
		s := model.Status(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		in.Priority = &p
	}

	if err := h.tasks.BulkUpdate(c.Request.Context(), in, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tasks updated"})
}

// HistoryEntryResponse is one audit record of a task's history
type HistoryEntryResponse struct {
	ID         string    `json:"id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	ChangeType string    `json:"change_type"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// History handles GET /tasks/:id/history
func (h *TaskHandler) History(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	recs, err := h.tasks.History(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, HistoryEntryResponse{
			ID:         rec.ID.String(),
			Field:      rec.Field,
			OldValue:   rec.OldValue,
			NewValue:   rec.NewValue,
			ChangeType: string(rec.ChangeType),
			ActorID:    rec.ActorID.String(),
			OccurredAt: rec.OccurredAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": resp})
}

// SetStatus handles POST /tasks/:id/status
func (h *TaskHandler) SetStatus(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.status.SetStatus(c.Request.Context(), taskID, model.Status(req.Status), actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// AssignUser handles POST /tasks/:id/assign
func (h *TaskHandler) AssignUser(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	if err := h.tasks.Assign(c.Request.Context(), taskID, userID, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User assigned"})
}

// UnassignUser handles DELETE /tasks/:id/assign
func (h *TaskHandler) UnassignUser(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	if err := h.tasks.Unassign(c.Request.Context(), taskID, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unassigned"})
}
