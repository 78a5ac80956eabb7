package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tasktrack/internal/middleware"
)

// GraphService is the dependency graph surface consumed by the handler
type GraphService interface {
	AddEdge(ctx context.Context, blockerID, blockedID, actorID uuid.UUID) error
	RemoveEdge(ctx context.Context, blockerID, blockedID, actorID uuid.UUID) error
	Blockers(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error)
	Blocked(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error)
}

type DependencyHandler struct {
	graph GraphService
}

func NewDependencyHandler(graph GraphService) *DependencyHandler {
	return &DependencyHandler{graph: graph}
}

// DependencyRequest names the task that must complete before the task in the
// URL can proceed
type DependencyRequest struct {
	BlockerID string `json:"blocker_id" binding:"required,uuid"`
}

// Add handles POST /tasks/:id/dependencies
func (h *DependencyHandler) Add(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	blockedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req DependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	blockerID, err := uuid.Parse(req.BlockerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blocker ID format"})
		return
	}

	if err := h.graph.AddEdge(c.Request.Context(), blockerID, blockedID, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"blocker_id": blockerID,
		"blocked_id": blockedID,
	})
}

// Remove handles DELETE /tasks/:id/dependencies/:blocker_id
func (h *DependencyHandler) Remove(c *gin.Context) {
	actorID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	blockedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}
	blockerID, err := uuid.Parse(c.Param("blocker_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blocker ID format"})
		return
	}

	if err := h.graph.RemoveEdge(c.Request.Context(), blockerID, blockedID, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBlockers handles GET /tasks/:id/blockers
func (h *DependencyHandler) GetBlockers(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	ids, err := h.graph.Blockers(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocker_ids": uuidStrings(ids)})
}

// GetBlocking handles GET /tasks/:id/blocking
func (h *DependencyHandler) GetBlocking(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	ids, err := h.graph.Blocked(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocking_ids": uuidStrings(ids)})
}
