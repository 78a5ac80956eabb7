package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasktrack/internal/service"
)

// respondError maps the engine's failure taxonomy to stable HTTP responses so
// clients never have to reinterpret internal state.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSelfDependency):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A task cannot depend on itself"})
	case errors.Is(err, service.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
	case errors.Is(err, service.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, service.ErrUnknownUser):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrEdgeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Dependency not found"})
	case errors.Is(err, service.ErrDuplicateEdge):
		c.JSON(http.StatusConflict, gin.H{"error": "Dependency already exists"})
	case errors.Is(err, service.ErrCycleDetected):
		c.JSON(http.StatusConflict, gin.H{"error": "Dependency would create a cycle"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
