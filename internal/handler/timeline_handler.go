package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tasktrack/internal/middleware"
	"tasktrack/internal/service"
)

const defaultTimelineDays = 7

// TimelineReader is the timeline surface consumed by the handler
type TimelineReader interface {
	Timeline(ctx context.Context, userID uuid.UUID, days int, cursor string) ([]service.TimelineEntry, string, error)
}

type TimelineHandler struct {
	timeline TimelineReader
}

func NewTimelineHandler(timeline TimelineReader) *TimelineHandler {
	return &TimelineHandler{timeline: timeline}
}

// TimelineEntryResponse is one change record resolved for display
type TimelineEntryResponse struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	ChangeType string    `json:"change_type"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Get handles GET /timeline. The subject user is the acting user; the window
// is a trailing number of days.
func (h *TimelineHandler) Get(c *gin.Context) {
	userID, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultTimelineDays)))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
		return
	}

	entries, next, err := h.timeline.Timeline(c.Request.Context(), userID, days, c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, TimelineEntryResponse{
			ID:         e.Record.ID.String(),
			EntityType: string(e.Record.EntityType),
			EntityID:   e.Record.EntityID.String(),
			Field:      e.Record.Field,
			OldValue:   e.Record.OldValue,
			NewValue:   e.Record.NewValue,
			ChangeType: string(e.Record.ChangeType),
			ActorID:    e.Record.ActorID.String(),
			ActorName:  e.ActorName,
			OccurredAt: e.Record.OccurredAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":     resp,
		"next_cursor": next,
	})
}
