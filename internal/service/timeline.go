package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktrack/internal/model"
	"tasktrack/internal/repository"
)

const defaultTimelinePageSize = 50

// TimelineEntry is one change record resolved with actor display information.
type TimelineEntry struct {
	Record    model.ChangeRecord
	ActorName string
}

// TimelineService answers "what changed, relevant to user U, in the last N
// days" from the accumulated change records. It is a pure read path: it never
// mutates and needs no coordination with writers beyond read-committed
// snapshots.
type TimelineService struct {
	db       *gorm.DB
	pageSize int
}

func NewTimelineService(db *gorm.DB, pageSize int) *TimelineService {
	if pageSize <= 0 {
		pageSize = defaultTimelinePageSize
	}
	return &TimelineService{db: db, pageSize: pageSize}
}

// Timeline returns up to one page of entries newest first, plus a cursor for
// the next page ("" when exhausted). Relevance covers records the user
// authored and records on tasks the user currently creates or is assigned to;
// historical assignment is deliberately not consulted.
func (s *TimelineService) Timeline(ctx context.Context, userID uuid.UUID, days int, cursor string) ([]TimelineEntry, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	changes := repository.NewChangeRepository(s.db)
	recs, err := changes.Timeline(ctx, userID, since, after, s.pageSize+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(recs) > s.pageSize {
		recs = recs[:s.pageSize]
		last := recs[len(recs)-1]
		next = encodeCursor(repository.TimelinePage{OccurredAt: last.OccurredAt, ID: last.ID})
	}

	entries, err := s.resolveActors(ctx, recs)
	if err != nil {
		return nil, "", err
	}
	return entries, next, nil
}

func (s *TimelineService) resolveActors(ctx context.Context, recs []model.ChangeRecord) ([]TimelineEntry, error) {
	idSet := make(map[uuid.UUID]struct{})
	for _, rec := range recs {
		if rec.ActorID != model.SystemActorID {
			idSet[rec.ActorID] = struct{}{}
		}
	}
	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := repository.NewUserRepository(s.db).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(recs))
	for _, rec := range recs {
		name := "System"
		if rec.ActorID != model.SystemActorID {
			if u, ok := users[rec.ActorID]; ok {
				name = u.DisplayName()
			} else {
				name = rec.ActorID.String()
			}
		}
		entries = append(entries, TimelineEntry{Record: rec, ActorName: name})
	}
	return entries, nil
}

// timelineCursor is the wire form of the keyset position.
type timelineCursor struct {
	OccurredAt time.Time `json:"t"`
	ID         uuid.UUID `json:"id"`
}

func encodeCursor(page repository.TimelinePage) string {
	raw, _ := json.Marshal(timelineCursor{OccurredAt: page.OccurredAt, ID: page.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (*repository.TimelinePage, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c timelineCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	return &repository.TimelinePage{OccurredAt: c.OccurredAt, ID: c.ID}, nil
}
