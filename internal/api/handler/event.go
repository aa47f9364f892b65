package handler

import (
	"context"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

// EventStore reads and resolves recorded events.
type EventStore interface {
	List(ctx context.Context, kind model.EventKind, filter core.EventFilter, limit int, cursor int64) ([]model.Event, bool, error)
	Solve(ctx context.Context, kind model.EventKind, id int64) error
}

// Event serves the dashboard's alert, malfunction and log views.
type Event struct {
	svc EventStore
}

func NewEvent(svc EventStore) *Event {
	return &Event{svc: svc}
}

// List returns a handler listing events of kind, newest first.
func (h *Event) List(kind model.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := request.ParseEventFilter(r)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		pg := request.ParsePagination(r)

		events, hasMore, err := h.svc.List(r.Context(), kind, filter, pg.Limit, pg.Cursor)
		if err != nil {
			writeStoreError(w, r, err, "Not found", "")
			return
		}
		if events == nil {
			events = []model.Event{}
		}

		var lastID int64
		if len(events) > 0 {
			lastID = events[len(events)-1].ID
		}
		response.WritePaginated(w, events, lastID, hasMore)
	}
}

// Solve returns a handler marking an event of kind as resolved.
func (h *Event) Solve(kind model.EventKind) http.HandlerFunc {
	notFoundMsg := kindTitle(kind) + " not found"
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		if err := h.svc.Solve(r.Context(), kind, id); err != nil {
			writeStoreError(w, r, err, notFoundMsg, "")
			return
		}
		response.WriteSuccess(w, http.StatusOK, kindTitle(kind)+" resolved.", nil)
	}
}

func kindTitle(kind model.EventKind) string {
	switch kind {
	case model.EventAlert:
		return "Alert"
	case model.EventMalfunction:
		return "Malfunction"
	default:
		return "Log"
	}
}
