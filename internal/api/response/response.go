package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope. message and data are omitted when empty.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Status: StatusError, Message: message})
}

// Page wraps a list with pagination metadata.
type Page struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a success envelope around a page of items. The next
// cursor is the id of the last item when more items follow.
func WritePaginated(w http.ResponseWriter, items any, lastID int64, hasMore bool) {
	page := Page{Items: items, HasMore: hasMore}
	if hasMore {
		page.NextCursor = strconv.FormatInt(lastID, 10)
	}
	WriteSuccess(w, http.StatusOK, "", page)
}
