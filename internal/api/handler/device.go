package handler

import (
	"context"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/model"
)

// EventRecorder stores an event for the device bound to a credential.
type EventRecorder interface {
	Record(ctx context.Context, kind model.EventKind, credentialID int64, eventType string, message *string) (*model.Event, error)
}

// EventNotifier pushes committed events to live consumers. It never fails
// the request.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, e *model.Event)
}

// Device serves event submission by security devices.
type Device struct {
	events   EventRecorder
	notifier EventNotifier
}

func NewDevice(events EventRecorder, notifier EventNotifier) *Device {
	return &Device{events: events, notifier: notifier}
}

func (h *Device) SendAlert(w http.ResponseWriter, r *http.Request) {
	var req request.SendAlert
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.record(w, r, model.EventAlert, req.AlertType, req.Message, "Alert saved to database.")
}

func (h *Device) SendMalfunction(w http.ResponseWriter, r *http.Request) {
	var req request.SendMalfunction
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.record(w, r, model.EventMalfunction, req.MalfunctionType, req.Message, "Malfunction saved to database.")
}

func (h *Device) SendLog(w http.ResponseWriter, r *http.Request) {
	var req request.SendLog
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.record(w, r, model.EventLog, req.LogType, req.Message, "Log saved to database.")
}

// record stores the event and, once it is committed, publishes it.
func (h *Device) record(w http.ResponseWriter, r *http.Request, kind model.EventKind, eventType string, message *string, saved string) {
	cred, ok := credential(w, r)
	if !ok {
		return
	}

	event, err := h.events.Record(r.Context(), kind, cred.ID, eventType, nonEmpty(message))
	if err != nil {
		writeStoreError(w, r, err, "No device registered for this API key", "")
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyEvent(r.Context(), event)
	}
	response.WriteSuccess(w, http.StatusOK, saved, event)
}
