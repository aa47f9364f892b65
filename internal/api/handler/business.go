package handler

import (
	"context"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/model"
)

// BusinessStore is the business persistence used by the dashboard.
type BusinessStore interface {
	Create(ctx context.Context, b *model.Business) error
	Get(ctx context.Context, id int64) (*model.Business, error)
	List(ctx context.Context) ([]model.Business, error)
	Devices(ctx context.Context, id int64) ([]model.Device, error)
	Delete(ctx context.Context, id int64) error
}

const msgBusinessNotFound = "Business not found"

type Business struct {
	svc BusinessStore
}

func NewBusiness(svc BusinessStore) *Business {
	return &Business{svc: svc}
}

// List returns every business with its devices.
func (h *Business) List(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.svc.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err, msgBusinessNotFound, "")
		return
	}
	if businesses == nil {
		businesses = []model.Business{}
	}
	response.WriteSuccess(w, http.StatusOK, "", businesses)
}

func (h *Business) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBusiness
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := &model.Business{
		Name:      req.Name,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Address:   req.Address,
	}
	if err := h.svc.Create(r.Context(), b); err != nil {
		writeStoreError(w, r, err, msgBusinessNotFound, "Business already exists")
		return
	}
	response.WriteSuccess(w, http.StatusCreated, "Business created.", b)
}

func (h *Business) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, msgBusinessNotFound, "")
		return
	}
	response.WriteSuccess(w, http.StatusOK, "", b)
}

func (h *Business) Devices(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	devices, err := h.svc.Devices(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, msgBusinessNotFound, "")
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	response.WriteSuccess(w, http.StatusOK, "", devices)
}

// Delete removes a business; its devices and their events go with it.
func (h *Business) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err, msgBusinessNotFound, "Business is still referenced")
		return
	}
	response.WriteSuccess(w, http.StatusOK, "Business deleted.", nil)
}
