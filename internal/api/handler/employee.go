package handler

import (
	"context"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/model"
)

// EmployeeStore manages employees and their provisioning keys.
type EmployeeStore interface {
	Create(ctx context.Context, firstName, lastName string) (*model.Employee, string, error)
	List(ctx context.Context) ([]model.Employee, error)
	Delete(ctx context.Context, id int64) error
}

const msgEmployeeNotFound = "Employee not found"

type Employee struct {
	svc EmployeeStore
}

func NewEmployee(svc EmployeeStore) *Employee {
	return &Employee{svc: svc}
}

func (h *Employee) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.svc.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err, msgEmployeeNotFound, "")
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	response.WriteSuccess(w, http.StatusOK, "", employees)
}

type createdEmployee struct {
	Employee *model.Employee `json:"employee"`
	APIKey   string          `json:"api_key"`
}

// Create adds an employee with a new provisioning key. The raw key is only
// ever returned here.
func (h *Employee) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateEmployee
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, secret, err := h.svc.Create(r.Context(), req.FirstName, req.LastName)
	if err != nil {
		writeStoreError(w, r, err, msgEmployeeNotFound, "Employee key collision, retry")
		return
	}
	response.WriteSuccess(w, http.StatusCreated, "Employee created.", createdEmployee{Employee: e, APIKey: secret})
}

// Delete removes an employee and revokes its key.
func (h *Employee) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err, msgEmployeeNotFound, "")
		return
	}
	response.WriteSuccess(w, http.StatusOK, "Employee deleted.", nil)
}
