package handler

import (
	"context"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

// DeviceRegistry provisions devices and finds the device bound to a key.
type DeviceRegistry interface {
	Register(ctx context.Context, reg core.DeviceRegistration) (*model.Device, error)
	GetByCredential(ctx context.Context, credentialID int64) (*model.Device, error)
}

// CredentialFinder looks up a credential by its raw secret.
type CredentialFinder interface {
	FindByKey(ctx context.Context, secret string) (*model.Credential, error)
}

// BusinessChecker reports whether a business exists.
type BusinessChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Configurator serves the provisioning endpoints used by employees setting
// up devices on site.
type Configurator struct {
	devices     DeviceRegistry
	credentials CredentialFinder
	businesses  BusinessChecker
}

func NewConfigurator(devices DeviceRegistry, credentials CredentialFinder, businesses BusinessChecker) *Configurator {
	return &Configurator{devices: devices, credentials: credentials, businesses: businesses}
}

type deviceRef struct {
	DeviceID   int64 `json:"device_id"`
	BusinessID int64 `json:"business_id"`
}

// RegisterDevice stores the device's API key and the device itself in one
// transaction.
func (h *Configurator) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterDevice
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	device, err := h.devices.Register(r.Context(), core.DeviceRegistration{
		Secret:       req.APIKey,
		Location:     req.DeviceLocation,
		MotionSensor: *req.Motion,
		SoundSensor:  *req.Sound,
		FireSensor:   *req.Fire,
		GasSensor:    *req.Gas,
		BusinessID:   req.BusinessID,
	})
	if err != nil {
		writeStoreError(w, r, err, "Business not found", "API key already registered")
		return
	}

	response.WriteSuccess(w, http.StatusOK, "Device registered.", deviceRef{
		DeviceID:   device.ID,
		BusinessID: device.BusinessID,
	})
}

// ValidateEmployeeToken succeeds for any credential admitted at the
// provisioning level; the check itself happens in RequireAccess.
func (h *Configurator) ValidateEmployeeToken(w http.ResponseWriter, r *http.Request) {
	cred, ok := credential(w, r)
	if !ok {
		return
	}
	response.WriteSuccess(w, http.StatusOK, "", map[string]int{"access_level": cred.AccessLevel})
}

func (h *Configurator) BusinessExists(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	exists, err := h.businesses.Exists(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, "Business not found", "")
		return
	}
	if !exists {
		response.WriteError(w, http.StatusNotFound, "Business not found")
		return
	}
	response.WriteSuccess(w, http.StatusOK, "", map[string]bool{"exists": true})
}

// ValidateDeviceRegistration confirms that a device key was registered and
// is bound to a device.
func (h *Configurator) ValidateDeviceRegistration(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateDeviceRegistration
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	const notRegistered = "Device not registered"
	cred, err := h.credentials.FindByKey(r.Context(), req.APIKey)
	if err != nil {
		writeStoreError(w, r, err, notRegistered, "")
		return
	}
	if cred.AccessLevel != model.LevelDevice {
		response.WriteError(w, http.StatusNotFound, notRegistered)
		return
	}

	device, err := h.devices.GetByCredential(r.Context(), cred.ID)
	if err != nil {
		writeStoreError(w, r, err, notRegistered, "")
		return
	}
	response.WriteSuccess(w, http.StatusOK, "", deviceRef{DeviceID: device.ID, BusinessID: device.BusinessID})
}
