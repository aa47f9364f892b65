package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

func registerBody() map[string]any {
	return map[string]any{
		"api_key":         "0123456789abcdef0123456789abcdef",
		"device_location": "Back door",
		"motion":          true,
		"sound":           false,
		"fire":            true,
		"gas":             false,
		"business_id":     3,
	}
}

func newConfigurator() (*Configurator, *mockDeviceRegistry, *mockCredentialFinder, *mockBusinessStore) {
	devices := &mockDeviceRegistry{}
	creds := &mockCredentialFinder{}
	businesses := &mockBusinessStore{}
	return NewConfigurator(devices, creds, businesses), devices, creds, businesses
}

func TestRegisterDevice_Success(t *testing.T) {
	h, devices, _, _ := newConfigurator()
	want := core.DeviceRegistration{
		Secret:       "0123456789abcdef0123456789abcdef",
		Location:     "Back door",
		MotionSensor: true,
		FireSensor:   true,
		BusinessID:   3,
	}
	devices.On("Register", mock.Anything, want).Return(&model.Device{ID: 12, BusinessID: 3}, nil)

	rec := httptest.NewRecorder()
	h.RegisterDevice(rec, withCredential(newRequest(http.MethodPost, "/api/register_device", registerBody()), employeeCred))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 12, data["device_id"])
	assert.EqualValues(t, 3, data["business_id"])
	devices.AssertExpectations(t)
}

func TestRegisterDevice_StoreErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown business", &core.StoreError{Kind: core.KindNotFound, Err: errors.New("business 3 not found")}, http.StatusNotFound},
		{"duplicate key", &core.StoreError{Kind: core.KindConstraint, Constraint: "api_keys_key_hash_key", Err: errors.New("dup")}, http.StatusConflict},
		{"fatal", &core.StoreError{Kind: core.KindFatal, Err: errors.New("syntax")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, devices, _, _ := newConfigurator()
			devices.On("Register", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			h.RegisterDevice(rec, newRequest(http.MethodPost, "/api/register_device", registerBody()))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "error", decodeEnvelope(t, rec).Status)
		})
	}
}

func TestRegisterDevice_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"short key", func(b map[string]any) { b["api_key"] = "short" }},
		{"sensor not bool", func(b map[string]any) { b["motion"] = "yes" }},
		{"sensor null", func(b map[string]any) { b["gas"] = nil }},
		{"business id zero", func(b map[string]any) { b["business_id"] = 0 }},
		{"business id string", func(b map[string]any) { b["business_id"] = "3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, devices, _, _ := newConfigurator()
			body := registerBody()
			tt.mutate(body)

			rec := httptest.NewRecorder()
			h.RegisterDevice(rec, newRequest(http.MethodPost, "/api/register_device", body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			devices.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
		})
	}
}

func TestValidateEmployeeToken(t *testing.T) {
	h, _, _, _ := newConfigurator()
	rec := httptest.NewRecorder()
	h.ValidateEmployeeToken(rec, withCredential(httptest.NewRequest(http.MethodGet, "/api/validate_employee_auth_token", nil), employeeCred))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, model.LevelProvisioning, decodeData(t, rec)["access_level"])
}

func TestBusinessExists(t *testing.T) {
	h, _, _, businesses := newConfigurator()
	businesses.On("Exists", mock.Anything, int64(3)).Return(true, nil)
	businesses.On("Exists", mock.Anything, int64(4)).Return(false, nil)

	rec := httptest.NewRecorder()
	h.BusinessExists(rec, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/business_exists/3", nil), "id", "3"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["exists"])

	rec = httptest.NewRecorder()
	h.BusinessExists(rec, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/business_exists/4", nil), "id", "4"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Business not found", decodeEnvelope(t, rec).Message)
}

func TestBusinessExists_InvalidID(t *testing.T) {
	h, _, _, businesses := newConfigurator()
	for _, id := range []string{"abc", "0", "-2"} {
		rec := httptest.NewRecorder()
		h.BusinessExists(rec, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/business_exists/"+id, nil), "id", id))
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
	businesses.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestValidateDeviceRegistration(t *testing.T) {
	h, devices, creds, _ := newConfigurator()
	creds.On("FindByKey", mock.Anything, "device-key").Return(&model.Credential{ID: 30, AccessLevel: model.LevelDevice}, nil)
	creds.On("FindByKey", mock.Anything, "employee-key").Return(&model.Credential{ID: 20, AccessLevel: model.LevelProvisioning}, nil)
	creds.On("FindByKey", mock.Anything, "unknown-key").Return(nil, &core.StoreError{Kind: core.KindNotFound, Err: errors.New("no key")})
	devices.On("GetByCredential", mock.Anything, int64(30)).Return(&model.Device{ID: 12, BusinessID: 3}, nil)

	rec := httptest.NewRecorder()
	h.ValidateDeviceRegistration(rec, newRequest(http.MethodPost, "/api/validate_device_registration", map[string]any{"api_key": "device-key"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 12, decodeData(t, rec)["device_id"])

	for _, key := range []string{"employee-key", "unknown-key"} {
		rec = httptest.NewRecorder()
		h.ValidateDeviceRegistration(rec, newRequest(http.MethodPost, "/api/validate_device_registration", map[string]any{"api_key": key}))
		assert.Equal(t, http.StatusNotFound, rec.Code, key)
		assert.Equal(t, "Device not registered", decodeEnvelope(t, rec).Message)
	}
}
