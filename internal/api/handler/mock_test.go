package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
)

type mockDeviceRegistry struct {
	mock.Mock
}

func (m *mockDeviceRegistry) Register(ctx context.Context, reg core.DeviceRegistration) (*model.Device, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRegistry) GetByCredential(ctx context.Context, credentialID int64) (*model.Device, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

type mockCredentialFinder struct {
	mock.Mock
}

func (m *mockCredentialFinder) FindByKey(ctx context.Context, secret string) (*model.Credential, error) {
	args := m.Called(ctx, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

// mockBusinessStore serves both BusinessStore and BusinessChecker.
type mockBusinessStore struct {
	mock.Mock
}

func (m *mockBusinessStore) Create(ctx context.Context, b *model.Business) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBusinessStore) Get(ctx context.Context, id int64) (*model.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Business), args.Error(1)
}

func (m *mockBusinessStore) List(ctx context.Context) ([]model.Business, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *mockBusinessStore) Devices(ctx context.Context, id int64) ([]model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockBusinessStore) Exists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockBusinessStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// mockEventStore serves both EventRecorder and EventStore.
type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) Record(ctx context.Context, kind model.EventKind, credentialID int64, eventType string, message *string) (*model.Event, error) {
	args := m.Called(ctx, kind, credentialID, eventType, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *mockEventStore) List(ctx context.Context, kind model.EventKind, filter core.EventFilter, limit int, cursor int64) ([]model.Event, bool, error) {
	args := m.Called(ctx, kind, filter, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.Event), args.Bool(1), args.Error(2)
}

func (m *mockEventStore) Solve(ctx context.Context, kind model.EventKind, id int64) error {
	return m.Called(ctx, kind, id).Error(0)
}

type mockEmployeeStore struct {
	mock.Mock
}

func (m *mockEmployeeStore) Create(ctx context.Context, firstName, lastName string) (*model.Employee, string, error) {
	args := m.Called(ctx, firstName, lastName)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Employee), args.String(1), args.Error(2)
}

func (m *mockEmployeeStore) List(ctx context.Context) ([]model.Employee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Employee), args.Error(1)
}

func (m *mockEmployeeStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyEvent(ctx context.Context, e *model.Event) {
	m.Called(ctx, e)
}
