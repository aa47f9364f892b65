package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/watchsec/commnode/internal/model"
)

// DeviceRegistration is what a configurator submits to provision a device.
type DeviceRegistration struct {
	// Secret is the API key the device will authenticate with.
	Secret       string
	Location     string
	MotionSensor bool
	SoundSensor  bool
	FireSensor   bool
	GasSensor    bool
	BusinessID   int64
}

// DeviceService provisions security devices and resolves the device bound
// to a credential.
type DeviceService struct {
	db     DB
	runner *Runner
}

// NewDeviceService creates a new DeviceService. Registration runs through
// runner; reads go straight to db.
func NewDeviceService(db DB, runner *Runner) *DeviceService {
	return &DeviceService{db: db, runner: runner}
}

// Register creates the device credential and the device in one transaction.
// An unknown business fails with ErrNotFound, a secret already in use with
// ErrConstraint.
func (s *DeviceService) Register(ctx context.Context, reg DeviceRegistration) (*model.Device, error) {
	var device *model.Device
	err := s.runner.Run(ctx, "register_device", func(ctx context.Context, tx Tx) error {
		ok, err := businessExists(ctx, tx, reg.BusinessID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("business %d not found", reg.BusinessID)
		}

		desc := "device: " + reg.Location
		credID, err := InsertCredential(ctx, tx, reg.Secret, model.LevelDevice, &desc)
		if err != nil {
			return err
		}

		d := model.Device{
			Name:         reg.Location,
			MotionSensor: reg.MotionSensor,
			SoundSensor:  reg.SoundSensor,
			FireSensor:   reg.FireSensor,
			GasSensor:    reg.GasSensor,
			BusinessID:   reg.BusinessID,
			CredentialID: credID,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO security_devices (api_key_id, name, motion_sensor, sound_sensor, fire_sensor, gas_sensor, business_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now()) RETURNING id, created_at`,
			d.CredentialID, d.Name, d.MotionSensor, d.SoundSensor, d.FireSensor, d.GasSensor, d.BusinessID,
		).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			return Classify(fmt.Errorf("insert device: %w", err))
		}
		device = &d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return device, nil
}

// GetByCredential returns the device authenticated by the given credential.
func (s *DeviceService) GetByCredential(ctx context.Context, credentialID int64) (*model.Device, error) {
	d, err := scanDevice(s.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM security_devices WHERE api_key_id = $1`, credentialID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("no device bound to api key %d", credentialID)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
