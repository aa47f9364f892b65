package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/watchsec/commnode/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	businessColumns = `id, name, latitude, longitude, address, created_at`
	deviceColumns   = `id, name, motion_sensor, sound_sensor, fire_sensor, gas_sensor, business_id, api_key_id, created_at`
)

// BusinessService manages businesses and reads the devices installed at them.
type BusinessService struct {
	db     DB
	runner *Runner
}

// NewBusinessService creates a new BusinessService. Writes go through runner.
func NewBusinessService(db DB, runner *Runner) *BusinessService {
	return &BusinessService{db: db, runner: runner}
}

// Create inserts a business and fills in its id and created_at.
func (s *BusinessService) Create(ctx context.Context, b *model.Business) error {
	err := s.runner.Run(ctx, "create_business", func(ctx context.Context, tx Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO businesses (name, latitude, longitude, address, created_at) VALUES ($1, $2, $3, $4, now()) RETURNING id, created_at`,
			b.Name, b.Latitude, b.Longitude, b.Address,
		).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			return Classify(fmt.Errorf("insert business: %w", err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create business: %w", err)
	}
	return nil
}

// Get returns a business together with its devices.
func (s *BusinessService) Get(ctx context.Context, id int64) (*model.Business, error) {
	var b model.Business
	err := s.db.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.Latitude, &b.Longitude, &b.Address, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("business %d not found", id)
	}
	if err != nil {
		return nil, Classify(fmt.Errorf("get business %d: %w", id, err))
	}

	devices, err := listDevices(ctx, s.db, `WHERE business_id = $1`, id)
	if err != nil {
		return nil, err
	}
	b.Devices = devices
	return &b, nil
}

// List returns every business with its devices. Businesses and devices are
// read concurrently and joined in memory.
func (s *BusinessService) List(ctx context.Context) ([]model.Business, error) {
	var (
		businesses []model.Business
		devices    []model.Device
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.Query(gctx, `SELECT `+businessColumns+` FROM businesses ORDER BY id`)
		if err != nil {
			return Classify(fmt.Errorf("list businesses: %w", err))
		}
		defer rows.Close()

		for rows.Next() {
			var b model.Business
			if err := rows.Scan(&b.ID, &b.Name, &b.Latitude, &b.Longitude, &b.Address, &b.CreatedAt); err != nil {
				return Classify(fmt.Errorf("scan business: %w", err))
			}
			businesses = append(businesses, b)
		}
		if err := rows.Err(); err != nil {
			return Classify(fmt.Errorf("iterate businesses: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		devices, err = listDevices(gctx, s.db, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byBusiness := make(map[int64][]model.Device)
	for _, d := range devices {
		byBusiness[d.BusinessID] = append(byBusiness[d.BusinessID], d)
	}
	for i := range businesses {
		businesses[i].Devices = byBusiness[businesses[i].ID]
	}
	return businesses, nil
}

// Devices returns the devices of an existing business.
func (s *BusinessService) Devices(ctx context.Context, id int64) ([]model.Device, error) {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("business %d not found", id)
	}
	return listDevices(ctx, s.db, `WHERE business_id = $1`, id)
}

// Exists reports whether a business with the given id exists.
func (s *BusinessService) Exists(ctx context.Context, id int64) (bool, error) {
	return businessExists(ctx, s.db, id)
}

// Delete removes a business. Its devices and their events go with it, and
// the device keys are revoked in the same transaction.
func (s *BusinessService) Delete(ctx context.Context, id int64) error {
	err := s.runner.Run(ctx, "delete_business", func(ctx context.Context, tx Tx) error {
		var keyIDs []int64
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(array_agg(api_key_id), '{}') FROM security_devices WHERE business_id = $1`, id,
		).Scan(&keyIDs)
		if err != nil {
			return Classify(fmt.Errorf("list device keys of business %d: %w", id, err))
		}

		tag, err := tx.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
		if err != nil {
			return Classify(fmt.Errorf("delete business %d: %w", id, err))
		}
		if tag.RowsAffected() == 0 {
			return notFound("business %d not found", id)
		}

		if len(keyIDs) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM api_keys WHERE id = ANY($1)`, keyIDs); err != nil {
				return Classify(fmt.Errorf("revoke device keys of business %d: %w", id, err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	return nil
}

func businessExists(ctx context.Context, q DB, id int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM businesses WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, Classify(fmt.Errorf("check business %d: %w", id, err))
	}
	return exists, nil
}

func listDevices(ctx context.Context, q DB, where string, args ...any) ([]model.Device, error) {
	rows, err := q.Query(ctx, `SELECT `+deviceColumns+` FROM security_devices `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, Classify(fmt.Errorf("list devices: %w", err))
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(fmt.Errorf("iterate devices: %w", err))
	}
	return devices, nil
}

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	err := row.Scan(&d.ID, &d.Name, &d.MotionSensor, &d.SoundSensor, &d.FireSensor, &d.GasSensor,
		&d.BusinessID, &d.CredentialID, &d.CreatedAt)
	if err != nil {
		return nil, Classify(fmt.Errorf("scan device: %w", err))
	}
	return &d, nil
}
