package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/watchsec/commnode/internal/model"
)

// eventTables maps each event kind to its table. Column names are derived
// from the kind: <kind>_type and <kind>_time.
var eventTables = map[model.EventKind]string{
	model.EventAlert:       "alerts",
	model.EventMalfunction: "malfunctions",
	model.EventLog:         "logs",
}

// EventFilter narrows an event listing. Nil fields do not filter.
type EventFilter struct {
	DeviceID   *int64
	BusinessID *int64
	// Resolved is ignored for logs.
	Resolved *bool
}

// EventService records and reads alerts, malfunctions and device logs.
type EventService struct {
	db     DB
	runner *Runner
}

// NewEventService creates a new EventService.
func NewEventService(db DB, runner *Runner) *EventService {
	return &EventService{db: db, runner: runner}
}

func eventTable(kind model.EventKind) (string, error) {
	table, ok := eventTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown event kind %q", kind)
	}
	return table, nil
}

// Record stores an event for the device bound to credentialID and returns it
// denormalised with the device and business names. The returned event has
// been committed.
func (s *EventService) Record(ctx context.Context, kind model.EventKind, credentialID int64, eventType string, message *string) (*model.Event, error) {
	table, err := eventTable(kind)
	if err != nil {
		return nil, err
	}

	var event *model.Event
	err = s.runner.Run(ctx, "insert_"+string(kind), func(ctx context.Context, tx Tx) error {
		e := model.Event{Kind: kind, Type: eventType, Message: message}
		err := tx.QueryRow(ctx,
			`SELECT d.id, d.name, b.id, b.name FROM security_devices d JOIN businesses b ON b.id = d.business_id WHERE d.api_key_id = $1`,
			credentialID,
		).Scan(&e.DeviceID, &e.DeviceName, &e.BusinessID, &e.BusinessName)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("no device bound to api key %d", credentialID)
		}
		if err != nil {
			return Classify(fmt.Errorf("resolve device: %w", err))
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO `+table+` (device_id, `+string(kind)+`_type, message, `+string(kind)+`_time) VALUES ($1, $2, $3, now()) RETURNING id, `+string(kind)+`_time`,
			e.DeviceID, e.Type, e.Message,
		).Scan(&e.ID, &e.Time)
		if err != nil {
			return Classify(fmt.Errorf("insert %s: %w", kind, err))
		}
		event = &e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", kind, err)
	}
	return event, nil
}

// List returns events newest first with cursor-based pagination. cursor is
// the id of the last event of the previous page, 0 for the first page.
func (s *EventService) List(ctx context.Context, kind model.EventKind, filter EventFilter, limit int, cursor int64) ([]model.Event, bool, error) {
	table, err := eventTable(kind)
	if err != nil {
		return nil, false, err
	}

	resolvedCol := "false"
	if kind.Resolvable() {
		resolvedCol = "e.resolved"
	}
	query := `SELECT e.id, e.device_id, d.name, e.` + string(kind) + `_type, e.message, e.` + string(kind) + `_time, ` + resolvedCol + `, b.id, b.name
		FROM ` + table + ` e
		JOIN security_devices d ON d.id = e.device_id
		JOIN businesses b ON b.id = d.business_id
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if cursor > 0 {
		query += fmt.Sprintf(` AND e.id < $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}
	if filter.DeviceID != nil {
		query += fmt.Sprintf(` AND e.device_id = $%d`, argIdx)
		args = append(args, *filter.DeviceID)
		argIdx++
	}
	if filter.BusinessID != nil {
		query += fmt.Sprintf(` AND d.business_id = $%d`, argIdx)
		args = append(args, *filter.BusinessID)
		argIdx++
	}
	if filter.Resolved != nil && kind.Resolvable() {
		query += fmt.Sprintf(` AND e.resolved = $%d`, argIdx)
		args = append(args, *filter.Resolved)
		argIdx++
	}

	query += ` ORDER BY e.id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, Classify(fmt.Errorf("list %s: %w", table, err))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e := model.Event{Kind: kind}
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.DeviceName, &e.Type, &e.Message, &e.Time, &e.Resolved, &e.BusinessID, &e.BusinessName); err != nil {
			return nil, false, Classify(fmt.Errorf("scan %s: %w", kind, err))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, Classify(fmt.Errorf("iterate %s: %w", table, err))
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, hasMore, nil
}

// Solve marks an alert or malfunction as resolved.
func (s *EventService) Solve(ctx context.Context, kind model.EventKind, id int64) error {
	if !kind.Resolvable() {
		return fmt.Errorf("%s events cannot be resolved", kind)
	}
	table, err := eventTable(kind)
	if err != nil {
		return err
	}

	err = s.runner.Run(ctx, "solve_"+string(kind), func(ctx context.Context, tx Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE `+table+` SET resolved = true WHERE id = $1`, id)
		if err != nil {
			return Classify(fmt.Errorf("update %s %d: %w", kind, id, err))
		}
		if tag.RowsAffected() == 0 {
			return notFound("%s %d not found", kind, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("solve %s: %w", kind, err)
	}
	return nil
}
