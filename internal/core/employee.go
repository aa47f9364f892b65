package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/watchsec/commnode/internal/model"
	"github.com/watchsec/commnode/internal/platform"
)

// EmployeeService manages employees. Every employee owns a provisioning key
// used by the configurator.
type EmployeeService struct {
	db     DB
	runner *Runner
}

// NewEmployeeService creates a new EmployeeService.
func NewEmployeeService(db DB, runner *Runner) *EmployeeService {
	return &EmployeeService{db: db, runner: runner}
}

// Create inserts an employee with a freshly generated provisioning key and
// returns the employee along with the raw key. The raw key is not stored and
// must be handed to the employee now.
func (s *EmployeeService) Create(ctx context.Context, firstName, lastName string) (*model.Employee, string, error) {
	secret := platform.NewSecret()
	e := model.Employee{FirstName: firstName, LastName: lastName}

	err := s.runner.Run(ctx, "create_employee", func(ctx context.Context, tx Tx) error {
		desc := fmt.Sprintf("employee: %s %s", firstName, lastName)
		credID, err := InsertCredential(ctx, tx, secret, model.LevelProvisioning, &desc)
		if err != nil {
			return err
		}
		e.CredentialID = credID

		err = tx.QueryRow(ctx,
			`INSERT INTO employees (first_name, last_name, api_key_id, created_at) VALUES ($1, $2, $3, now()) RETURNING id, created_at`,
			e.FirstName, e.LastName, e.CredentialID,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return Classify(fmt.Errorf("insert employee: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("create employee: %w", err)
	}
	return &e, secret, nil
}

// List returns all employees.
func (s *EmployeeService) List(ctx context.Context) ([]model.Employee, error) {
	rows, err := s.db.Query(ctx, `SELECT id, first_name, last_name, api_key_id, created_at FROM employees ORDER BY id`)
	if err != nil {
		return nil, Classify(fmt.Errorf("list employees: %w", err))
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.CredentialID, &e.CreatedAt); err != nil {
			return nil, Classify(fmt.Errorf("scan employee: %w", err))
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(fmt.Errorf("iterate employees: %w", err))
	}
	return employees, nil
}

// Delete removes an employee and revokes its provisioning key.
func (s *EmployeeService) Delete(ctx context.Context, id int64) error {
	err := s.runner.Run(ctx, "delete_employee", func(ctx context.Context, tx Tx) error {
		var credID int64
		err := tx.QueryRow(ctx, `DELETE FROM employees WHERE id = $1 RETURNING api_key_id`, id).Scan(&credID)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("employee %d not found", id)
		}
		if err != nil {
			return Classify(fmt.Errorf("delete employee %d: %w", id, err))
		}
		if _, err := tx.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, credID); err != nil {
			return Classify(fmt.Errorf("delete api key %d: %w", credID, err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return nil
}
