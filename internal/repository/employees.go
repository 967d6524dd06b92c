package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/policy"
)

const employeeSelect = `
	SELECT
		e.id,
		e.first_name,
		e.last_name,
		e.photo_url,
		e.photo_public_id,
		e.resume_url,
		e.resume_public_id,
		e.uploaded_by,
		u.email,
		e.checked_by,
		c.email,
		e.status,
		e.created_at,
		e.updated_at,
		e.version
	FROM employees e
	JOIN accounts u ON u.id = e.uploaded_by
	LEFT JOIN accounts c ON c.id = e.checked_by
`

func scanEmployee(row interface{ Scan(...any) error }) (*domain.Employee, error) {
	var employee domain.Employee
	var checkedBy uuid.NullUUID
	var checkedByEmail sql.NullString

	dst := []any{
		&employee.ID,
		&employee.FirstName,
		&employee.LastName,
		&employee.PhotoURL,
		&employee.PhotoPublicID,
		&employee.ResumeURL,
		&employee.ResumePublicID,
		&employee.UploadedBy,
		&employee.UploadedByEmail,
		&checkedBy,
		&checkedByEmail,
		&employee.Status,
		&employee.CreatedAt,
		&employee.UpdatedAt,
		&employee.Version,
	}
	if err := row.Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if checkedBy.Valid {
		employee.CheckedBy = &checkedBy.UUID
	}
	if checkedByEmail.Valid {
		employee.CheckedByEmail = &checkedByEmail.String
	}

	return &employee, nil
}

func (r *Repository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (
			id, first_name, last_name, photo_url, photo_public_id, resume_url, resume_public_id,
			uploaded_by, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{
		employee.ID,
		employee.FirstName,
		employee.LastName,
		employee.PhotoURL,
		employee.PhotoPublicID,
		employee.ResumeURL,
		employee.ResumePublicID,
		employee.UploadedBy,
		employee.Status,
		employee.CreatedAt,
		employee.UpdatedAt,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&employee.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	query := employeeSelect + ` WHERE e.id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanEmployee(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) ListEmployees(ctx context.Context, scope policy.EmployeeScope) ([]*domain.Employee, error) {
	var query string
	switch scope.Kind {
	case policy.ScopeCreator:
		query = employeeSelect + ` WHERE u.created_by = $1 AND u.is_maker = TRUE ORDER BY e.created_at DESC`
	case policy.ScopeUploader:
		query = employeeSelect + ` WHERE e.uploaded_by = $1 ORDER BY e.created_at DESC`
	default:
		// 既不是 checker 也不是 maker 的账号看不到任何记录
		return []*domain.Employee{}, nil
	}

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []*domain.Employee{}
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) UpdateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		UPDATE employees
		SET
			status = $1,
			checked_by = $2,
			updated_at = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	employee.UpdatedAt = time.Now()

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{employee.Status, uuidOrNull(employee.CheckedBy), employee.UpdatedAt, employee.ID, employee.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&employee.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEditConflict
		}
		return err
	}

	return nil
}
