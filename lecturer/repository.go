package lecturer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested lecturer does not exist.
var ErrNotFound = errors.New("lecturer: not found")

// Repository provides access to lecturer profiles stored in the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id::text, email, first_name, last_name, COALESCE(employee_id, ''),
	COALESCE(department, ''), is_active, date_joined`

// GetByID fetches a lecturer profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1 AND role = 'Lecturer'`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lecturer: query by id: %w", err)
	}
	return profile, nil
}

// List fetches lecturer profiles ordered by name.
func (r *Repository) List(ctx context.Context, filters Filters) ([]Profile, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	args := []any{}
	where := ` WHERE role = 'Lecturer'`
	if filters.Department != "" {
		args = append(args, filters.Department)
		where += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filters.ActiveOnly {
		where += " AND is_active"
	}
	args = append(args, limit)
	query := `SELECT ` + profileColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY last_name ASC, first_name ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lecturer: list: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("lecturer: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lecturer: iterate profiles: %w", err)
	}
	return profiles, nil
}

// Update applies the non-nil fields and returns the stored profile.
func (r *Repository) Update(ctx context.Context, id string, params UpdateParams) (Profile, error) {
	const query = `
		UPDATE users
		SET department = COALESCE($2, department),
		    employee_id = COALESCE($3, employee_id),
		    is_active = COALESCE($4, is_active),
		    updated_at = now()
		WHERE id = $1 AND role = 'Lecturer'
		RETURNING ` + profileColumns

	userID, err := uuid.Parse(id)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID, params.Department, params.EmployeeID, params.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lecturer: update: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.EmployeeID, &p.Department, &p.IsActive, &p.DateJoined)
	return p, err
}
