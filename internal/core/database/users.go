package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at, updated_at`

func scanUser(s rowScanner, u *models.User) error {
	return s.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
}

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	const q = `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return c.q.QueryRowContext(ctx, q,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	return c.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (c *DatabaseClient) getUser(ctx context.Context, q string, arg string) (*models.User, error) {
	var u models.User
	err := scanUser(c.q.QueryRowContext(ctx, q, arg), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers pages through users newest first, optionally by role.
func (c *DatabaseClient) ListUsers(ctx context.Context, f core.UserFilter) ([]models.User, int, error) {
	limit, offset := pageBounds(f.Page)
	const q = `
		SELECT ` + userColumns + `, count(*) OVER ()
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := c.q.QueryContext(ctx, q, string(f.Role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.User{}
	total := 0
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role,
			&u.CreatedAt, &u.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (c *DatabaseClient) UpdateUserRole(ctx context.Context, id string, role models.Role) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return c.affectedOne(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
}

func (c *DatabaseClient) DeleteUser(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ok, err := c.affectedOne(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return false, core.ErrReferenced
	}
	return ok, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503" // foreign_key_violation
}
