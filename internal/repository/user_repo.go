package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/voluntrack/voluntrack/internal/models"
)

const userColumns = `id, email, name, phone, password_hash, role, status, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, phone, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.Email, user.Name, user.Phone, user.PasswordHash, user.Role, user.Status).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) ListPending(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Approve flips a pending user of the given role to approved. It returns
// pgx.ErrNoRows when no such pending user exists.
func (r *UserRepository) Approve(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	query := `
		UPDATE users
		SET status = 'approved', updated_at = NOW()
		WHERE id = $1 AND role = $2 AND status = 'pending'
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id, role))
}

// DeletePending removes a pending user of the given role. It reports whether
// a row was deleted.
func (r *UserRepository) DeletePending(ctx context.Context, id int64, role models.Role) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM users
		WHERE id = $1 AND role = $2 AND status = 'pending'
	`, id, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
	return err
}
