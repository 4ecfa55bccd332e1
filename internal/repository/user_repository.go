package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/train4best-api/internal/models"
)

const userColumns = `u.id, u.email, u.username, u.password_hash, u.user_type_id, ut.code AS role, u.active, u.last_login, u.created_at, u.updated_at`

// UserRepository provides database access for users and their user types.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by (already normalised) email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUserByEmail(ctx, r.db, email)
}

func getUserByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u JOIN user_types ut ON ut.id = u.user_type_id WHERE u.email = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u JOIN user_types ut ON ut.id = u.user_type_id WHERE u.id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindUserTypeByCode returns the user type carrying the given code.
func (r *UserRepository) FindUserTypeByCode(ctx context.Context, code models.UserRole) (*models.UserType, error) {
	const query = `SELECT id, code, name FROM user_types WHERE code = $1 LIMIT 1`
	var userType models.UserType
	if err := r.db.GetContext(ctx, &userType, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user type: %w", err)
	}
	return &userType, nil
}

// insertUserIfAbsent inserts the user unless the email is already taken.
// It reports whether a row was written; callers re-read by email when it was not.
func insertUserIfAbsent(ctx context.Context, e sqlx.ExtContext, user *models.User) (bool, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, username, password_hash, user_type_id, active, created_at, updated_at) VALUES (:id, :email, :username, :password_hash, :user_type_id, :active, :created_at, :updated_at) ON CONFLICT (email) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, e, query, user)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
