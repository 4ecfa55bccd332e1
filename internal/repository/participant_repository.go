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

const participantColumns = `id, user_id, full_name, gender, address, phone_number, birth_date, job_title, company, created_at, updated_at`

// ParticipantRepository manages participant profiles.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs the repository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// FindByUserID returns the first profile attached to the user.
func (r *ParticipantRepository) FindByUserID(ctx context.Context, userID string) (*models.Participant, error) {
	return getParticipantByUserID(ctx, r.db, userID)
}

func getParticipantByUserID(ctx context.Context, q sqlx.QueryerContext, userID string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	var participant models.Participant
	if err := sqlx.GetContext(ctx, q, &participant, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find participant by user: %w", err)
	}
	return &participant, nil
}

// insertParticipantIfAbsent inserts the profile unless the user already owns one.
func insertParticipantIfAbsent(ctx context.Context, e sqlx.ExtContext, participant *models.Participant) (bool, error) {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = now
	}
	participant.UpdatedAt = now

	const query = `INSERT INTO participants (id, user_id, full_name, gender, address, phone_number, birth_date, job_title, company, created_at, updated_at) VALUES (:id, :user_id, :full_name, :gender, :address, :phone_number, :birth_date, :job_title, :company, :created_at, :updated_at) ON CONFLICT (user_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, e, query, participant)
	if err != nil {
		return false, fmt.Errorf("create participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create participant rows affected: %w", err)
	}
	return affected == 1, nil
}
