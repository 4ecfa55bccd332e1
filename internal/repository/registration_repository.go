package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/pkg/database"
)

// Constraint names from migrations/0001_init.up.sql.
const (
	activeRegistrationConstraint = "uq_course_registrations_active"
	paymentReferenceConstraint   = "uq_payments_reference_number"
)

var (
	// ErrNoSeatAvailable signals that the class quota is exhausted.
	ErrNoSeatAvailable = errors.New("no seat available")
	// ErrDuplicateRegistration signals an active registration for the same class and participant.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrDuplicateReference signals a payment reference number collision.
	ErrDuplicateReference = errors.New("duplicate payment reference")
)

// IdentityWriter stores lazily provisioned users and participant profiles. Both calls are
// idempotent: when the row already exists the stored one is returned with created=false.
type IdentityWriter interface {
	EnsureUser(ctx context.Context, candidate *models.User) (*models.User, bool, error)
	EnsureParticipant(ctx context.Context, candidate *models.Participant) (*models.Participant, bool, error)
}

// RegistrationWriter groups the statements executed inside one registration transaction.
type RegistrationWriter interface {
	IdentityWriter
	ReserveSeat(ctx context.Context, classID string) error
	HasActiveRegistration(ctx context.Context, classID, participantID string) (bool, error)
	CreateRegistration(ctx context.Context, registration *models.CourseRegistration) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// RegistrationRepository persists course registrations and their payments.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithinTx runs fn against a single database transaction; any error rolls every statement back.
func (r *RegistrationRepository) WithinTx(ctx context.Context, fn func(w RegistrationWriter) error) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		return fn(&registrationTx{tx: tx})
	})
}

type registrationTx struct {
	tx *sqlx.Tx
}

// ReserveSeat increments seats_taken only while it stays below quota. The row lock it takes
// serialises concurrent registrations for the same class until commit.
func (t *registrationTx) ReserveSeat(ctx context.Context, classID string) error {
	const query = `UPDATE classes SET seats_taken = seats_taken + 1, updated_at = NOW() WHERE id = $1 AND seats_taken < quota`
	res, err := t.tx.ExecContext(ctx, query, classID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve seat rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNoSeatAvailable
	}
	return nil
}

func (t *registrationTx) EnsureUser(ctx context.Context, candidate *models.User) (*models.User, bool, error) {
	created, err := insertUserIfAbsent(ctx, t.tx, candidate)
	if err != nil {
		return nil, false, err
	}
	if created {
		return candidate, true, nil
	}
	user, err := getUserByEmail(ctx, t.tx, candidate.Email)
	if err != nil {
		return nil, false, fmt.Errorf("reload user: %w", err)
	}
	return user, false, nil
}

func (t *registrationTx) EnsureParticipant(ctx context.Context, candidate *models.Participant) (*models.Participant, bool, error) {
	existing, err := getParticipantByUserID(ctx, t.tx, candidate.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	created, err := insertParticipantIfAbsent(ctx, t.tx, candidate)
	if err != nil {
		return nil, false, err
	}
	if created {
		return candidate, true, nil
	}
	participant, err := getParticipantByUserID(ctx, t.tx, candidate.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("reload participant: %w", err)
	}
	return participant, false, nil
}

func (t *registrationTx) HasActiveRegistration(ctx context.Context, classID, participantID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_registrations WHERE class_id = $1 AND participant_id = $2 AND registration_status <> 'Cancelled')`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, classID, participantID); err != nil {
		return false, fmt.Errorf("check existing registration: %w", err)
	}
	return exists, nil
}

func (t *registrationTx) CreateRegistration(ctx context.Context, registration *models.CourseRegistration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.RegistrationDate.IsZero() {
		registration.RegistrationDate = now
	}
	registration.CreatedAt = now
	registration.UpdatedAt = now

	const query = `INSERT INTO course_registrations
	(id, class_id, participant_id, registration_date, registration_status, payment_amount, payment_status, payment_method, attendances, created_at, updated_at)
	VALUES (:id, :class_id, :participant_id, :registration_date, :registration_status, :payment_amount, :payment_status, :payment_method, :attendances, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, registration); err != nil {
		if database.IsUniqueViolation(err, activeRegistrationConstraint) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (t *registrationTx) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now

	const query = `INSERT INTO payments
	(id, registration_id, amount, payment_method, reference_number, status, payment_date, created_at, updated_at)
	VALUES (:id, :registration_id, :amount, :payment_method, :reference_number, :status, :payment_date, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, payment); err != nil {
		if database.IsUniqueViolation(err, paymentReferenceConstraint) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

const registrationDetailSelect = `SELECT cr.id, cr.class_id, cr.participant_id, cr.registration_date, cr.registration_status, cr.payment_amount, cr.payment_status, cr.payment_method, cr.attendances, cr.created_at, cr.updated_at,
       cl.course_id, co.name AS course_name, cl.location, cl.room, cl.start_date, cl.end_date,
       p.full_name AS participant_name, u.email, pay.reference_number
FROM course_registrations cr
JOIN classes cl ON cl.id = cr.class_id
JOIN courses co ON co.id = cl.course_id
JOIN participants p ON p.id = cr.participant_id
JOIN users u ON u.id = p.user_id
LEFT JOIN payments pay ON pay.registration_id = cr.id`

// ListByUser returns every registration owned by the user, newest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error) {
	query := registrationDetailSelect + ` WHERE p.user_id = $1 ORDER BY cr.registration_date DESC`
	registrations := make([]models.RegistrationDetail, 0)
	if err := r.db.SelectContext(ctx, &registrations, query, userID); err != nil {
		return nil, fmt.Errorf("list registrations by user: %w", err)
	}
	return registrations, nil
}

// ListByClass returns the active roster of a class ordered by registration date.
func (r *RegistrationRepository) ListByClass(ctx context.Context, classID string) ([]models.RegistrationDetail, error) {
	query := registrationDetailSelect + ` WHERE cr.class_id = $1 AND cr.registration_status <> 'Cancelled' ORDER BY cr.registration_date ASC`
	registrations := make([]models.RegistrationDetail, 0)
	if err := r.db.SelectContext(ctx, &registrations, query, classID); err != nil {
		return nil, fmt.Errorf("list registrations by class: %w", err)
	}
	return registrations, nil
}

// ExpireUnpaid cancels up to limit unpaid registrations made before cutoff, marks their payments
// expired and releases their seats, all in one transaction.
func (r *RegistrationRepository) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.ExpiredRegistration, error) {
	if limit <= 0 {
		limit = 100
	}
	var expired []models.ExpiredRegistration
	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		const selectQuery = `SELECT cr.id, cr.class_id, cr.participant_id, p.user_id
FROM course_registrations cr
JOIN participants p ON p.id = cr.participant_id
WHERE cr.payment_status = 'Unpaid' AND cr.registration_status <> 'Cancelled' AND cr.registration_date < $1
ORDER BY cr.registration_date ASC LIMIT $2 FOR UPDATE OF cr SKIP LOCKED`
		if err := tx.SelectContext(ctx, &expired, selectQuery, cutoff, limit); err != nil {
			return fmt.Errorf("select unpaid registrations: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, len(expired))
		released := make(map[string]int)
		classOrder := make([]string, 0)
		for i, reg := range expired {
			ids[i] = reg.ID
			if _, seen := released[reg.ClassID]; !seen {
				classOrder = append(classOrder, reg.ClassID)
			}
			released[reg.ClassID]++
		}

		now := time.Now().UTC()
		const cancelQuery = `UPDATE course_registrations SET registration_status = 'Cancelled', payment_status = 'Expired', updated_at = $2 WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, cancelQuery, pq.Array(ids), now); err != nil {
			return fmt.Errorf("cancel unpaid registrations: %w", err)
		}
		const paymentQuery = `UPDATE payments SET status = 'Expired', updated_at = $2 WHERE registration_id = ANY($1) AND status = 'Unpaid'`
		if _, err := tx.ExecContext(ctx, paymentQuery, pq.Array(ids), now); err != nil {
			return fmt.Errorf("expire payments: %w", err)
		}
		const releaseQuery = `UPDATE classes SET seats_taken = GREATEST(seats_taken - $2, 0), updated_at = $3 WHERE id = $1`
		for _, classID := range classOrder {
			if _, err := tx.ExecContext(ctx, releaseQuery, classID, released[classID], now); err != nil {
				return fmt.Errorf("release seats: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
