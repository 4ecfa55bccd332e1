package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/train4best-api/internal/models"
)

// ClassRepository reads course schedules.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindDetailByID returns a class joined with its course name.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT cl.id, cl.course_id, cl.quota, cl.seats_taken, cl.price, cl.location, cl.room, cl.start_date, cl.end_date, cl.start_reg_date, cl.end_reg_date, cl.status, cl.created_at, cl.updated_at, co.name AS course_name
FROM classes cl
JOIN courses co ON co.id = cl.course_id
WHERE cl.id = $1`
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}
