package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/train4best-api/internal/models"
)

func TestParticipantFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "full_name", "gender", "address", "phone_number", "birth_date", "job_title", "company", "created_at", "updated_at"}).
		AddRow("p1", "u1", "Budi", "Laki-laki", "Jakarta", "0812", now, "Engineer", "ACME", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM participants WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(rows)

	participant, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", participant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureParticipantCreatesPlaceholder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM participants WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO participants")).
		WithArgs(sqlmock.AnyArg(), "u1", "new", models.PlaceholderValue, models.PlaceholderValue, models.PlaceholderValue, models.PlaceholderBirthDate, models.PlaceholderValue, models.PlaceholderValue, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(w RegistrationWriter) error {
		participant, created, err := w.EnsureParticipant(context.Background(), models.NewPlaceholderParticipant("u1", "new"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, participant.ID)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureParticipantReusesExistingProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM participants WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "full_name", "gender", "address", "phone_number", "birth_date", "job_title", "company", "created_at", "updated_at"}).
			AddRow("p1", "u1", "Budi", "Laki-laki", "Jakarta", "0812", now, "Engineer", "ACME", now, now))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(w RegistrationWriter) error {
		participant, created, err := w.EnsureParticipant(context.Background(), models.NewPlaceholderParticipant("u1", "new"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "p1", participant.ID)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
