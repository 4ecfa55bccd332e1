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
)

func TestClassFindDetailByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "course_id", "quota", "seats_taken", "price", "location", "room", "start_date", "end_date", "start_reg_date", "end_reg_date", "status", "created_at", "updated_at", "course_name"}).
		AddRow("c1", "co1", 20, 3, 1500000.0, "Jakarta", "R1", now, now, nil, nil, "Active", now, now, "Golang Fundamentals")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE cl.id = $1")).WithArgs("c1").WillReturnRows(rows)

	class, err := repo.FindDetailByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Golang Fundamentals - Jakarta", class.Label())
	assert.Equal(t, 17, class.SeatsRemaining())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassFindDetailByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cl.id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindDetailByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestBankAccountListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBankAccountRepository(db)

	rows := sqlmock.NewRows([]string{"id", "bank_name", "account_number", "account_name", "active"}).
		AddRow("b1", "BCA", "1234567890", "PT Train4Best", true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bank_accounts WHERE active = TRUE")).WillReturnRows(rows)

	accounts, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "BCA", accounts[0].BankName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
