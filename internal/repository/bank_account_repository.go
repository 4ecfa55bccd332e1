package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/train4best-api/internal/models"
)

// BankAccountRepository reads bank transfer destinations.
type BankAccountRepository struct {
	db *sqlx.DB
}

// NewBankAccountRepository constructs the repository.
func NewBankAccountRepository(db *sqlx.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// ListActive returns active accounts ordered by bank name.
func (r *BankAccountRepository) ListActive(ctx context.Context) ([]models.BankAccount, error) {
	const query = `SELECT id, bank_name, account_number, account_name, active FROM bank_accounts WHERE active = TRUE ORDER BY bank_name ASC, account_number ASC`
	accounts := make([]models.BankAccount, 0)
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	return accounts, nil
}
