package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/models"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
)

const bankAccountsCacheKey = "bank_accounts:active"

type bankAccountRepository interface {
	ListActive(ctx context.Context) ([]models.BankAccount, error)
}

// BankAccountService serves bank transfer destinations, cached when Redis is available.
type BankAccountService struct {
	repo   bankAccountRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewBankAccountService constructs the service.
func NewBankAccountService(repo bankAccountRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *BankAccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BankAccountService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns the active bank accounts.
func (s *BankAccountService) List(ctx context.Context) ([]models.BankAccount, error) {
	var cached []models.BankAccount
	if hit, _ := s.cache.Get(ctx, bankAccountsCacheKey, &cached); hit {
		return cached, nil
	}

	accounts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bank accounts")
	}
	_ = s.cache.Set(ctx, bankAccountsCacheKey, accounts, s.ttl)
	return accounts, nil
}

// ForDisplay never fails: a lookup error yields an empty list and a warning.
func (s *BankAccountService) ForDisplay(ctx context.Context) []models.BankAccount {
	accounts, err := s.List(ctx)
	if err != nil {
		s.logger.Warn("bank account lookup failed", zap.Error(err))
		return []models.BankAccount{}
	}
	return accounts
}
