package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/internal/models"
)

type unpaidRegistrationStore interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.ExpiredRegistration, error)
}

type expiryNotifier interface {
	RegistrationExpired(ctx context.Context, evt dto.RegistrationExpiredEvent)
}

// ExpiryConfig controls the unpaid registration sweep.
type ExpiryConfig struct {
	UnpaidTTL time.Duration
	BatchSize int
}

// ExpiryService cancels registrations that stayed unpaid past the TTL and frees their seats.
type ExpiryService struct {
	store    unpaidRegistrationStore
	notifier expiryNotifier
	audit    auditLogWriter
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	config   ExpiryConfig
	now      func() time.Time
}

// NewExpiryService constructs the service.
func NewExpiryService(store unpaidRegistrationStore, notifier expiryNotifier, audit auditLogWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ExpiryConfig) *ExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ExpiryService{
		store:    store,
		notifier: notifier,
		audit:    audit,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// Enabled reports whether a TTL is configured.
func (s *ExpiryService) Enabled() bool {
	return s != nil && s.config.UnpaidTTL > 0
}

// Sweep expires one batch of stale registrations and returns how many were released.
func (s *ExpiryService) Sweep(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-s.config.UnpaidTTL)
	expired, err := s.store.ExpireUnpaid(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.logger.Error("unpaid registration sweep failed", zap.Error(err))
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	s.metrics.RecordExpired(len(expired))
	s.logger.Info("expired unpaid registrations", zap.Int("count", len(expired)), zap.Time("cutoff", cutoff))

	keys := make([]string, 0, len(expired))
	seen := make(map[string]struct{}, len(expired))
	for _, reg := range expired {
		if _, ok := seen[reg.UserID]; ok || reg.UserID == "" {
			continue
		}
		seen[reg.UserID] = struct{}{}
		keys = append(keys, myCoursesCacheKey(reg.UserID))
	}
	if len(keys) > 0 {
		_ = s.cache.Invalidate(ctx, keys...)
	}

	for _, reg := range expired {
		if s.notifier != nil {
			s.notifier.RegistrationExpired(ctx, dto.RegistrationExpiredEvent{
				RegistrationID: reg.ID,
				ClassID:        reg.ClassID,
				ParticipantID:  reg.ParticipantID,
			})
		}
		if s.audit != nil {
			id := reg.ID
			body, _ := json.Marshal(map[string]interface{}{
				"class_id":       reg.ClassID,
				"participant_id": reg.ParticipantID,
				"cutoff":         cutoff,
			})
			if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
				Action:     models.AuditActionRegistrationExpire,
				Resource:   "course_registrations",
				ResourceID: &id,
				NewValues:  body,
			}); err != nil {
				s.logger.Warn("failed to record expiry audit log", zap.String("registration_id", reg.ID), zap.Error(err))
			}
		}
	}
	return len(expired), nil
}
