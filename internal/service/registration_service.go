package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/repository"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
)

const (
	referenceAttempts = 3
	myCoursesCacheTTL = time.Minute
)

type registrationStore interface {
	WithinTx(ctx context.Context, fn func(w repository.RegistrationWriter) error) error
	ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error)
}

type classReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type identityResolver interface {
	NormalizeEmail(raw string) (string, error)
	Resolve(ctx context.Context, authCtx *models.AuthContext, email string) (*Identity, error)
	Provision(ctx context.Context, w repository.IdentityWriter, identity *Identity) (*Identity, error)
}

type bankAccountDisplay interface {
	ForDisplay(ctx context.Context) []models.BankAccount
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type registrationNotifier interface {
	RegistrationCreated(ctx context.Context, evt dto.RegistrationCreatedEvent)
}

// RegistrationConfig tunes the registration workflow.
type RegistrationConfig struct {
	DefaultPaymentMethod string
	GatewayPaymentMethod string
}

// RequestMeta carries caller details recorded in the audit log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// RegistrationService registers participants for classes.
type RegistrationService struct {
	store        registrationStore
	classes      classReader
	identities   identityResolver
	bankAccounts bankAccountDisplay
	audit        auditLogWriter
	notifier     registrationNotifier
	gateway      PaymentGateway
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       RegistrationConfig
	now          func() time.Time
	newReference func() (string, error)
}

// RegistrationServiceDeps groups the collaborators of RegistrationService.
type RegistrationServiceDeps struct {
	Store        registrationStore
	Classes      classReader
	Identities   identityResolver
	BankAccounts bankAccountDisplay
	Audit        auditLogWriter
	Notifier     registrationNotifier
	Gateway      PaymentGateway
	Cache        *CacheService
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationServiceDeps, cfg RegistrationConfig) *RegistrationService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.DefaultPaymentMethod == "" {
		cfg.DefaultPaymentMethod = "Transfer Bank"
	}
	return &RegistrationService{
		store:        deps.Store,
		classes:      deps.Classes,
		identities:   deps.Identities,
		bankAccounts: deps.BankAccounts,
		audit:        deps.Audit,
		notifier:     deps.Notifier,
		gateway:      deps.Gateway,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		validator:    deps.Validator,
		logger:       deps.Logger,
		config:       cfg,
		now:          time.Now,
		newReference: NewReferenceNumber,
	}
}

// Register creates a pending, unpaid registration and its payment record for the caller.
func (s *RegistrationService) Register(ctx context.Context, authCtx *models.AuthContext, req dto.RegisterCourseRequest, meta RequestMeta) (*dto.RegistrationResponse, error) {
	res, err := s.register(ctx, authCtx, req, meta)
	s.metrics.RecordRegistration(registrationOutcome(err))
	return res, err
}

func (s *RegistrationService) register(ctx context.Context, authCtx *models.AuthContext, req dto.RegisterCourseRequest, meta RequestMeta) (*dto.RegistrationResponse, error) {
	req.ClassID = strings.TrimSpace(req.ClassID)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Class ID is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	email, err := s.identities.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if authCtx == nil && email == "" {
		return nil, appErrors.ErrMissingIdentity
	}

	class, err := s.classes.FindDetailByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClassNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrRegistrationFailed.Code, appErrors.ErrRegistrationFailed.Status, appErrors.ErrRegistrationFailed.Message)
	}
	if err := s.checkOpen(class); err != nil {
		return nil, err
	}

	identity, err := s.identities.Resolve(ctx, authCtx, email)
	if err != nil {
		return nil, err
	}

	method := req.PaymentMethod
	if method == "" {
		method = s.config.DefaultPaymentMethod
	}

	registration, payment, identity, err := s.persist(ctx, class, identity, method)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, class, identity, registration, payment, meta)

	res := &dto.RegistrationResponse{
		RegistrationID:   registration.ID,
		Course:           dto.CourseRef{ID: class.CourseID, Name: class.CourseName},
		ClassName:        class.Label(),
		Payment:          registration.PaymentAmount,
		PaymentMethod:    registration.PaymentMethod,
		PaymentStatus:    registration.PaymentStatus,
		ReferenceNumber:  payment.ReferenceNumber,
		CourseScheduleID: class.ID,
		UserInfo: dto.RegistrantInfo{
			UserID:        identity.User.ID,
			ParticipantID: identity.Participant.ID,
			Email:         identity.User.Email,
			Username:      identity.User.Username,
			FullName:      identity.Participant.FullName,
			NewAccount:    identity.NewUser,
		},
		BankAccounts: s.displayBankAccounts(ctx),
		Checkout:     s.checkout(ctx, class, identity, payment),
	}
	return res, nil
}

func (s *RegistrationService) checkOpen(class *models.ClassDetail) error {
	if class.Status != "" && class.Status != models.ClassStatusActive {
		return appErrors.ErrRegistrationClosed
	}
	now := s.now()
	if class.StartRegDate != nil && now.Before(*class.StartRegDate) {
		return appErrors.Clone(appErrors.ErrRegistrationClosed, "Registration for this class has not opened yet")
	}
	if class.EndRegDate != nil && now.After(*class.EndRegDate) {
		return appErrors.ErrRegistrationClosed
	}
	return nil
}

// persist reserves the seat, provisions the identity and writes the registration with its
// payment in one transaction. A payment reference collision retries the whole transaction
// with a fresh reference.
func (s *RegistrationService) persist(ctx context.Context, class *models.ClassDetail, identity *Identity, method string) (*models.CourseRegistration, *models.Payment, *Identity, error) {
	var (
		registration *models.CourseRegistration
		payment      *models.Payment
		stored       *Identity
		err          error
	)
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		var reference string
		reference, err = s.newReference()
		if err != nil {
			break
		}
		registration = &models.CourseRegistration{
			ClassID:            class.ID,
			RegistrationDate:   s.now().UTC(),
			RegistrationStatus: models.RegistrationPending,
			PaymentAmount:      class.Price,
			PaymentStatus:      models.PaymentUnpaid,
			PaymentMethod:      method,
		}
		payment = &models.Payment{
			Amount:          class.Price,
			PaymentMethod:   method,
			ReferenceNumber: reference,
			Status:          models.PaymentUnpaid,
		}

		start := time.Now()
		err = s.store.WithinTx(ctx, func(w repository.RegistrationWriter) error {
			if err := w.ReserveSeat(ctx, class.ID); err != nil {
				return err
			}
			provisioned, err := s.identities.Provision(ctx, w, identity)
			if err != nil {
				return err
			}
			stored = provisioned
			registration.ParticipantID = stored.Participant.ID
			exists, err := w.HasActiveRegistration(ctx, class.ID, stored.Participant.ID)
			if err != nil {
				return err
			}
			if exists {
				return repository.ErrDuplicateRegistration
			}
			if err := w.CreateRegistration(ctx, registration); err != nil {
				return err
			}
			payment.RegistrationID = registration.ID
			return w.CreatePayment(ctx, payment)
		})
		s.metrics.ObserveDBQuery("registration_tx", time.Since(start))
		if !errors.Is(err, repository.ErrDuplicateReference) {
			break
		}
		s.logger.Warn("payment reference collision, retrying", zap.Int("attempt", attempt))
	}

	switch {
	case err == nil:
		return registration, payment, stored, nil
	case errors.Is(err, repository.ErrNoSeatAvailable):
		return nil, nil, nil, appErrors.ErrClassFull
	case errors.Is(err, repository.ErrDuplicateRegistration):
		return nil, nil, nil, appErrors.ErrAlreadyRegistered
	default:
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrRegistrationFailed.Code, appErrors.ErrRegistrationFailed.Status, appErrors.ErrRegistrationFailed.Message)
	}
}

func (s *RegistrationService) afterCommit(ctx context.Context, class *models.ClassDetail, identity *Identity, registration *models.CourseRegistration, payment *models.Payment, meta RequestMeta) {
	s.logger.Info("course registration created",
		zap.String("registration_id", registration.ID),
		zap.String("class_id", class.ID),
		zap.String("participant_id", identity.Participant.ID),
		zap.String("reference_number", payment.ReferenceNumber),
	)
	if identity.NewUser {
		s.logger.Info("provisioned user for anonymous registration", zap.String("user_id", identity.User.ID))
	}
	if identity.NewParticipant {
		s.logger.Info("provisioned placeholder participant", zap.String("user_id", identity.User.ID), zap.String("participant_id", identity.Participant.ID))
	}

	_ = s.cache.Invalidate(ctx, myCoursesCacheKey(identity.User.ID))

	if s.audit != nil {
		body, _ := json.Marshal(map[string]interface{}{
			"class_id":         class.ID,
			"participant_id":   identity.Participant.ID,
			"amount":           registration.PaymentAmount,
			"payment_method":   registration.PaymentMethod,
			"reference_number": payment.ReferenceNumber,
		})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &identity.User.ID,
			Action:     models.AuditActionRegistrationCreate,
			Resource:   "course_registrations",
			ResourceID: &registration.ID,
			NewValues:  body,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record registration audit log", zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.RegistrationCreated(ctx, dto.RegistrationCreatedEvent{
			RegistrationID:  registration.ID,
			ClassID:         class.ID,
			CourseID:        class.CourseID,
			ParticipantID:   identity.Participant.ID,
			UserID:          identity.User.ID,
			Amount:          registration.PaymentAmount,
			PaymentMethod:   registration.PaymentMethod,
			ReferenceNumber: payment.ReferenceNumber,
			RegisteredAt:    registration.RegistrationDate,
		})
	}
}

func (s *RegistrationService) displayBankAccounts(ctx context.Context) []models.BankAccount {
	if s.bankAccounts == nil {
		return []models.BankAccount{}
	}
	return s.bankAccounts.ForDisplay(ctx)
}

// checkout creates a gateway session for gateway payments; failures leave the registration
// payable by bank transfer.
func (s *RegistrationService) checkout(ctx context.Context, class *models.ClassDetail, identity *Identity, payment *models.Payment) *dto.Checkout {
	if s.gateway == nil || s.config.GatewayPaymentMethod == "" || !strings.EqualFold(payment.PaymentMethod, s.config.GatewayPaymentMethod) {
		return nil
	}
	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		OrderID:       payment.ReferenceNumber,
		Amount:        payment.Amount,
		ItemID:        class.ID,
		ItemName:      class.Label(),
		CustomerName:  identity.Participant.FullName,
		CustomerEmail: identity.User.Email,
	})
	if err != nil {
		s.logger.Warn("checkout creation failed", zap.String("reference_number", payment.ReferenceNumber), zap.Error(err))
		return nil
	}
	return checkout
}

// MyCourses lists the registrations of the authenticated user. The bool
// reports whether the list came from cache.
func (s *RegistrationService) MyCourses(ctx context.Context, authCtx *models.AuthContext) ([]dto.MyCourse, bool, error) {
	if authCtx == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	cacheKey := myCoursesCacheKey(authCtx.UserID)
	var cached []dto.MyCourse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, true, nil
	}

	rows, err := s.store.ListByUser(ctx, authCtx.UserID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}
	courses := make([]dto.MyCourse, 0, len(rows))
	for _, row := range rows {
		item := dto.MyCourse{
			RegistrationID:     row.ID,
			Course:             dto.CourseRef{ID: row.CourseID, Name: row.CourseName},
			ClassName:          models.ClassLabel(row.CourseName, row.Location),
			CourseScheduleID:   row.ClassID,
			StartDate:          row.StartDate,
			EndDate:            row.EndDate,
			RegistrationDate:   row.RegistrationDate,
			RegistrationStatus: row.RegistrationStatus,
			Payment:            row.PaymentAmount,
			PaymentStatus:      row.PaymentStatus,
		}
		if row.ReferenceNumber != nil {
			item.ReferenceNumber = *row.ReferenceNumber
		}
		courses = append(courses, item)
	}
	_ = s.cache.Set(ctx, cacheKey, courses, myCoursesCacheTTL)
	return courses, false, nil
}

func myCoursesCacheKey(userID string) string {
	return "my_courses:" + userID
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCreated
	case errors.Is(err, appErrors.ErrClassFull):
		return OutcomeClassFull
	case errors.Is(err, appErrors.ErrAlreadyRegistered):
		return OutcomeAlreadyRegistered
	}
	if appErr := appErrors.FromError(err); appErr.Status >= 500 {
		return OutcomeFailed
	}
	return OutcomeRejected
}

// NewReferenceNumber returns "REF" followed by the unix millisecond clock and four random digits.
func NewReferenceNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate reference suffix: %w", err)
	}
	return fmt.Sprintf("REF%d%04d", time.Now().UnixMilli(), n.Int64()), nil
}
