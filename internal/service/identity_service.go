package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/repository"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
)

type identityUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserTypeByCode(ctx context.Context, code models.UserRole) (*models.UserType, error)
}

type participantRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Participant, error)
}

// IdentityConfig tunes identity resolution.
type IdentityConfig struct {
	AllowAnonymous bool
	PasswordCost   int
}

// Identity is the user and participant profile a registration is made for.
// NewUser and NewParticipant mark records that Provision still has to store; on the
// identity Provision returns they report whether that call created them.
type Identity struct {
	User           *models.User
	Participant    *models.Participant
	NewUser        bool
	NewParticipant bool
}

// IdentityService resolves who a registration belongs to and provisions missing records.
type IdentityService struct {
	users        identityUserRepository
	participants participantRepository
	validator    *validator.Validate
	logger       *zap.Logger
	config       IdentityConfig
}

// NewIdentityService constructs the service.
func NewIdentityService(users identityUserRepository, participants participantRepository, validate *validator.Validate, logger *zap.Logger, cfg IdentityConfig) *IdentityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &IdentityService{users: users, participants: participants, validator: validate, logger: logger, config: cfg}
}

// NormalizeEmail trims and lower-cases the address and checks the local@domain.tld shape.
// An empty input is returned as is.
func (s *IdentityService) NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", nil
	}
	if err := s.validator.Var(email, "email"); err != nil {
		return "", appErrors.ErrInvalidEmail
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if dot := strings.LastIndex(domain, "."); dot <= 0 || dot == len(domain)-1 {
		return "", appErrors.ErrInvalidEmail
	}
	return email, nil
}

// Resolve returns the identity for the request. An authenticated caller always wins; the
// email is only used for anonymous checkout. Nothing is written: missing records come back
// as candidates for Provision.
func (s *IdentityService) Resolve(ctx context.Context, authCtx *models.AuthContext, rawEmail string) (*Identity, error) {
	email, err := s.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	switch {
	case authCtx != nil:
		user, err := s.authenticatedUser(ctx, authCtx)
		if err != nil {
			return nil, err
		}
		return s.withParticipant(ctx, user)
	case email == "":
		return nil, appErrors.ErrMissingIdentity
	case !s.config.AllowAnonymous:
		return nil, appErrors.Clone(appErrors.ErrMissingIdentity, "Please log in to register for a course")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return s.withParticipant(ctx, user)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	candidate, err := s.newUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return &Identity{
		User:           candidate,
		Participant:    models.NewPlaceholderParticipant("", candidate.Username),
		NewUser:        true,
		NewParticipant: true,
	}, nil
}

// Provision stores the candidate records of identity through w, normally the registration
// transaction, so they are only kept when the registration commits. Concurrent provisioning
// of the same email converges on one user and one participant.
func (s *IdentityService) Provision(ctx context.Context, w repository.IdentityWriter, identity *Identity) (*Identity, error) {
	stored := &Identity{User: identity.User, Participant: identity.Participant}
	if identity.NewUser {
		candidate := *identity.User
		user, created, err := w.EnsureUser(ctx, &candidate)
		if err != nil {
			return nil, err
		}
		stored.User, stored.NewUser = user, created
		if !created {
			s.logger.Debug("user provisioned by a concurrent registration", zap.String("user_id", user.ID))
		}
	}
	if identity.NewUser || identity.NewParticipant {
		candidate := *identity.Participant
		candidate.UserID = stored.User.ID
		participant, created, err := w.EnsureParticipant(ctx, &candidate)
		if err != nil {
			return nil, err
		}
		stored.Participant, stored.NewParticipant = participant, created
	}
	return stored, nil
}

func (s *IdentityService) authenticatedUser(ctx context.Context, authCtx *models.AuthContext) (*models.User, error) {
	user, err := s.users.FindByID(ctx, authCtx.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Your session is no longer valid, please log in again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account is inactive")
	}
	return user, nil
}

func (s *IdentityService) withParticipant(ctx context.Context, user *models.User) (*Identity, error) {
	participant, err := s.participants.FindByUserID(ctx, user.ID)
	if err == nil {
		return &Identity{User: user, Participant: participant}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	return &Identity{
		User:           user,
		Participant:    models.NewPlaceholderParticipant(user.ID, user.Username),
		NewParticipant: true,
	}, nil
}

func (s *IdentityService) newUser(ctx context.Context, email string) (*models.User, error) {
	userType, err := s.users.FindUserTypeByCode(ctx, models.RoleParticipant)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to create user account")
	}
	hash, err := s.randomPasswordHash()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to create user account")
	}
	return &models.User{
		Email:        email,
		Username:     email[:strings.LastIndex(email, "@")],
		PasswordHash: hash,
		UserTypeID:   userType.ID,
		Role:         userType.Code,
		Active:       true,
	}, nil
}

// randomPasswordHash hashes a random secret that is never returned or logged.
func (s *IdentityService) randomPasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// bcrypt only reads the first 72 bytes; 43 base64 characters fit.
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(buf)), s.config.PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
