package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/repository"
)

// memoryDB emulates the registration tables. Transactions are serialised and only applied on success.
type memoryDB struct {
	mu            sync.Mutex
	users         *memoryUsers
	participants  *memoryParticipants
	classes       map[string]*models.ClassDetail
	registrations []models.CourseRegistration
	payments      []models.Payment
	failPayment   error
	referenceHits int
	classLookups  int
}

func newMemoryDB(classes ...models.ClassDetail) *memoryDB {
	db := &memoryDB{users: newMemoryUsers(), participants: newMemoryParticipants(), classes: map[string]*models.ClassDetail{}}
	for i := range classes {
		class := classes[i]
		db.classes[class.ID] = &class
	}
	return db
}

func (m *memoryDB) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classLookups++
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *class
	return &clone, nil
}

func (m *memoryDB) WithinTx(ctx context.Context, fn func(w repository.RegistrationWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{db: m, seats: map[string]int{}}
	if err := fn(tx); err != nil {
		return err
	}
	for classID, n := range tx.seats {
		m.classes[classID].SeatsTaken += n
	}
	for _, user := range tx.users {
		if _, _, err := m.users.EnsureUser(ctx, user); err != nil {
			return err
		}
	}
	for _, participant := range tx.participants {
		if _, _, err := m.participants.EnsureParticipant(ctx, participant); err != nil {
			return err
		}
	}
	m.registrations = append(m.registrations, tx.registrations...)
	m.payments = append(m.payments, tx.payments...)
	return nil
}

func (m *memoryDB) ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]models.RegistrationDetail, 0)
	for _, reg := range m.registrations {
		class := m.classes[reg.ClassID]
		rows = append(rows, models.RegistrationDetail{CourseRegistration: reg, CourseID: class.CourseID, CourseName: class.CourseName, Location: class.Location})
	}
	return rows, nil
}

func (m *memoryDB) registrationCount(classID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, reg := range m.registrations {
		if reg.ClassID == classID {
			count++
		}
	}
	return count
}

func (m *memoryDB) seatsTaken(classID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classes[classID].SeatsTaken
}

type memoryTx struct {
	db            *memoryDB
	seats         map[string]int
	users         []*models.User
	participants  []*models.Participant
	registrations []models.CourseRegistration
	payments      []models.Payment
}

func (t *memoryTx) ReserveSeat(ctx context.Context, classID string) error {
	class, ok := t.db.classes[classID]
	if !ok || class.SeatsTaken+t.seats[classID] >= class.Quota {
		return repository.ErrNoSeatAvailable
	}
	t.seats[classID]++
	return nil
}

func (t *memoryTx) EnsureUser(ctx context.Context, candidate *models.User) (*models.User, bool, error) {
	if user, err := t.db.users.FindByEmail(ctx, candidate.Email); err == nil {
		return user, false, nil
	}
	for _, staged := range t.users {
		if staged.Email == candidate.Email {
			clone := *staged
			return &clone, false, nil
		}
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	clone := *candidate
	t.users = append(t.users, &clone)
	return candidate, true, nil
}

func (t *memoryTx) EnsureParticipant(ctx context.Context, candidate *models.Participant) (*models.Participant, bool, error) {
	if participant, err := t.db.participants.FindByUserID(ctx, candidate.UserID); err == nil {
		return participant, false, nil
	}
	for _, staged := range t.participants {
		if staged.UserID == candidate.UserID {
			clone := *staged
			return &clone, false, nil
		}
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	clone := *candidate
	t.participants = append(t.participants, &clone)
	return candidate, true, nil
}

func (t *memoryTx) HasActiveRegistration(ctx context.Context, classID, participantID string) (bool, error) {
	for _, reg := range append(append([]models.CourseRegistration{}, t.db.registrations...), t.registrations...) {
		if reg.ClassID == classID && reg.ParticipantID == participantID && reg.RegistrationStatus != models.RegistrationCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) CreateRegistration(ctx context.Context, registration *models.CourseRegistration) error {
	if exists, _ := t.HasActiveRegistration(ctx, registration.ClassID, registration.ParticipantID); exists {
		return repository.ErrDuplicateRegistration
	}
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	t.registrations = append(t.registrations, *registration)
	return nil
}

func (t *memoryTx) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if t.db.failPayment != nil {
		return t.db.failPayment
	}
	if t.db.referenceHits > 0 {
		t.db.referenceHits--
		return repository.ErrDuplicateReference
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	t.payments = append(t.payments, *payment)
	return nil
}

// memoryUsers emulates users + user_types with a unique email index.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUsers(existing ...models.User) *memoryUsers {
	repo := &memoryUsers{users: map[string]*models.User{}}
	for i := range existing {
		user := existing[i]
		repo.users[user.ID] = &user
	}
	return repo
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsers) FindUserTypeByCode(ctx context.Context, code models.UserRole) (*models.UserType, error) {
	return &models.UserType{ID: "ut-" + string(code), Code: code, Name: "Participant"}, nil
}

// EnsureUser writes straight to the store, outside any transaction.
func (m *memoryUsers) EnsureUser(ctx context.Context, candidate *models.User) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == candidate.Email {
			clone := *existing
			return &clone, false, nil
		}
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	clone := *candidate
	m.users[candidate.ID] = &clone
	return candidate, true, nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// memoryParticipants emulates participants with a unique user_id index.
type memoryParticipants struct {
	mu           sync.Mutex
	participants map[string]*models.Participant
}

func newMemoryParticipants() *memoryParticipants {
	return &memoryParticipants{participants: map[string]*models.Participant{}}
}

func (m *memoryParticipants) FindByUserID(ctx context.Context, userID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[userID]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

// EnsureParticipant writes straight to the store, outside any transaction.
func (m *memoryParticipants) EnsureParticipant(ctx context.Context, candidate *models.Participant) (*models.Participant, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.participants[candidate.UserID]; ok {
		clone := *existing
		return &clone, false, nil
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	clone := *candidate
	m.participants[candidate.UserID] = &clone
	return candidate, true, nil
}

func (m *memoryParticipants) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.participants)
}

// directIdentityWriter provisions identities without a surrounding transaction.
type directIdentityWriter struct {
	users        *memoryUsers
	participants *memoryParticipants
}

func (d directIdentityWriter) EnsureUser(ctx context.Context, candidate *models.User) (*models.User, bool, error) {
	return d.users.EnsureUser(ctx, candidate)
}

func (d directIdentityWriter) EnsureParticipant(ctx context.Context, candidate *models.Participant) (*models.Participant, bool, error) {
	return d.participants.EnsureParticipant(ctx, candidate)
}
