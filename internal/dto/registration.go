package dto

import (
	"time"

	"github.com/noah-isme/train4best-api/internal/models"
)

// RegisterCourseRequest captures POST /course/register payload.
type RegisterCourseRequest struct {
	ClassID       string `json:"classId" validate:"required,max=64"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,max=64"`
	Email         string `json:"email" validate:"omitempty,max=254"`
}

// CourseRef names the course a class belongs to.
type CourseRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegistrantInfo echoes the identity the registration was made for.
type RegistrantInfo struct {
	UserID        string `json:"userId"`
	ParticipantID string `json:"participantId"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FullName      string `json:"fullName"`
	NewAccount    bool   `json:"newAccount"`
}

// Checkout carries a hosted payment page for gateway payments.
type Checkout struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}

// RegistrationResponse is returned after a successful registration.
type RegistrationResponse struct {
	RegistrationID   string               `json:"registrationId"`
	Course           CourseRef            `json:"course"`
	ClassName        string               `json:"className"`
	Payment          float64              `json:"payment"`
	PaymentMethod    string               `json:"paymentMethod"`
	PaymentStatus    models.PaymentStatus `json:"paymentStatus"`
	ReferenceNumber  string               `json:"referenceNumber"`
	CourseScheduleID string               `json:"courseScheduleId"`
	UserInfo         RegistrantInfo       `json:"userInfo"`
	BankAccounts     []models.BankAccount `json:"bankAccounts"`
	Checkout         *Checkout            `json:"checkout,omitempty"`
}

// MyCourse is one row of GET /course/my-courses.
type MyCourse struct {
	RegistrationID     string                    `json:"registrationId"`
	Course             CourseRef                 `json:"course"`
	ClassName          string                    `json:"className"`
	CourseScheduleID   string                    `json:"courseScheduleId"`
	StartDate          time.Time                 `json:"startDate"`
	EndDate            time.Time                 `json:"endDate"`
	RegistrationDate   time.Time                 `json:"registrationDate"`
	RegistrationStatus models.RegistrationStatus `json:"registrationStatus"`
	Payment            float64                   `json:"payment"`
	PaymentStatus      models.PaymentStatus      `json:"paymentStatus"`
	ReferenceNumber    string                    `json:"referenceNumber,omitempty"`
}

// RegistrationCreatedEvent is published after a registration commits.
type RegistrationCreatedEvent struct {
	RegistrationID  string    `json:"registrationId"`
	ClassID         string    `json:"classId"`
	CourseID        string    `json:"courseId"`
	ParticipantID   string    `json:"participantId"`
	UserID          string    `json:"userId"`
	Amount          float64   `json:"amount"`
	PaymentMethod   string    `json:"paymentMethod"`
	ReferenceNumber string    `json:"referenceNumber"`
	RegisteredAt    time.Time `json:"registeredAt"`
}

// RegistrationExpiredEvent is published for each registration released by the expiry sweep.
type RegistrationExpiredEvent struct {
	RegistrationID string `json:"registrationId"`
	ClassID        string `json:"classId"`
	ParticipantID  string `json:"participantId"`
}
