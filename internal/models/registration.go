package models

import "time"

// RegistrationStatus tracks the lifecycle of a course registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "Pending"
	RegistrationConfirmed RegistrationStatus = "Confirmed"
	RegistrationCancelled RegistrationStatus = "Cancelled"
)

// PaymentStatus tracks settlement of a registration fee.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentExpired PaymentStatus = "Expired"
)

// CourseRegistration links a participant to a class.
type CourseRegistration struct {
	ID                 string             `db:"id" json:"id"`
	ClassID            string             `db:"class_id" json:"class_id"`
	ParticipantID      string             `db:"participant_id" json:"participant_id"`
	RegistrationDate   time.Time          `db:"registration_date" json:"registration_date"`
	RegistrationStatus RegistrationStatus `db:"registration_status" json:"registration_status"`
	PaymentAmount      float64            `db:"payment_amount" json:"payment_amount"`
	PaymentStatus      PaymentStatus      `db:"payment_status" json:"payment_status"`
	PaymentMethod      string             `db:"payment_method" json:"payment_method"`
	Attendances        int                `db:"attendances" json:"attendances"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Payment is the single payment record owned by a registration.
type Payment struct {
	ID              string        `db:"id" json:"id"`
	RegistrationID  string        `db:"registration_id" json:"registration_id"`
	Amount          float64       `db:"amount" json:"amount"`
	PaymentMethod   string        `db:"payment_method" json:"payment_method"`
	ReferenceNumber string        `db:"reference_number" json:"reference_number"`
	Status          PaymentStatus `db:"status" json:"status"`
	PaymentDate     time.Time     `db:"payment_date" json:"payment_date"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail joins a registration with its class, course, participant and payment.
type RegistrationDetail struct {
	CourseRegistration
	CourseID        string    `db:"course_id" json:"course_id"`
	CourseName      string    `db:"course_name" json:"course_name"`
	Location        string    `db:"location" json:"location"`
	Room            string    `db:"room" json:"room"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	EndDate         time.Time `db:"end_date" json:"end_date"`
	ParticipantName string    `db:"participant_name" json:"participant_name"`
	Email           string    `db:"email" json:"email"`
	ReferenceNumber *string   `db:"reference_number" json:"reference_number,omitempty"`
}

// ExpiredRegistration identifies a registration released by the unpaid expiry sweep.
type ExpiredRegistration struct {
	ID            string `db:"id" json:"id"`
	ClassID       string `db:"class_id" json:"class_id"`
	ParticipantID string `db:"participant_id" json:"participant_id"`
	UserID        string `db:"user_id" json:"user_id"`
}
