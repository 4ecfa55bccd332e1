package models

import "time"

// PlaceholderValue marks profile fields the participant has not filled yet.
const PlaceholderValue = "Belum Diisi"

// PlaceholderBirthDate is stored until the participant supplies a real birth date.
var PlaceholderBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Participant is the profile attached to a user that takes courses.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Gender    string    `db:"gender" json:"gender"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone_number" json:"phone_number"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	JobTitle  string    `db:"job_title" json:"job_title"`
	Company   string    `db:"company" json:"company"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewPlaceholderParticipant builds a profile with every unknown field set to the placeholder.
func NewPlaceholderParticipant(userID, fullName string) *Participant {
	return &Participant{
		UserID:    userID,
		FullName:  fullName,
		Gender:    PlaceholderValue,
		Address:   PlaceholderValue,
		Phone:     PlaceholderValue,
		BirthDate: PlaceholderBirthDate,
		JobTitle:  PlaceholderValue,
		Company:   PlaceholderValue,
	}
}
