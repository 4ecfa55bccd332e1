package models

import "time"

// ClassStatus describes whether a schedule accepts registrations.
type ClassStatus string

const (
	ClassStatusActive    ClassStatus = "Active"
	ClassStatusCompleted ClassStatus = "Completed"
	ClassStatusCancelled ClassStatus = "Cancelled"
)

// CourseType groups courses (e.g. "Online", "Offline").
type CourseType struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Course is a named training offering.
type Course struct {
	ID           string    `db:"id" json:"id"`
	CourseTypeID string    `db:"course_type_id" json:"course_type_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Image        *string   `db:"image" json:"image,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Class is one scheduled, capacity-bounded instance of a course.
type Class struct {
	ID           string      `db:"id" json:"id"`
	CourseID     string      `db:"course_id" json:"course_id"`
	Quota        int         `db:"quota" json:"quota"`
	SeatsTaken   int         `db:"seats_taken" json:"seats_taken"`
	Price        float64     `db:"price" json:"price"`
	Location     string      `db:"location" json:"location"`
	Room         string      `db:"room" json:"room"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	StartRegDate *time.Time  `db:"start_reg_date" json:"start_reg_date,omitempty"`
	EndRegDate   *time.Time  `db:"end_reg_date" json:"end_reg_date,omitempty"`
	Status       ClassStatus `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the owning course name.
type ClassDetail struct {
	Class
	CourseName string `db:"course_name" json:"course_name"`
}

// Label is the human readable "<course> - <location>" name shown to registrants.
func (c ClassDetail) Label() string {
	return ClassLabel(c.CourseName, c.Location)
}

// ClassLabel joins a course name and class location.
func ClassLabel(courseName, location string) string {
	if location == "" {
		return courseName
	}
	return courseName + " - " + location
}

// SeatsRemaining reports the number of open seats.
func (c Class) SeatsRemaining() int {
	if c.SeatsTaken >= c.Quota {
		return 0
	}
	return c.Quota - c.SeatsTaken
}
