package workers

import (
	"regexp"
	"strings"
	"time"
)

// Worker is a delivery partner who can be allocated inbound calls.
//
// Invariant: Status == StatusOccupied exactly when CurrentOrderID is set.
// Workers are never deleted; IsActive=false removes them from allocation and login.
type Worker struct {
	ID              int64   `json:"id" db:"id"`
	Name            string  `json:"name" db:"name"`
	Phone           string  `json:"phone" db:"phone"`
	Email           *string `json:"email" db:"email"`
	PasswordHash    string  `json:"-" db:"password_hash"`
	Status          Status  `json:"status" db:"status"`
	CurrentOrderID  *string `json:"current_order_id" db:"current_order_id"`
	DeliveriesToday int     `json:"deliveries_today" db:"deliveries_today"`
	IsActive        bool    `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Available reports whether the worker may be handed a new call.
func (w Worker) Available() bool {
	return w.IsActive && w.Status == StatusFree
}

type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
)

func (s Status) Valid() bool {
	return s == StatusFree || s == StatusOccupied
}

// NewWorker carries the fields accepted at registration.
type NewWorker struct {
	Name         string
	Phone        string
	Email        *string
	PasswordHash string
}

// ProfileUpdate is a partial update. Nil fields are left untouched;
// an Email pointing at "" clears the email.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

var (
	phonePattern = regexp.MustCompile(`^\+91[6-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidPhone accepts Indian mobile numbers in +91XXXXXXXXXX form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims the input and maps blank to nil.
func NormalizeEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}
