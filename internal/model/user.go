package model

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypePatient      UserType = "user"
	UserTypeOrganisation UserType = "organisation"
)

// EmergencyContact is the person escalation alerts go to. It lives on the
// user profile; escalations snapshot it into the notification instead of
// holding a live reference.
type EmergencyContact struct {
	Name         string `json:"name" db:"emergency_contact_name"`
	Phone        string `json:"phone" db:"emergency_contact_phone"`
	Relationship string `json:"relationship" db:"emergency_contact_relationship"`
}

// User is the patient or organisation identity the auth collaborator
// hands us. The core reads it for phone numbers and emergency contacts
// and never writes it.
type User struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	Email            string           `json:"email" db:"email"`
	Phone            string           `json:"phone" db:"phone"`
	UserType         UserType         `json:"user_type" db:"user_type"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// HasEmergencyContact reports whether an escalation target is configured.
func (u *User) HasEmergencyContact() bool {
	return u.EmergencyContact.Phone != ""
}
