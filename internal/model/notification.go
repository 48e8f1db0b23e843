package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationReminder         NotificationType = "medicine_reminder"
	NotificationMissedDose       NotificationType = "missed_dose"
	NotificationExpired          NotificationType = "medicine_expired"
	NotificationExpiringSoon     NotificationType = "medicine_expiring_soon"
	NotificationNewMedicine      NotificationType = "new_medicine_added"
	NotificationEmergencyContact NotificationType = "emergency_contact_alert"
)

// Notification is one outbound message attempt in the queue. Rows are
// created unsent and flipped to sent exactly once by the delivery worker.
// Emergency contact alerts snapshot the contact's name and phone at
// creation time; the live user row is never consulted for them again.
type Notification struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	MedicineID *uuid.UUID `json:"medicine_id,omitempty" db:"medicine_id"`

	Type    NotificationType `json:"type" db:"type"`
	Title   string           `json:"title" db:"title"`
	Message string           `json:"message" db:"message"`

	// Timing is set only for reminder and missed dose notifications.
	Timing *DoseSlot `json:"timing,omitempty" db:"timing"`

	// ScheduledFor gates eligibility; a row is never delivered before it.
	ScheduledFor time.Time `json:"scheduled_for" db:"scheduled_for"`

	IsSent bool `json:"is_sent" db:"is_sent"`
	IsRead bool `json:"is_read" db:"is_read"`

	IsEmergencyContact    bool    `json:"is_emergency_contact_notification" db:"is_emergency_contact"`
	EmergencyContactName  *string `json:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone,omitempty" db:"emergency_contact_phone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationFilter narrows user-facing notification listings.
type NotificationFilter struct {
	Type   *NotificationType
	IsRead *bool
	Limit  int
	Offset int
}

// NotificationEvent is the lightweight in-app fan-out published on the broker.
type NotificationEvent struct {
	ID             uuid.UUID        `json:"id"`
	NotificationID uuid.UUID        `json:"notification_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	CreatedAt      time.Time        `json:"created_at"`
}
