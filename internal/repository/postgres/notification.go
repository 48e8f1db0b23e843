package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `
	id, user_id, medicine_id, type, title, message, timing, scheduled_for,
	is_sent, is_read, is_emergency_contact, emergency_contact_name,
	emergency_contact_phone, created_at, updated_at
`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, medicine_id, type, title, message, timing,
			scheduled_for, is_sent, is_read, is_emergency_contact,
			emergency_contact_name, emergency_contact_phone,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.MedicineID,
		n.Type,
		n.Title,
		n.Message,
		n.Timing,
		n.ScheduledFor,
		n.IsSent,
		n.IsRead,
		n.IsEmergencyContact,
		n.EmergencyContactName,
		n.EmergencyContactPhone,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) LatestForDay(ctx context.Context, medicineID uuid.UUID, timing *model.DoseSlot, typ model.NotificationType, day time.Time) (*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE medicine_id = $1
		  AND type = $2
		  AND scheduled_for >= $3 AND scheduled_for <= $4
		  AND ($5::text IS NULL OR timing = $5)
		ORDER BY scheduled_for DESC
		LIMIT 1
	`
	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, medicineID, typ, model.StartOfDay(day), model.EndOfDay(day), timing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE is_sent = false AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	var rows []*model.Notification
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return rows, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET is_sent = true, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *notificationRepository) MarkRemindersRead(ctx context.Context, medicineID uuid.UUID, timing model.DoseSlot, day time.Time) error {
	query := `
		UPDATE notifications
		SET is_read = true, updated_at = $4
		WHERE medicine_id = $1
		  AND timing = $2
		  AND type = $3
		  AND is_read = false
		  AND scheduled_for >= $5 AND scheduled_for <= $6
	`
	_, err := r.db.ExecContext(ctx, query, medicineID, timing, model.NotificationReminder,
		time.Now(), model.StartOfDay(day), model.EndOfDay(day))
	if err != nil {
		return fmt.Errorf("failed to mark reminders read: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, int, error) {
	if filter == nil {
		filter = &model.NotificationFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		  AND ($2::text IS NULL OR type = $2)
		  AND ($3::boolean IS NULL OR is_read = $3)
		ORDER BY scheduled_for DESC
		LIMIT $4 OFFSET $5
	`
	var rows []*model.Notification
	if err := r.db.SelectContext(ctx, &rows, query, userID, filter.Type, filter.IsRead, limit, filter.Offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
		  AND ($2::text IS NULL OR type = $2)
		  AND ($3::boolean IS NULL OR is_read = $3)
	`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID, filter.Type, filter.IsRead); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return rows, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, updated_at = $3 WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, updated_at = $2 WHERE user_id = $1 AND is_read = false`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return requireRowsAffected(result)
}
