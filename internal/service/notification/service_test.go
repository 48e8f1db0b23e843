package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository/memory"
	apperrors "github.com/anjali-yatham/Medisense/pkg/errors"
)

func seed(t *testing.T, repo *memory.NotificationRepository, userID uuid.UUID, typ model.NotificationType) *model.Notification {
	t.Helper()

	n := &model.Notification{
		UserID:       userID,
		Type:         typ,
		Title:        "Test",
		Message:      "message",
		ScheduledFor: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), n))
	return n
}

func TestListWithFilters(t *testing.T) {
	repo := memory.NewNotificationRepository()
	svc := NewService(repo)
	userID := uuid.New()

	seed(t, repo, userID, model.NotificationReminder)
	seed(t, repo, userID, model.NotificationMissedDose)
	seed(t, repo, uuid.New(), model.NotificationReminder)

	all, total, err := svc.List(context.Background(), userID, &model.NotificationFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	typ := model.NotificationMissedDose
	missed, total, err := svc.List(context.Background(), userID, &model.NotificationFilter{Type: &typ, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, missed, 1)
	assert.Equal(t, model.NotificationMissedDose, missed[0].Type)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	repo := memory.NewNotificationRepository()
	svc := NewService(repo)
	userID := uuid.New()

	first := seed(t, repo, userID, model.NotificationReminder)
	seed(t, repo, userID, model.NotificationMissedDose)

	count, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(context.Background(), first.ID, userID))

	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkAllRead(context.Background(), userID))

	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	repo := memory.NewNotificationRepository()
	svc := NewService(repo)
	userID := uuid.New()

	n := seed(t, repo, userID, model.NotificationReminder)

	err := svc.MarkRead(context.Background(), n.ID, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestDelete(t *testing.T) {
	repo := memory.NewNotificationRepository()
	svc := NewService(repo)
	userID := uuid.New()

	n := seed(t, repo, userID, model.NotificationReminder)

	require.NoError(t, svc.Delete(context.Background(), n.ID, userID))

	err := svc.Delete(context.Background(), n.ID, userID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
