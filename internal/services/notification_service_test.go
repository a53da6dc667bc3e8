package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dtorrez/rentora-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNotificationService_NotifyAdmins_FansOutToEveryAdmin(t *testing.T) {
	users := &mockUserRepository{}
	notifs := &mockNotificationRepository{}
	users.mockFindAdmins = func(ctx context.Context) ([]models.User, error) {
		return []models.User{{ID: 2, Role: models.RoleAdmin}, {ID: 7, Role: models.RoleAdmin}}, nil
	}
	var recipients []uint
	notifs.mockCreate = func(ctx context.Context, n *models.Notification) error {
		recipients = append(recipients, n.UserID)
		if n.UserID == 2 {
			return errors.New("insert failed")
		}
		return nil
	}

	svc := NewNotificationService(notifs, users)
	err := svc.NotifyAdmins(context.Background(), "Error en estadísticas", "detalle", models.NotificationTypeSystemError)

	assert.NoError(t, err)
	assert.Equal(t, []uint{2, 7}, recipients, "one failed insert must not stop the fan-out")
}

func TestNotificationService_NotifyOrgStaff_ScopesToOrganization(t *testing.T) {
	users := &mockUserRepository{}
	notifs := &mockNotificationRepository{}
	var askedOrg uint
	users.mockFindStaffByOrg = func(ctx context.Context, orgID uint) ([]models.User, error) {
		askedOrg = orgID
		return []models.User{{ID: 3, OrgID: orgID, Role: models.RoleManager}}, nil
	}
	var notified *models.Notification
	notifs.mockCreate = func(ctx context.Context, n *models.Notification) error {
		notified = n
		return nil
	}

	svc := NewNotificationService(notifs, users)
	err := svc.NotifyOrgStaff(context.Background(), 4, "Nueva solicitud de confirmación de pago", "detalle", models.NotificationTypeConfirmationSubmitted)

	assert.NoError(t, err)
	assert.Equal(t, uint(4), askedOrg)
	if assert.NotNil(t, notified) {
		assert.Equal(t, uint(3), notified.UserID)
		assert.Equal(t, models.NotificationTypeConfirmationSubmitted, *notified.NotificationType)
	}
}

func TestNotificationService_MarkAsRead_SetsReadTimestamp(t *testing.T) {
	notifs := &mockNotificationRepository{}
	notifs.mockFindByID = func(ctx context.Context, id uint) (*models.Notification, error) {
		return &models.Notification{ID: id, UserID: 5}, nil
	}
	var updated *models.Notification
	notifs.mockUpdate = func(ctx context.Context, n *models.Notification) error {
		updated = n
		return nil
	}

	svc := NewNotificationService(notifs, &mockUserRepository{})
	err := svc.MarkAsRead(context.Background(), 31, 5)

	assert.NoError(t, err)
	if assert.NotNil(t, updated) {
		assert.NotNil(t, updated.ReadAt)
	}
}

func TestNotificationService_MarkAsRead_HidesForeignNotifications(t *testing.T) {
	notifs := &mockNotificationRepository{}
	notifs.mockFindByID = func(ctx context.Context, id uint) (*models.Notification, error) {
		return &models.Notification{ID: id, UserID: 9}, nil
	}

	svc := NewNotificationService(notifs, &mockUserRepository{})
	err := svc.MarkAsRead(context.Background(), 31, 5)

	assert.ErrorIs(t, err, ErrNotFound, "another user's notification must look nonexistent")
}
