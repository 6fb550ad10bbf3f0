package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListByUser returns a page of the user's notifications, newest first,
// together with the total count.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	return notifications, total, err
}

// UnreadRecent returns unread notifications from the last 24 hours, capped
// at 50, for replay to a reconnecting client.
func (r *NotificationRepository) UnreadRecent(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ? AND created_at >= ?", userID, false, time.Now().Add(-24*time.Hour)).
		Order("created_at DESC").
		Limit(50).
		Find(&notifications).Error
	return notifications, err
}

// MarkAsRead flips the read flag. The user id guards against marking
// someone else's notification.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uint) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("notification", id)
	}
	return nil
}
