package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/invoiceflow/invoiceflow/db/models"
)

// Notify persists a notification and fans it out to subscribers. Failures are
// logged and never returned: a missing notification must not fail the
// state change that caused it.
func (svc *InvoiceFlowService) Notify(ctx context.Context, recipient, notificationType, title, message string, invoiceID *int64) {
	notification := models.Notification{
		RecipientAddress: normalize(recipient),
		Type:             notificationType,
		Title:            title,
		Message:          message,
		InvoiceID:        invoiceID,
		CreatedAt:        svc.now(),
	}
	_, err := svc.DB.NewInsert().Model(&notification).Exec(ctx)
	if err != nil {
		svc.Logger.Errorf("Failed to store %s notification for %s: %v", notificationType, notification.RecipientAddress, err)
		sentry.CaptureException(err)
		return
	}
	if svc.NotificationPubSub == nil {
		return
	}
	dropped := svc.NotificationPubSub.Publish(TopicAllNotifications, notification)
	dropped += svc.NotificationPubSub.Publish(notification.RecipientAddress, notification)
	if dropped > 0 {
		svc.Logger.Warnf("Notification %d skipped %d slow subscriber(s)", notification.ID, dropped)
	}
}

// SubscribeNotifications registers a buffered channel for every notification.
func (svc *InvoiceFlowService) SubscribeNotifications() (chan models.Notification, func(), error) {
	if svc.NotificationPubSub == nil {
		return nil, nil, fmt.Errorf("notification pubsub is not configured")
	}
	ch := make(chan models.Notification, 64)
	id := svc.NotificationPubSub.Subscribe(TopicAllNotifications, ch)
	return ch, func() { svc.NotificationPubSub.Unsubscribe(id, TopicAllNotifications) }, nil
}

type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
}

func (svc *InvoiceFlowService) ListNotifications(ctx context.Context, recipient string, unreadOnly bool, pageReq PageRequest) (*NotificationsResponse, error) {
	page, limit, offset := svc.normalizePage(pageReq)
	notifications := []models.Notification{}
	query := svc.DB.NewSelect().Model(&notifications).
		Where("recipient_address = ?", normalize(recipient))
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	total, err := query.
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &NotificationsResponse{
		Notifications: notifications,
		Pagination:    newPagination(page, limit, total),
	}, nil
}

func (svc *InvoiceFlowService) UnreadNotificationCount(ctx context.Context, recipient string) (int, error) {
	return svc.DB.NewSelect().Model((*models.Notification)(nil)).
		Where("recipient_address = ?", normalize(recipient)).
		Where("is_read = ?", false).
		Count(ctx)
}

// MarkNotificationRead only touches notifications owned by recipient.
func (svc *InvoiceFlowService) MarkNotificationRead(ctx context.Context, recipient string, id int64) (*models.Notification, error) {
	notification := models.Notification{}
	err := svc.DB.NewSelect().Model(&notification).
		Where("id = ?", id).
		Where("recipient_address = ?", normalize(recipient)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	notification.IsRead = true
	_, err = svc.DB.NewUpdate().Model(&notification).Column("is_read").WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (svc *InvoiceFlowService) MarkAllNotificationsRead(ctx context.Context, recipient string) (int64, error) {
	res, err := svc.DB.NewUpdate().Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("recipient_address = ?", normalize(recipient)).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
