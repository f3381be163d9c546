package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/rabbitmq"
)

// NotificationPayload is what webhook and rabbitmq consumers receive.
type NotificationPayload struct {
	ID               int64     `json:"id"`
	RecipientAddress string    `json:"recipient_address"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	InvoiceID        *int64    `json:"invoice_id,omitempty"`
	TokenID          *int64    `json:"token_id,omitempty"`
	ChainID          int64     `json:"chain_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (svc *InvoiceFlowService) notificationPayload(ctx context.Context, notification models.Notification) NotificationPayload {
	payload := NotificationPayload{
		ID:               notification.ID,
		RecipientAddress: notification.RecipientAddress,
		Type:             notification.Type,
		Title:            notification.Title,
		Message:          notification.Message,
		InvoiceID:        notification.InvoiceID,
		CreatedAt:        notification.CreatedAt,
	}
	if notification.InvoiceID == nil {
		return payload
	}
	invoice, err := svc.FindInvoice(ctx, *notification.InvoiceID)
	if err != nil {
		svc.Logger.Warnf("Notification %d refers to invoice %d: %v", notification.ID, *notification.InvoiceID, err)
		return payload
	}
	payload.TokenID = invoice.TokenID
	payload.ChainID = invoice.ChainID
	return payload
}

// EncodeNotification is the rabbitmq payload encoder.
func (svc *InvoiceFlowService) EncodeNotification(ctx context.Context, w io.Writer, notification models.Notification) error {
	return json.NewEncoder(w).Encode(svc.notificationPayload(ctx, notification))
}

// HandleSyncRequest serves invoice.sync messages from rabbitmq.
func (svc *InvoiceFlowService) HandleSyncRequest(ctx context.Context, req rabbitmq.SyncRequest) error {
	chainID := req.ChainID
	if chainID == 0 {
		chainID = svc.ChainConfig.ChainID
	}
	_, err := svc.SyncFromChain(ctx, req.TokenID, chainID)
	return err
}
