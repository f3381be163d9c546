package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/invoiceflow/invoiceflow/db/models"
)

const webhookRetryWindow = 30 * time.Second

func (svc *InvoiceFlowService) StartWebhookSubscription(ctx context.Context, url string) {
	svc.Logger.Infof("Starting webhook subscription with webhook url %s", url)
	notifications, unsubscribe, err := svc.SubscribeNotifications()
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer unsubscribe()

	client := &http.Client{Timeout: 10 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-notifications:
			if !ok {
				return
			}
			svc.postToWebhook(ctx, client, url, notification)
		}
	}
}

// postToWebhook delivers one notification, retrying transport errors and
// 5xx answers for up to webhookRetryWindow.
func (svc *InvoiceFlowService) postToWebhook(ctx context.Context, client *http.Client, url string, notification models.Notification) {
	body, err := json.Marshal(svc.notificationPayload(ctx, notification))
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = webhookRetryWindow
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("webhook answered %d: %s", resp.StatusCode, msg)
		if resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		svc.Logger.Errorf("Notification %d not delivered to webhook: %v", notification.ID, err)
	}
}
