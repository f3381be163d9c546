package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/rabbitmq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNotification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	invoice := mint(t, svc, 51, 1000)

	notifications := notificationsOfType(t, svc, common.NotificationInvoiceCreated)
	require.Len(t, notifications, 1)

	buf := new(bytes.Buffer)
	require.NoError(t, svc.EncodeNotification(ctx, buf, notifications[0]))
	payload := NotificationPayload{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, payer, payload.RecipientAddress)
	assert.Equal(t, invoice.ID, *payload.InvoiceID)
	assert.Equal(t, int64(51), *payload.TokenID)
	assert.Equal(t, int64(97), payload.ChainID)
}

func TestWebhookReceivesNotifications(t *testing.T) {
	svc, _ := newTestService(t)
	received := make(chan NotificationPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := NotificationPayload{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartWebhookSubscription(ctx, server.URL)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return svc.NotificationPubSub.Subscribers(TopicAllNotifications) == 1
	}, time.Second, 5*time.Millisecond)

	svc.Notify(ctx, payer, common.NotificationInvoicePaid, "Invoice Paid", "paid", nil)

	select {
	case payload := <-received:
		assert.Equal(t, common.NotificationInvoicePaid, payload.Type)
		assert.Nil(t, payload.TokenID)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}
	cancel()
	<-done
	assert.Equal(t, 0, svc.NotificationPubSub.Subscribers(TopicAllNotifications))
}

func TestHandleSyncRequestDefaultsChain(t *testing.T) {
	svc, node := newTestService(t)
	node.Invoices[61] = chainRecord(1)
	node.Owners[61] = sellerAddress

	require.NoError(t, svc.HandleSyncRequest(context.Background(), rabbitmq.SyncRequest{TokenID: 61}))
	invoice, err := svc.InvoiceDetailsByToken(context.Background(), 61)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusAwaitingApproval, invoice.Status)
	assert.Equal(t, int64(97), invoice.ChainID)
}
