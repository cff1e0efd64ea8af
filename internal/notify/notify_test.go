package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

func TestPublishSendsSubjectAndBody(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	var got webhookMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	t.Cleanup(srv.Close)

	pub := NewWebhookPublisher(srv.URL, "", "")

	err := pub.Publish(context.Background(), "Fork Promoter - SUCCESS", `{"status": "SUCCESS"}`)
	require.NoError(t, err)

	assert.Equal(t, "Fork Promoter - SUCCESS", got.Subject)
	assert.Equal(t, `{"status": "SUCCESS"}`, got.Body)
}

func TestPublishFailureReturnsDeliveryError(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	pub := NewWebhookPublisher(srv.URL, "", "")

	err := pub.Publish(context.Background(), "Fork Promoter - FAILED", "{}")
	require.Error(t, err)

	var deliveryErr *promoerr.NotificationDeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "Fork Promoter - FAILED", deliveryErr.Subject)
}

func TestPublishUnreachableEndpointReturnsDeliveryError(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	pub := NewWebhookPublisher("http://127.0.0.1:1/webhook", "", "")

	err := pub.Publish(context.Background(), "Fork Promoter - SKIPPED", "{}")

	var deliveryErr *promoerr.NotificationDeliveryError
	require.ErrorAs(t, err, &deliveryErr)
}
