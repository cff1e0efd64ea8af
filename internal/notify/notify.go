// Package notify publishes workflow summaries through a notification
// channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "notifier"

// Publisher publishes a subject plus a readable message body.
type Publisher interface {
	Publish(ctx context.Context, subject, body string) error
}

// WebhookPublisher publishes notifications by posting them as JSON to an
// HTTP endpoint.
type WebhookPublisher struct {
	url      string
	user     string
	password string
	clt      *http.Client
	logger   *zap.Logger
}

func NewWebhookPublisher(url, user, password string) *WebhookPublisher {
	return &WebhookPublisher{
		url:      url,
		user:     user,
		password: password,
		clt: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
		logger: zap.L().Named(loggerName),
	}
}

type webhookMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Publish sends the message to the webhook endpoint.
// Any delivery failure is returned as promoerr.NotificationDeliveryError,
// there is no fallback channel.
func (p *WebhookPublisher) Publish(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(webhookMessage{Subject: subject, Body: body})
	if err != nil {
		return &promoerr.NotificationDeliveryError{Subject: subject, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return &promoerr.NotificationDeliveryError{Subject: subject, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.clt.Do(req)
	if err != nil {
		return &promoerr.NotificationDeliveryError{Subject: subject, Err: err}
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Warn(
			"reading webhook response body failed",
			logfields.Event("notification_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &promoerr.NotificationDeliveryError{
			Subject: subject,
			Err: &ErrorHTTPRequest{
				Body:   respBody,
				Status: resp.StatusCode,
			},
		}
	}

	p.logger.Info(
		"notification published",
		logfields.Event("notification_published"),
		zap.String("subject", subject),
	)

	return nil
}

// ErrorHTTPRequest is returned when the webhook endpoint answered with an
// unexpected status code.
type ErrorHTTPRequest struct {
	Body   []byte
	Status int
}

func (e *ErrorHTTPRequest) Error() string {
	return fmt.Sprintf("http request failed with StatusCode: %d, response: %q", e.Status, string(e.Body))
}
