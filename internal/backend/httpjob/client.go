// Package httpjob implements the backend interfaces against HTTP services
// that front the build, deployment and test-execution systems.
// Jobs are submitted with JSON POST requests, statuses are queried with GET
// requests. Server errors and connection errors are wrapped as retryable so
// that status polls recover from transient backend unavailability.
package httpjob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const DefaultHTTPClientTimeout = time.Minute

// ErrorHTTPRequest is returned when a request was answered with an
// unexpected status code.
type ErrorHTTPRequest struct {
	Body   []byte
	Status int
}

func (e *ErrorHTTPRequest) Error() string {
	return fmt.Sprintf("http request failed with StatusCode: %d, response: %q", e.Status, string(e.Body))
}

// client sends JSON requests to a job backend.
type client struct {
	baseURL  string
	user     string
	password string
	clt      *http.Client
	logger   *zap.Logger
}

func newClient(baseURL, user, password string, logger *zap.Logger) *client {
	return &client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		user:     user,
		password: password,
		clt: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
		logger: logger,
	}
}

// doJSON sends a request with an optional JSON body and decodes the JSON
// response into out.
// Connection errors and 5xx responses are returned as
// promoerr.RetryableError, other unexpected status codes as
// ErrorHTTPRequest.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.clt.Do(req)
	if err != nil {
		return promoerr.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn(
			"reading http response body failed",
			logfields.Event("http_job_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		return promoerr.NewRetryableAnytimeError(&ErrorHTTPRequest{
			Body:   respBody,
			Status: resp.StatusCode,
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ErrorHTTPRequest{
			Body:   respBody,
			Status: resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, path, err)
	}

	return nil
}
