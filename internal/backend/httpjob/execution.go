package httpjob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
)

// ExecutionClient implements backend.Execution against an HTTP service.
//
//	POST {base}/executions        submit an execution
//	GET  {base}/executions/{id}   query execution status and output
type ExecutionClient struct {
	*client
}

func NewExecutionClient(baseURL, user, password string) *ExecutionClient {
	return &ExecutionClient{
		client: newClient(baseURL, user, password, zap.L().Named("execution_backend")),
	}
}

type executionSubmitResponse struct {
	ID string `json:"id"`
}

func (c *ExecutionClient) StartExecution(ctx context.Context, params *backend.ExecutionParams) (string, error) {
	var resp executionSubmitResponse

	if err := c.doJSON(ctx, http.MethodPost, "/executions", params, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		return "", fmt.Errorf("execution backend returned an empty execution id")
	}

	return resp.ID, nil
}

func (c *ExecutionClient) ExecutionStatus(ctx context.Context, id string) (*backend.ExecutionStatus, error) {
	var resp backend.ExecutionStatus

	if err := c.doJSON(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
