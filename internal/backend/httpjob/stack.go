package httpjob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
)

// StackClient implements backend.Stack against an HTTP service managing
// one deployment stack.
//
//	GET  {base}/stacks/{name}         query stack state/status
//	POST {base}/stacks/{name}/update  submit a stack update
//	GET  {base}/stacks/{name}/events  list failed resource events
type StackClient struct {
	*client
	stackName string
}

func NewStackClient(baseURL, user, password, stackName string) *StackClient {
	return &StackClient{
		client:    newClient(baseURL, user, password, zap.L().Named("stack_backend")),
		stackName: stackName,
	}
}

type stackUpdateResponse struct {
	ExecutionID string `json:"execution_id"`
	NoChanges   bool   `json:"no_changes"`
}

type stackEventsResponse struct {
	Events []struct {
		Resource string `json:"resource"`
		Reason   string `json:"reason"`
	} `json:"events"`
}

func (c *StackClient) stackPath() string {
	return "/stacks/" + url.PathEscape(c.stackName)
}

func (c *StackClient) State(ctx context.Context) (string, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return "", err
	}

	return status.Status, nil
}

func (c *StackClient) Update(ctx context.Context, params *backend.StackUpdateParams) (string, error) {
	var resp stackUpdateResponse

	if err := c.doJSON(ctx, http.MethodPost, c.stackPath()+"/update", params, &resp); err != nil {
		return "", err
	}

	if resp.NoChanges {
		return "", backend.ErrNoChanges
	}

	if resp.ExecutionID == "" {
		return "", fmt.Errorf("stack backend returned an empty execution id")
	}

	return resp.ExecutionID, nil
}

func (c *StackClient) Status(ctx context.Context) (*backend.StackStatus, error) {
	var resp backend.StackStatus

	if err := c.doJSON(ctx, http.MethodGet, c.stackPath(), nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *StackClient) FailedResourceEvents(ctx context.Context, limit int) ([]string, error) {
	var resp stackEventsResponse

	path := fmt.Sprintf("%s/events?status=failed&limit=%d", c.stackPath(), limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		if len(result) == limit {
			break
		}

		result = append(result, fmt.Sprintf("%s: %s", ev.Resource, ev.Reason))
	}

	return result, nil
}
