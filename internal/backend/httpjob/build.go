package httpjob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/backend"
)

// BuildClient implements backend.Build against an HTTP service.
//
//	POST {base}/builds            submit a build
//	GET  {base}/builds/{id}       query build status
type BuildClient struct {
	*client
}

func NewBuildClient(baseURL, user, password string) *BuildClient {
	return &BuildClient{
		client: newClient(baseURL, user, password, zap.L().Named("build_backend")),
	}
}

type buildSubmitResponse struct {
	ID string `json:"id"`
}

type buildStatusResponse struct {
	backend.BuildStatus
	FailurePhases []string `json:"failure_phases"`
}

func (c *BuildClient) StartBuild(ctx context.Context, params *backend.BuildParams) (string, error) {
	var resp buildSubmitResponse

	if err := c.doJSON(ctx, http.MethodPost, "/builds", params, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		return "", fmt.Errorf("build backend returned an empty build id")
	}

	return resp.ID, nil
}

func (c *BuildClient) BuildStatus(ctx context.Context, id string) (*backend.BuildStatus, error) {
	var resp buildStatusResponse

	if err := c.doJSON(ctx, http.MethodGet, "/builds/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	return &resp.BuildStatus, nil
}

func (c *BuildClient) BuildFailures(ctx context.Context, id string, limit int) ([]string, error) {
	var resp buildStatusResponse

	if err := c.doJSON(ctx, http.MethodGet, "/builds/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.FailurePhases) > limit {
		return resp.FailurePhases[:limit], nil
	}

	return resp.FailurePhases, nil
}
