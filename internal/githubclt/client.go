// Package githubclt provides a github API client for querying upstream
// releases.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/promoerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// New returns a new github api client.
// When oauthAPItoken is empty, requests are sent unauthenticated and the
// GraphQL API is unavailable.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:       github.NewClient(httpClient),
		graphQLClt:    githubv4.NewClient(httpClient),
		authenticated: oauthAPItoken != "",
		logger:        zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client.
// All methods return a promoerr.RetryableError when an operation can be
// retried. This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt       *github.Client
	graphQLClt    *githubv4.Client
	authenticated bool
	logger        *zap.Logger
}

// Release describes the latest published version of a repository.
type Release struct {
	// Version is the release tag name, or the release title when the
	// tag name is empty.
	Version     string
	URL         string
	PublishedAt time.Time
	Notes       string
}

// LatestRelease returns the latest published release of the repository.
// When the repository has no releases, the most recent tag is returned as
// the release candidate instead.
// promoerr.ErrNoReleaseFound is returned when neither a release nor a tag
// exists.
func (clt *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	release, _, err := clt.restClt.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound {
			clt.logger.Info(
				"release lookup returned not found, falling back to tags",
				logfields.Event("github_release_lookup_not_found"),
				logfields.RepositoryOwner(owner),
				logfields.Repository(repo),
			)

			return clt.latestTag(ctx, owner, repo)
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	version := release.GetTagName()
	if version == "" {
		version = release.GetName()
	}

	if version == "" {
		return nil, promoerr.ErrNoReleaseFound
	}

	return &Release{
		Version:     version,
		URL:         release.GetHTMLURL(),
		PublishedAt: release.GetPublishedAt().Time,
		Notes:       release.GetBody(),
	}, nil
}

// latestTag returns the most recent tag of the repository.
// The GraphQL API can order tags by commit date, the REST tag listing can
// not. GraphQL requires authentication, unauthenticated clients fall back
// to the first entry of the REST tag listing.
func (clt *Client) latestTag(ctx context.Context, owner, repo string) (*Release, error) {
	if clt.authenticated {
		release, err := clt.latestTagGraphQL(ctx, owner, repo)
		if err == nil {
			return release, nil
		}

		if errors.Is(err, promoerr.ErrNoReleaseFound) {
			return nil, err
		}

		clt.logger.Warn(
			"querying most recent tag via graphql failed, falling back to tag listing",
			logfields.Event("github_graphql_tag_query_failed"),
			zap.Error(err),
		)
	}

	tags, _, err := clt.restClt.Repositories.ListTags(ctx, owner, repo, &github.ListOptions{PerPage: 1})
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	if len(tags) == 0 || tags[0].GetName() == "" {
		return nil, promoerr.ErrNoReleaseFound
	}

	return &Release{
		Version: tags[0].GetName(),
		URL:     fmt.Sprintf("https://github.com/%s/%s/tree/%s", owner, repo, tags[0].GetName()),
	}, nil
}

func (clt *Client) latestTagGraphQL(ctx context.Context, owner, repo string) (*Release, error) {
	var q struct {
		Repository struct {
			Refs struct {
				Nodes []struct {
					Name   githubv4.String
					Target struct {
						Commit struct {
							CommittedDate githubv4.DateTime
						} `graphql:"... on Commit"`
					}
				}
			} `graphql:"refs(refPrefix: \"refs/tags/\", first: 1, orderBy: {field: TAG_COMMIT_DATE, direction: DESC})"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	nodes := q.Repository.Refs.Nodes
	if len(nodes) == 0 || string(nodes[0].Name) == "" {
		return nil, promoerr.ErrNoReleaseFound
	}

	return &Release{
		Version:     string(nodes[0].Name),
		URL:         fmt.Sprintf("https://github.com/%s/%s/tree/%s", owner, repo, nodes[0].Name),
		PublishedAt: nodes[0].Target.Commit.CommittedDate.Time,
	}, nil
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return promoerr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.ErrorResponse:
		if v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return promoerr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return promoerr.NewRetryableAnytimeError(err)
	}

	return err
}
