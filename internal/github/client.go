// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const (
	DefaultGraphQLURL = "https://api.github.com/graphql"
	DefaultAPIURL     = "https://api.github.com/"

	// maxErrorBody bounds how much of an unexpected response body ends up in an error.
	maxErrorBody = 512
)

// Options configures a Client.
type Options struct {
	Token           string
	GraphQLURL      string
	APIURL          string
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrency  int
	MaxReposPerUser int
}

// Client talks to GitHub's GraphQL API for repositories and activity and to the
// REST API for user profiles. All remote calls share one concurrency cap.
type Client struct {
	graphql    *resty.Client
	graphqlURL string
	gh         *github.Client
	sem        *semaphore.Weighted
	maxRepos   int
	logger     *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client that waits
// out GitHub's secondary rate limits.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		},
	}
	return newClient(httpClient, opts, logger)
}

func newClient(httpClient *http.Client, opts Options, logger *slog.Logger) (*Client, error) {
	if opts.GraphQLURL == "" {
		opts.GraphQLURL = DefaultGraphQLURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.MaxReposPerUser < 1 {
		opts.MaxReposPerUser = 100
	}

	gh := github.NewClient(httpClient)
	baseURL, err := url.Parse(strings.TrimSuffix(opts.APIURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid github api url %q: %w", opts.APIURL, err)
	}
	gh.BaseURL = baseURL

	rc := resty.NewWithClient(httpClient).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(opts.MaxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		graphql:    rc,
		graphqlURL: opts.GraphQLURL,
		gh:         gh,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		maxRepos:   opts.MaxReposPerUser,
		logger:     logger,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query executes one GraphQL operation and decodes its "data" member into out.
// Transport failures and non-2xx responses are KindTransport errors; a non-empty
// "errors" array is a KindAPI error (KindNotFound when GitHub tags it NOT_FOUND).
func (c *Client) Query(ctx context.Context, op, query string, variables map[string]any, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return &apperrors.RemoteError{Op: op, Kind: apperrors.KindTransport, Err: err}
	}
	defer c.sem.Release(1)

	var envelope graphQLResponse
	resp, err := c.graphql.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: query, Variables: variables}).
		SetResult(&envelope).
		ForceContentType("application/json").
		Post(c.graphqlURL)
	if err != nil {
		return &apperrors.RemoteError{Op: op, Kind: apperrors.KindTransport, Err: err}
	}
	if resp.IsError() {
		return &apperrors.RemoteError{
			Op:   op,
			Kind: apperrors.KindTransport,
			Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), maxErrorBody)),
		}
	}

	if len(envelope.Errors) > 0 {
		kind := apperrors.KindAPI
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			if e.Type == "NOT_FOUND" {
				kind = apperrors.KindNotFound
			}
			messages = append(messages, e.Message)
		}
		return &apperrors.RemoteError{Op: op, Kind: kind, Messages: messages}
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &apperrors.RemoteError{Op: op, Kind: apperrors.KindAPI, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// GetUserProfile fetches a user's profile from the REST users endpoint and
// translates it to our internal model. FetchedAt is left for the store to set.
func (c *Client) GetUserProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	const op = "get user profile"
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &apperrors.RemoteError{Op: op, Kind: apperrors.KindTransport, Err: err}
	}
	defer c.sem.Release(1)

	user, _, err := c.gh.Users.Get(ctx, username)
	if err != nil {
		return nil, classifyRESTError(op, err)
	}
	return toInternalProfile(username, user), nil
}

func classifyRESTError(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		kind := apperrors.KindAPI
		if ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			kind = apperrors.KindNotFound
		}
		return &apperrors.RemoteError{Op: op, Kind: kind, Messages: []string{ghErr.Message}, Err: err}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &apperrors.RemoteError{Op: op, Kind: apperrors.KindAPI, Messages: []string{rateErr.Message}, Err: err}
	}
	return &apperrors.RemoteError{Op: op, Kind: apperrors.KindTransport, Err: err}
}

// toInternalProfile translates a github.User object to our internal model.UserProfile.
func toInternalProfile(username string, u *github.User) *model.UserProfile {
	raw, _ := json.Marshal(u)
	return &model.UserProfile{
		Username:        username,
		DisplayName:     u.Name,
		Bio:             u.Bio,
		AvatarURL:       u.AvatarURL,
		Location:        u.Location,
		Company:         u.Company,
		Blog:            u.Blog,
		TwitterUsername: u.TwitterUsername,
		Email:           u.Email,
		PublicRepos:     u.GetPublicRepos(),
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
		AccountType:     u.GetType(),
		CreatedAt:       u.GetCreatedAt().Time,
		UpdatedAt:       u.GetUpdatedAt().Time,
		RawData:         raw,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
