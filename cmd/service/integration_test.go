//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-activity-resolver/internal/api"
	"github-activity-resolver/internal/app"
	"github-activity-resolver/internal/config"
	"github-activity-resolver/internal/database"
	"github-activity-resolver/internal/model"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, app.RunMigrations("file://../../migrations", connStr))

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	teardown := func() {
		dbpool.Close()
		require.NoError(t, pgContainer.Terminate(ctx))
	}
	return dbpool, teardown
}

// fakeGitHub serves the GraphQL and REST endpoints the resolver calls and
// counts activity queries.
func fakeGitHub(t *testing.T, activityQueries *int32) *httptest.Server {
	recent := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	old := time.Now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/users/octocat":
			fmt.Fprint(w, `{"login":"octocat","name":"The Octocat","type":"User","public_repos":2,"followers":10,"following":1,"created_at":"2011-01-25T18:44:36Z"}`)
		case r.URL.Path == "/graphql":
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var req struct {
				Query     string         `json:"query"`
				Variables map[string]any `json:"variables"`
			}
			require.NoError(t, json.Unmarshal(body, &req))

			if _, ok := req.Variables["login"]; ok {
				fmt.Fprint(w, `{"data":{"user":{"repositories":{
					"nodes":[
						{"name":"popular","url":"https://github.com/octocat/popular","owner":{"login":"octocat"},"forkCount":10},
						{"name":"quiet","url":"https://github.com/octocat/quiet","owner":{"login":"octocat"},"forkCount":3}
					],
					"pageInfo":{"hasNextPage":false,"endCursor":null}}}}}`)
				return
			}

			atomic.AddInt32(activityQueries, 1)
			assert.Equal(t, "popular", req.Variables["name"])
			fmt.Fprintf(w, `{"data":{"repository":{
				"defaultBranchRef":{"target":{"history":{"nodes":[
					{"oid":"c1","committedDate":%[1]q,"message":"recent","author":{"user":{"login":"octocat"}}},
					{"oid":"c2","committedDate":%[2]q,"message":"old","author":{"user":{"login":"octocat"}}},
					{"oid":"c3","committedDate":%[1]q,"message":"someone else","author":{"user":{"login":"hubot"}}}
				]}}},
				"pullRequests":{"nodes":[
					{"number":1,"title":"pr","state":"OPEN","createdAt":%[1]q,"author":{"login":"octocat"},
					 "comments":{"nodes":[{"id":"pc1","body":"lgtm","createdAt":%[1]q,"author":{"login":"octocat"}}]}}
				]},
				"issues":{"nodes":[
					{"number":2,"title":"bug","state":"OPEN","createdAt":%[1]q,"author":{"login":"hubot"},
					 "comments":{"nodes":[{"id":"ic1","body":"same here","createdAt":%[1]q,"author":{"login":"octocat"}}]}}
				]}}}}`, recent, old)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestResolveActivity_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	var activityQueries int32
	server := fakeGitHub(t, &activityQueries)

	cfg := &config.Config{
		StorageDriver:        config.StorageDriverPostgres,
		GithubToken:          "test-token",
		GithubGraphQLURL:     server.URL + "/graphql",
		GithubAPIURL:         server.URL,
		GithubRequestTimeout: 10 * time.Second,
		GithubMaxConcurrency: 2,
		MinForkCount:         3,
		MonthsToAnalyze:      6,
		MaxReposPerUser:      100,
		MaxCommitsPerRepo:    100,
		MaxPRsPerRepo:        100,
		MaxIssuesPerRepo:     100,
		CacheTTL:             24 * time.Hour,
		UserConcurrency:      2,
		RepoConcurrency:      2,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := database.New(dbpool)
	service, err := app.NewService(cfg, store, logger)
	require.NoError(t, err)
	router := api.NewRouter(service, store, api.Options{StorageDriver: cfg.StorageDriver, TokenConfigured: true}, logger)

	resolve := func() model.ActivityReport {
		req := httptest.NewRequest(http.MethodPost, "/v1/github/activity", strings.NewReader(`{"usernames":["octocat"]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var report model.ActivityReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		return report
	}

	// --- ACT: first request fetches from GitHub and fills the store ---
	first := resolve()

	require.Len(t, first.Users, 1)
	user := first.Users[0]
	assert.Empty(t, user.User.Error)
	require.NotNil(t, user.User.UserProfile)
	require.NotNil(t, user.User.DisplayName)
	assert.Equal(t, "The Octocat", *user.User.DisplayName)
	require.Len(t, user.Repos, 1, "only the repository above the fork threshold qualifies")
	assert.Equal(t, "popular", user.Repos[0].RepoName)
	assert.Equal(t, 1, user.Repos[0].Commits)
	assert.Equal(t, 1, user.Repos[0].PullRequests)
	assert.Equal(t, 0, user.Repos[0].Issues)
	assert.Equal(t, 1, user.Repos[0].PRComments)
	assert.Equal(t, 1, user.Repos[0].IssueComments)
	assert.Equal(t, 4, first.GlobalSummary.TotalCommits+first.GlobalSummary.TotalPRs+first.GlobalSummary.TotalPRComments+first.GlobalSummary.TotalIssueComments)
	assert.Equal(t, 1, first.GlobalSummary.SuccessfulUsers)
	assert.Equal(t, int32(1), atomic.LoadInt32(&activityQueries))

	// --- ACT: second request is served from the store ---
	second := resolve()

	assert.Equal(t, first.GlobalSummary, second.GlobalSummary)
	assert.Equal(t, int32(1), atomic.LoadInt32(&activityQueries), "cached activity must not be fetched again")

	// --- ASSERT: stored commits are listed newest first ---
	req := httptest.NewRequest(http.MethodGet, "/v1/repos/octocat/popular/commits?author=octocat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var commits []model.Commit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commits))
	require.Len(t, commits, 2)
	assert.Equal(t, "c1", commits[0].SHA)
	assert.Equal(t, "c2", commits[1].SHA)
}
