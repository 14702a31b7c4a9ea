//go:build integration

package mongostore

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

func setupTestStore(ctx context.Context, t *testing.T) *Store {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			// Transactions need a replica set, even a single-member one.
			Cmd:        []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor: wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	code, _, err := container.Exec(ctx, []string{"mongosh", "--quiet", "--eval",
		"rs.initiate(); while (!db.hello().isWritablePrimary) { sleep(100); }"})
	require.NoError(t, err)
	require.Zero(t, code, "replica set initiation failed")

	endpoint, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)
	uri := endpoint + "/?directConnection=true"

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := Connect(ctx, uri, "activity_test", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store := setupTestStore(ctx, t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("upserts are idempotent and counts honour the window", func(t *testing.T) {
		commits := []model.Commit{
			{Repo: "octocat/alpha", RepoOwner: "octocat", SHA: "abc", CommittedDate: since, Author: "octocat"},
			{Repo: "octocat/alpha", RepoOwner: "octocat", SHA: "def", CommittedDate: since.Add(-time.Second), Author: "octocat"},
		}
		require.NoError(t, store.UpsertCommits(ctx, commits))
		require.NoError(t, store.UpsertCommits(ctx, commits))

		n, err := store.CountCommits(ctx, "octocat", "octocat/alpha", since)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := store.ListCommits(ctx, "octocat/alpha", "octocat", 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, "abc", all[0].SHA)
	})

	t.Run("comments are counted by type", func(t *testing.T) {
		require.NoError(t, store.UpsertComments(ctx, []model.Comment{
			{CommentID: "c1", Repo: "octocat/alpha", Author: "octocat", Type: model.CommentTypePR, CreatedAt: since},
			{CommentID: "c2", Repo: "octocat/alpha", Author: "octocat", Type: model.CommentTypeIssue, CreatedAt: since},
		}))
		require.NoError(t, store.UpsertPullRequests(ctx, []model.PullRequest{{Repo: "octocat/alpha", Number: 1, Author: "octocat", CreatedAt: since}}))
		require.NoError(t, store.UpsertIssues(ctx, []model.Issue{{Repo: "octocat/alpha", Number: 2, Author: "octocat", CreatedAt: since}}))

		for _, kind := range []model.CommentType{model.CommentTypePR, model.CommentTypeIssue} {
			n, err := store.CountComments(ctx, "octocat", "octocat/alpha", kind, since)
			require.NoError(t, err)
			assert.Equal(t, 1, n, string(kind))
		}
		prs, err := store.CountPullRequests(ctx, "octocat", "octocat/alpha", since)
		require.NoError(t, err)
		assert.Equal(t, 1, prs)
		issues, err := store.CountIssues(ctx, "octocat", "octocat/alpha", since)
		require.NoError(t, err)
		assert.Equal(t, 1, issues)
	})

	t.Run("profiles", func(t *testing.T) {
		_, err := store.FindProfile(ctx, "octocat")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		stored, err := store.UpsertProfile(ctx, &model.UserProfile{Username: "octocat", PublicRepos: 3, AccountType: "User"})
		require.NoError(t, err)
		assert.Equal(t, 3, stored.PublicRepos)

		valid, err := store.IsProfileCacheValid(ctx, "octocat", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.True(t, valid)
		valid, err = store.IsProfileCacheValid(ctx, "octocat", stored.FetchedAt)
		require.NoError(t, err)
		assert.True(t, valid, "a snapshot written exactly at the threshold is still fresh")
		valid, err = store.IsProfileCacheValid(ctx, "octocat", stored.FetchedAt.Add(time.Millisecond))
		require.NoError(t, err)
		assert.False(t, valid)

		stored, err = store.UpsertProfile(ctx, &model.UserProfile{Username: "octocat", PublicRepos: 4, AccountType: "User"})
		require.NoError(t, err)
		assert.Equal(t, 4, stored.PublicRepos)
	})

	t.Run("activity batches are stored in one transaction", func(t *testing.T) {
		batch := model.ActivityBatch{
			Commits:      []model.Commit{{Repo: "octocat/gamma", RepoOwner: "octocat", SHA: "g1", CommittedDate: since, Author: "octocat"}},
			PullRequests: []model.PullRequest{{Repo: "octocat/gamma", Number: 1, Author: "octocat", CreatedAt: since}},
			Issues:       []model.Issue{{Repo: "octocat/gamma", Number: 2, Author: "octocat", CreatedAt: since}},
			Comments: []model.Comment{
				{CommentID: "g-c1", Repo: "octocat/gamma", Author: "octocat", Type: model.CommentTypeIssue, ParentNumber: 2, CreatedAt: since},
			},
		}
		require.NoError(t, store.StoreActivity(ctx, batch))
		require.NoError(t, store.StoreActivity(ctx, batch))

		commits, err := store.CountCommits(ctx, "octocat", "octocat/gamma", since)
		require.NoError(t, err)
		assert.Equal(t, 1, commits)
		issueComments, err := store.CountComments(ctx, "octocat", "octocat/gamma", model.CommentTypeIssue, since)
		require.NoError(t, err)
		assert.Equal(t, 1, issueComments)
	})

	t.Run("a cancelled activity write leaves nothing behind", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := store.StoreActivity(cancelled, model.ActivityBatch{
			Commits: []model.Commit{{Repo: "octocat/delta", RepoOwner: "octocat", SHA: "d1", CommittedDate: since, Author: "octocat"}},
		})
		require.Error(t, err)

		n, err := store.CountCommits(ctx, "octocat", "octocat/delta", since)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
