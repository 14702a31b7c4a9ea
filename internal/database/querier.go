package database

import (
	"context"
	"time"

	"github-activity-resolver/internal/model"
)

type Querier interface {
	CountComments(ctx context.Context, author, repo string, kind model.CommentType, since time.Time) (int, error)
	CountCommits(ctx context.Context, author, repo string, since time.Time) (int, error)
	CountIssues(ctx context.Context, author, repo string, since time.Time) (int, error)
	CountPullRequests(ctx context.Context, author, repo string, since time.Time) (int, error)
	FindProfile(ctx context.Context, username string) (*model.UserProfile, error)
	IsProfileCacheValid(ctx context.Context, username string, threshold time.Time) (bool, error)
	ListCommits(ctx context.Context, repo, author string, limit int) ([]model.Commit, error)
	Ping(ctx context.Context) error
	StoreActivity(ctx context.Context, activity model.ActivityBatch) error
	UpsertComments(ctx context.Context, comments []model.Comment) error
	UpsertCommits(ctx context.Context, commits []model.Commit) error
	UpsertIssues(ctx context.Context, issues []model.Issue) error
	UpsertProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error)
	UpsertPullRequests(ctx context.Context, prs []model.PullRequest) error
}

var _ Querier = (*Queries)(nil)
