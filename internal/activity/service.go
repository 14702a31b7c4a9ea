// Package activity resolves GitHub users' recent contribution activity,
// serving repeat requests from storage and fetching from GitHub only when the
// store has nothing for a user/repository pair.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/github"
	"github-activity-resolver/internal/model"
)

// Gateway is the subset of the GitHub client the resolver needs.
type Gateway interface {
	ListUserRepositories(ctx context.Context, username string) ([]model.Repository, error)
	FetchRepositoryActivity(ctx context.Context, repo model.Repository, limits github.ActivityLimits) (*github.RepositoryActivity, error)
	GetUserProfile(ctx context.Context, username string) (*model.UserProfile, error)
}

// ActivityStore persists activity records and answers windowed counts.
// StoreActivity must write the whole batch or nothing.
type ActivityStore interface {
	StoreActivity(ctx context.Context, batch model.ActivityBatch) error
	CountCommits(ctx context.Context, author, repo string, since time.Time) (int, error)
	CountPullRequests(ctx context.Context, author, repo string, since time.Time) (int, error)
	CountIssues(ctx context.Context, author, repo string, since time.Time) (int, error)
	CountComments(ctx context.Context, author, repo string, kind model.CommentType, since time.Time) (int, error)
}

// ProfileStore persists user profile snapshots.
type ProfileStore interface {
	FindProfile(ctx context.Context, username string) (*model.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error)
	IsProfileCacheValid(ctx context.Context, username string, threshold time.Time) (bool, error)
}

type Store interface {
	ActivityStore
	ProfileStore
}

// Options tunes a Service. Zero concurrency values mean sequential processing.
type Options struct {
	// TokenConfigured is false when no GitHub token is available; every batch
	// then fails with apperrors.ErrMissingToken.
	TokenConfigured bool
	MinForkCount    int
	MonthsToAnalyze int
	Limits          github.ActivityLimits
	CacheTTL        time.Duration
	UserConcurrency int
	RepoConcurrency int
}

// Service orchestrates profile resolution, repository discovery, cache-aside
// activity resolution and aggregation for batches of usernames.
type Service struct {
	gateway Gateway
	store   Store
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	flight  singleflight.Group
}

func NewService(gateway Gateway, store Store, opts Options, logger *slog.Logger) *Service {
	if opts.UserConcurrency < 1 {
		opts.UserConcurrency = 1
	}
	if opts.RepoConcurrency < 1 {
		opts.RepoConcurrency = 1
	}
	return &Service{
		gateway: gateway,
		store:   store,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// githubLogin matches valid GitHub account names.
var githubLogin = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// ResolveActivity resolves every username and returns one result per distinct
// username in request order plus the global summary. Per-user failures are
// reported inside the result, including users left unfinished when ctx ends;
// only a missing token fails the whole batch.
func (s *Service) ResolveActivity(ctx context.Context, usernames []string) (model.ActivityReport, error) {
	if !s.opts.TokenConfigured {
		return model.ActivityReport{}, apperrors.ErrMissingToken
	}

	names := normalizeUsernames(usernames)
	now := s.now()
	since := now.AddDate(0, -s.opts.MonthsToAnalyze, 0)
	s.logger.Info("Resolving activity", "users", len(names), "since", since.Format(time.RFC3339))

	results := make([]model.UserActivityResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.UserConcurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = failedUser(name, nil, interrupted(err))
				return nil
			}
			results[i] = s.resolveUser(gctx, name, since)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		s.logger.Warn("Batch ended before every user finished", "error", err)
	}

	report := model.ActivityReport{
		Users:         results,
		GlobalSummary: summarizeGlobal(results, since, now, s.opts.MinForkCount),
	}
	s.logger.Info("Activity resolved",
		"successful_users", report.GlobalSummary.SuccessfulUsers,
		"failed_users", report.GlobalSummary.FailedUsers,
		"total_repos", report.GlobalSummary.TotalRepos,
	)
	return report, nil
}

func (s *Service) resolveUser(ctx context.Context, username string, since time.Time) model.UserActivityResult {
	logger := s.logger.With("user", username)

	if !githubLogin.MatchString(username) {
		err := &apperrors.ErrInvalidUsername{Username: username}
		logger.Error("Rejected username", "error", err)
		return failedUser(username, nil, err)
	}

	profile, err := s.resolveProfile(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			logger.Warn("User not found on GitHub", "error", err)
		} else {
			logger.Error("Failed to resolve profile", "error", err)
		}
		return failedUser(username, nil, err)
	}

	repos, err := s.gateway.ListUserRepositories(ctx, username)
	if err != nil {
		logger.Error("Failed to list repositories", "error", err)
		return failedUser(username, profile, err)
	}

	qualifying, err := s.resolveRepos(ctx, logger, username, repos, since)
	if err != nil {
		logger.Warn("Repository resolution interrupted", "error", err)
		return failedUser(username, profile, interrupted(err))
	}
	summary := summarizeUser(qualifying)
	logger.Info("User resolved", "repos", len(repos), "qualifying_repos", len(qualifying))
	return model.UserActivityResult{
		User:    model.UserResult{UserProfile: profile, Username: username},
		Repos:   qualifying,
		Summary: &summary,
	}
}

// resolveRepos applies the fork filter, resolves each remaining repository
// through the bounded repo pool and keeps those with nonzero activity, in
// discovery order. Failed repositories are logged and skipped. When ctx ends
// before every repository was resolved the partial result is discarded and
// ctx's error returned.
func (s *Service) resolveRepos(ctx context.Context, logger *slog.Logger, username string, repos []model.Repository, since time.Time) ([]model.RepoActivity, error) {
	var candidates []model.Repository
	for _, repo := range repos {
		if repo.ForkCount > s.opts.MinForkCount {
			candidates = append(candidates, repo)
		}
	}

	resolved := make([]*model.RepoActivity, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.RepoConcurrency)
	for i, repo := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			activity, err := s.resolveRepoActivity(gctx, repo, username, since)
			if err != nil {
				logger.Warn("Failed to resolve repository activity", "repo", repo.FullName(), "error", err)
				return nil
			}
			resolved[i] = &activity
			return nil
		})
	}
	_ = g.Wait()

	qualifying := make([]model.RepoActivity, 0, len(resolved))
	for _, a := range resolved {
		if a == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		if a.Total() > 0 {
			qualifying = append(qualifying, *a)
		}
	}
	return qualifying, nil
}

func interrupted(err error) error {
	return fmt.Errorf("activity resolution interrupted: %w", err)
}

func failedUser(username string, profile *model.UserProfile, err error) model.UserActivityResult {
	return model.UserActivityResult{
		User:  model.UserResult{UserProfile: profile, Username: username, Error: err.Error()},
		Repos: []model.RepoActivity{},
	}
}

// normalizeUsernames trims names and drops empties and duplicates, keeping
// first occurrences in order. GitHub logins are case-insensitive, so
// duplicates are detected ignoring case and the first spelling wins.
func normalizeUsernames(usernames []string) []string {
	seen := make(map[string]struct{}, len(usernames))
	names := make([]string, 0, len(usernames))
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}
