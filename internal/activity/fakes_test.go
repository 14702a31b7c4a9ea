package activity

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/github"
	"github-activity-resolver/internal/model"
)

// MockGateway is a mock of the Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListUserRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	args := m.Called(ctx, username)
	repos, _ := args.Get(0).([]model.Repository)
	return repos, args.Error(1)
}

func (m *MockGateway) FetchRepositoryActivity(ctx context.Context, repo model.Repository, limits github.ActivityLimits) (*github.RepositoryActivity, error) {
	args := m.Called(ctx, repo, limits)
	activity, _ := args.Get(0).(*github.RepositoryActivity)
	return activity, args.Error(1)
}

func (m *MockGateway) GetUserProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	args := m.Called(ctx, username)
	profile, _ := args.Get(0).(*model.UserProfile)
	return profile, args.Error(1)
}

// memStore is an in-memory Store keyed like the real ones.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	commits  map[string]model.Commit
	prs      map[string]model.PullRequest
	issues   map[string]model.Issue
	comments map[string]model.Comment
	profiles map[string]model.UserProfile

	upserts   int
	countErr  error
	upsertErr error

	// failNextStore fails one StoreActivity call and is then cleared.
	failNextStore error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now:      now,
		commits:  map[string]model.Commit{},
		prs:      map[string]model.PullRequest{},
		issues:   map[string]model.Issue{},
		comments: map[string]model.Comment{},
		profiles: map[string]model.UserProfile{},
	}
}

// StoreActivity applies the whole batch under one lock or nothing at all.
func (s *memStore) StoreActivity(ctx context.Context, batch model.ActivityBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failNextStore != nil {
		err := s.failNextStore
		s.failNextStore = nil
		return err
	}
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	for _, c := range batch.Commits {
		c.FetchedAt = s.now()
		s.commits[c.Repo+"|"+c.SHA] = c
	}
	for _, pr := range batch.PullRequests {
		pr.FetchedAt = s.now()
		s.prs[pr.Repo+"|"+strconv.Itoa(pr.Number)] = pr
	}
	for _, is := range batch.Issues {
		is.FetchedAt = s.now()
		s.issues[is.Repo+"|"+strconv.Itoa(is.Number)] = is
	}
	for _, c := range batch.Comments {
		c.FetchedAt = s.now()
		s.comments[c.CommentID] = c
	}
	return nil
}

func (s *memStore) CountCommits(_ context.Context, author, repo string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, c := range s.commits {
		if c.Author == author && c.Repo == repo && !c.CommittedDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountPullRequests(_ context.Context, author, repo string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, pr := range s.prs {
		if pr.Author == author && pr.Repo == repo && !pr.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountIssues(_ context.Context, author, repo string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, is := range s.issues {
		if is.Author == author && is.Repo == repo && !is.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountComments(_ context.Context, author, repo string, kind model.CommentType, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, c := range s.comments {
		if c.Author == author && c.Repo == repo && c.Type == kind && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindProfile(_ context.Context, username string) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) UpsertProfile(_ context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *profile
	p.FetchedAt = s.now()
	s.profiles[p.Username] = p
	return &p, nil
}

func (s *memStore) IsProfileCacheValid(_ context.Context, username string, threshold time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[username]
	return ok && !p.FetchedAt.Before(threshold), nil
}

func (s *memStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits) + len(s.prs) + len(s.issues) + len(s.comments)
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// windowStart is testNow minus the default six-month window.
var windowStart = time.Date(2026, 4, 19, 12, 0, 0, 0, time.UTC)

func defaultOptions() Options {
	return Options{
		TokenConfigured: true,
		MinForkCount:    3,
		MonthsToAnalyze: 6,
		Limits:          github.ActivityLimits{Commits: 100, PullRequests: 100, Issues: 100},
		CacheTTL:        24 * time.Hour,
		UserConcurrency: 1,
		RepoConcurrency: 1,
	}
}

func newTestService(gw Gateway, store Store, opts Options) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewService(gw, store, opts, logger)
	s.now = func() time.Time { return testNow }
	return s
}

func profileFor(username string) *model.UserProfile {
	return &model.UserProfile{Username: username, AccountType: "User", PublicRepos: 2}
}

func testRepo(name string, forks int) model.Repository {
	return model.Repository{Name: name, Owner: "octocat", URL: "https://github.com/octocat/" + name, ForkCount: forks}
}

func commitNode(oid, login string, at time.Time) github.CommitNode {
	c := github.CommitNode{OID: oid, CommittedDate: at, Message: "change " + oid}
	if login != "" {
		c.Author.User = &github.Actor{Login: login}
	}
	return c
}

func commentNode(id, login string, at time.Time) github.CommentNode {
	return github.CommentNode{ID: id, Body: "comment " + id, CreatedAt: at, Author: &github.Actor{Login: login}}
}

func pullRequestNode(number int, login string, at time.Time, comments ...github.CommentNode) github.PullRequestNode {
	pr := github.PullRequestNode{Number: number, Title: "pr", State: "OPEN", CreatedAt: at, Author: &github.Actor{Login: login}}
	pr.Comments.Nodes = comments
	return pr
}

func issueNode(number int, login string, at time.Time, comments ...github.CommentNode) github.IssueNode {
	is := github.IssueNode{Number: number, Title: "issue", State: "OPEN", CreatedAt: at, Author: &github.Actor{Login: login}}
	is.Comments.Nodes = comments
	return is
}
