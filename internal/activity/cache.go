package activity

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github-activity-resolver/internal/model"
)

// sharedFetchTimeout bounds a fetch that no longer follows any one caller's
// context.
const sharedFetchTimeout = 5 * time.Minute

// resolveRepoActivity returns the user's windowed counts for one repository.
// Stored data is used whenever any of the five counts is nonzero; otherwise
// the repository is fetched from GitHub, written back and counted for this
// caller's window.
func (s *Service) resolveRepoActivity(ctx context.Context, repo model.Repository, username string, since time.Time) (model.RepoActivity, error) {
	counts, err := s.cachedCounts(ctx, username, repo.FullName(), since)
	if err != nil {
		return model.RepoActivity{}, fmt.Errorf("read cached activity: %w", err)
	}
	if counts.Total() > 0 {
		s.logger.Debug("Using cached activity", "user", username, "repo", repo.FullName())
	} else {
		s.logger.Debug("No cached activity, fetching from GitHub", "user", username, "repo", repo.FullName())
		batch, err := s.fetchShared(ctx, repo, username)
		if err != nil {
			return model.RepoActivity{}, err
		}
		counts = countSince(batch, since)
	}

	counts.RepoName = repo.Name
	counts.Description = repo.Description
	counts.URL = repo.URL
	return counts, nil
}

// fetchShared collapses concurrent fetches of the same user and repository,
// across batches, into one remote call and one store write. The shared call
// runs detached from every caller; a caller whose context ends stops waiting
// while the fetch and write run to completion.
func (s *Service) fetchShared(ctx context.Context, repo model.Repository, username string) (model.ActivityBatch, error) {
	key := username + "|" + repo.FullName()
	ch := s.flight.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return s.fetchAndStore(fetchCtx, repo, username)
	})

	select {
	case <-ctx.Done():
		return model.ActivityBatch{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.ActivityBatch{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("Shared in-flight fetch", "user", username, "repo", repo.FullName())
		}
		return res.Val.(model.ActivityBatch), nil
	}
}

// cachedCounts runs the five windowed count queries concurrently. Any failure
// fails the whole lookup.
func (s *Service) cachedCounts(ctx context.Context, username, repo string, since time.Time) (model.RepoActivity, error) {
	var counts model.RepoActivity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts.Commits, err = s.store.CountCommits(gctx, username, repo, since)
		return err
	})
	g.Go(func() (err error) {
		counts.PullRequests, err = s.store.CountPullRequests(gctx, username, repo, since)
		return err
	})
	g.Go(func() (err error) {
		counts.Issues, err = s.store.CountIssues(gctx, username, repo, since)
		return err
	})
	g.Go(func() (err error) {
		counts.PRComments, err = s.store.CountComments(gctx, username, repo, model.CommentTypePR, since)
		return err
	})
	g.Go(func() (err error) {
		counts.IssueComments, err = s.store.CountComments(gctx, username, repo, model.CommentTypeIssue, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RepoActivity{}, err
	}
	return counts, nil
}
