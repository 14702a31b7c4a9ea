package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github-activity-resolver/internal/github"
	"github-activity-resolver/internal/model"
)

// storeTimeout bounds an activity write once it is detached from the request.
const storeTimeout = 30 * time.Second

// fetchAndStore queries GitHub for the repository, keeps the user's records
// and persists them as one unit. Nothing is stored when the remote call fails.
func (s *Service) fetchAndStore(ctx context.Context, repo model.Repository, username string) (model.ActivityBatch, error) {
	remote, err := s.gateway.FetchRepositoryActivity(ctx, repo, s.opts.Limits)
	if err != nil {
		return model.ActivityBatch{}, err
	}

	batch := normalize(repo, username, remote, s.now())
	if err := s.storeActivity(ctx, batch); err != nil {
		return model.ActivityBatch{}, fmt.Errorf("store activity for %s: %w", repo.FullName(), err)
	}
	s.logger.Debug("Cached remote activity",
		"user", username,
		"repo", repo.FullName(),
		"commits", len(batch.Commits),
		"pull_requests", len(batch.PullRequests),
		"issues", len(batch.Issues),
		"comments", len(batch.Comments),
	)
	return batch, nil
}

// storeActivity writes a non-empty batch atomically. The write ignores caller
// cancellation so a request ending mid-write cannot leave part of it behind.
func (s *Service) storeActivity(ctx context.Context, batch model.ActivityBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return s.store.StoreActivity(ctx, batch)
}

// normalize turns a raw repository activity response into storage records
// for username. Commits match on the linked GitHub account, everything else on
// the author login. Comments are collected from every pull request and issue
// in the response, not only the user's own.
func normalize(repo model.Repository, username string, remote *github.RepositoryActivity, now time.Time) model.ActivityBatch {
	fullName := repo.FullName()
	var batch model.ActivityBatch

	for _, c := range remote.Commits {
		if !c.Author.User.IsLogin(username) {
			continue
		}
		batch.Commits = append(batch.Commits, model.Commit{
			Repo:          fullName,
			RepoOwner:     repo.Owner,
			SHA:           c.OID,
			CommittedDate: c.CommittedDate,
			Author:        username,
			Message:       c.Message,
			RawData:       rawData(c),
			FetchedAt:     now,
		})
	}

	for _, pr := range remote.PullRequests {
		if pr.Author.IsLogin(username) {
			batch.PullRequests = append(batch.PullRequests, model.PullRequest{
				Repo:      fullName,
				RepoOwner: repo.Owner,
				Number:    pr.Number,
				Author:    username,
				Title:     pr.Title,
				State:     pr.State,
				CreatedAt: pr.CreatedAt,
				ClosedAt:  pr.ClosedAt,
				MergedAt:  pr.MergedAt,
				RawData:   rawData(pr),
				FetchedAt: now,
			})
		}
		batch.Comments = appendComments(batch.Comments, repo, username, model.CommentTypePR, pr.Number, pr.Comments.Nodes, now)
	}

	for _, is := range remote.Issues {
		if is.Author.IsLogin(username) {
			batch.Issues = append(batch.Issues, model.Issue{
				Repo:      fullName,
				RepoOwner: repo.Owner,
				Number:    is.Number,
				Author:    username,
				Title:     is.Title,
				State:     is.State,
				CreatedAt: is.CreatedAt,
				ClosedAt:  is.ClosedAt,
				RawData:   rawData(is),
				FetchedAt: now,
			})
		}
		batch.Comments = appendComments(batch.Comments, repo, username, model.CommentTypeIssue, is.Number, is.Comments.Nodes, now)
	}

	return batch
}

func appendComments(dst []model.Comment, repo model.Repository, username string, kind model.CommentType, parent int, nodes []github.CommentNode, now time.Time) []model.Comment {
	for _, c := range nodes {
		if !c.Author.IsLogin(username) {
			continue
		}
		dst = append(dst, model.Comment{
			Repo:         repo.FullName(),
			RepoOwner:    repo.Owner,
			CommentID:    c.ID,
			Author:       username,
			Type:         kind,
			ParentNumber: parent,
			CreatedAt:    c.CreatedAt,
			Body:         c.Body,
			RawData:      rawData(c),
			FetchedAt:    now,
		})
	}
	return dst
}

// countSince counts the batch's records at or after since.
func countSince(b model.ActivityBatch, since time.Time) model.RepoActivity {
	var counts model.RepoActivity
	for _, c := range b.Commits {
		if !c.CommittedDate.Before(since) {
			counts.Commits++
		}
	}
	for _, pr := range b.PullRequests {
		if !pr.CreatedAt.Before(since) {
			counts.PullRequests++
		}
	}
	for _, is := range b.Issues {
		if !is.CreatedAt.Before(since) {
			counts.Issues++
		}
	}
	for _, c := range b.Comments {
		if c.CreatedAt.Before(since) {
			continue
		}
		switch c.Type {
		case model.CommentTypePR:
			counts.PRComments++
		case model.CommentTypeIssue:
			counts.IssueComments++
		}
	}
	return counts
}

func rawData(node any) json.RawMessage {
	raw, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return raw
}
