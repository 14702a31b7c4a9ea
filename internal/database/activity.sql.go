package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github-activity-resolver/internal/model"
)

const upsertCommit = `-- name: UpsertCommit :exec
INSERT INTO commits (repo, repo_owner, sha, committed_date, author, message, raw_data, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (repo, sha) DO UPDATE SET
    repo_owner = EXCLUDED.repo_owner,
    committed_date = EXCLUDED.committed_date,
    author = EXCLUDED.author,
    message = EXCLUDED.message,
    raw_data = EXCLUDED.raw_data,
    fetched_at = EXCLUDED.fetched_at
`

// UpsertCommits writes all commits in one batch; rows are keyed by (repo, sha).
func (q *Queries) UpsertCommits(ctx context.Context, commits []model.Commit) error {
	batch := &pgx.Batch{}
	queueCommits(batch, commits)
	return q.execBatch(ctx, batch)
}

func queueCommits(batch *pgx.Batch, commits []model.Commit) {
	for _, c := range commits {
		batch.Queue(upsertCommit, c.Repo, c.RepoOwner, c.SHA, c.CommittedDate, c.Author, c.Message, rawJSON(c.RawData))
	}
}

const upsertPullRequest = `-- name: UpsertPullRequest :exec
INSERT INTO pull_requests (repo, repo_owner, pr_number, author, title, state, created_at, closed_at, merged_at, raw_data, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (repo, pr_number) DO UPDATE SET
    repo_owner = EXCLUDED.repo_owner,
    author = EXCLUDED.author,
    title = EXCLUDED.title,
    state = EXCLUDED.state,
    created_at = EXCLUDED.created_at,
    closed_at = EXCLUDED.closed_at,
    merged_at = EXCLUDED.merged_at,
    raw_data = EXCLUDED.raw_data,
    fetched_at = EXCLUDED.fetched_at
`

func (q *Queries) UpsertPullRequests(ctx context.Context, prs []model.PullRequest) error {
	batch := &pgx.Batch{}
	queuePullRequests(batch, prs)
	return q.execBatch(ctx, batch)
}

func queuePullRequests(batch *pgx.Batch, prs []model.PullRequest) {
	for _, pr := range prs {
		batch.Queue(upsertPullRequest, pr.Repo, pr.RepoOwner, pr.Number, pr.Author, pr.Title, pr.State,
			pr.CreatedAt, pr.ClosedAt, pr.MergedAt, rawJSON(pr.RawData))
	}
}

const upsertIssue = `-- name: UpsertIssue :exec
INSERT INTO issues (repo, repo_owner, issue_number, author, title, state, created_at, closed_at, raw_data, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (repo, issue_number) DO UPDATE SET
    repo_owner = EXCLUDED.repo_owner,
    author = EXCLUDED.author,
    title = EXCLUDED.title,
    state = EXCLUDED.state,
    created_at = EXCLUDED.created_at,
    closed_at = EXCLUDED.closed_at,
    raw_data = EXCLUDED.raw_data,
    fetched_at = EXCLUDED.fetched_at
`

func (q *Queries) UpsertIssues(ctx context.Context, issues []model.Issue) error {
	batch := &pgx.Batch{}
	queueIssues(batch, issues)
	return q.execBatch(ctx, batch)
}

func queueIssues(batch *pgx.Batch, issues []model.Issue) {
	for _, is := range issues {
		batch.Queue(upsertIssue, is.Repo, is.RepoOwner, is.Number, is.Author, is.Title, is.State,
			is.CreatedAt, is.ClosedAt, rawJSON(is.RawData))
	}
}

const upsertComment = `-- name: UpsertComment :exec
INSERT INTO comments (comment_id, repo, repo_owner, author, type, parent_number, created_at, body, raw_data, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (comment_id) DO UPDATE SET
    repo = EXCLUDED.repo,
    repo_owner = EXCLUDED.repo_owner,
    author = EXCLUDED.author,
    type = EXCLUDED.type,
    parent_number = EXCLUDED.parent_number,
    created_at = EXCLUDED.created_at,
    body = EXCLUDED.body,
    raw_data = EXCLUDED.raw_data,
    fetched_at = EXCLUDED.fetched_at
`

func (q *Queries) UpsertComments(ctx context.Context, comments []model.Comment) error {
	batch := &pgx.Batch{}
	queueComments(batch, comments)
	return q.execBatch(ctx, batch)
}

func queueComments(batch *pgx.Batch, comments []model.Comment) {
	for _, c := range comments {
		batch.Queue(upsertComment, c.CommentID, c.Repo, c.RepoOwner, c.Author, string(c.Type), c.ParentNumber,
			c.CreatedAt, c.Body, rawJSON(c.RawData))
	}
}

// StoreActivity writes every record of a fetched batch inside one transaction,
// so either all four kinds are stored or none are.
func (q *Queries) StoreActivity(ctx context.Context, activity model.ActivityBatch) error {
	if activity.Len() == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queueCommits(batch, activity.Commits)
	queuePullRequests(batch, activity.PullRequests)
	queueIssues(batch, activity.Issues)
	queueComments(batch, activity.Comments)

	tx, err := q.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := q.WithTx(tx).execBatch(ctx, batch); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const countCommits = `-- name: CountCommits :one
SELECT COUNT(*) FROM commits
WHERE author = $1 AND repo = $2 AND committed_date >= $3
`

func (q *Queries) CountCommits(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return q.count(ctx, countCommits, author, repo, since)
}

const countPullRequests = `-- name: CountPullRequests :one
SELECT COUNT(*) FROM pull_requests
WHERE author = $1 AND repo = $2 AND created_at >= $3
`

func (q *Queries) CountPullRequests(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return q.count(ctx, countPullRequests, author, repo, since)
}

const countIssues = `-- name: CountIssues :one
SELECT COUNT(*) FROM issues
WHERE author = $1 AND repo = $2 AND created_at >= $3
`

func (q *Queries) CountIssues(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return q.count(ctx, countIssues, author, repo, since)
}

const countComments = `-- name: CountComments :one
SELECT COUNT(*) FROM comments
WHERE author = $1 AND repo = $2 AND type = $3 AND created_at >= $4
`

func (q *Queries) CountComments(ctx context.Context, author, repo string, kind model.CommentType, since time.Time) (int, error) {
	return q.count(ctx, countComments, author, repo, string(kind), since)
}

const listCommits = `-- name: ListCommits :many
SELECT repo, repo_owner, sha, committed_date, author, message, raw_data, fetched_at
FROM commits
WHERE repo = $1 AND ($2::text = '' OR author = $2)
ORDER BY committed_date DESC
LIMIT $3
`

// ListCommits returns cached commits for a repository, newest first. An empty
// author matches every author.
func (q *Queries) ListCommits(ctx context.Context, repo, author string, limit int) ([]model.Commit, error) {
	rows, err := q.db.Query(ctx, listCommits, repo, author, int32(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Commit
	for rows.Next() {
		var i model.Commit
		var raw []byte
		if err := rows.Scan(
			&i.Repo,
			&i.RepoOwner,
			&i.SHA,
			&i.CommittedDate,
			&i.Author,
			&i.Message,
			&raw,
			&i.FetchedAt,
		); err != nil {
			return nil, err
		}
		i.RawData = raw
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int64
	if err := q.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// execBatch sends a queued batch and surfaces the first failing statement.
func (q *Queries) execBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := q.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

const ping = `SELECT 1`

func (q *Queries) Ping(ctx context.Context) error {
	_, err := q.db.Exec(ctx, ping)
	return err
}

// rawJSON maps an empty payload to SQL NULL.
func rawJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
