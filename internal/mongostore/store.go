// Package mongostore persists activity records and profile snapshots in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const (
	commitsCollection      = "commits"
	pullRequestsCollection = "pull_requests"
	issuesCollection       = "issues"
	commentsCollection     = "comments"
	profilesCollection     = "user_profiles"
)

// Store implements the activity and profile stores on top of a MongoDB database.
type Store struct {
	db           *mongo.Database
	commits      *mongo.Collection
	pullRequests *mongo.Collection
	issues       *mongo.Collection
	comments     *mongo.Collection
	profiles     *mongo.Collection
	now          func() time.Time
}

// Connect dials uri, verifies connectivity and returns a Store bound to the
// named database.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("MongoDB initialized successfully", "db", database)
	return New(client.Database(database)), nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:           db,
		commits:      db.Collection(commitsCollection),
		pullRequests: db.Collection(pullRequestsCollection),
		issues:       db.Collection(issuesCollection),
		comments:     db.Collection(commentsCollection),
		profiles:     db.Collection(profilesCollection),
		now:          time.Now,
	}
}

// EnsureIndexes creates the unique keys and the (repo, author, date) indexes
// backing the count queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.commits: {
			unique(bson.D{{Key: "repo", Value: 1}, {Key: "sha", Value: 1}}),
			plain(bson.D{{Key: "repo", Value: 1}, {Key: "author", Value: 1}, {Key: "committedDate", Value: -1}}),
		},
		s.pullRequests: {
			unique(bson.D{{Key: "repo", Value: 1}, {Key: "prNumber", Value: 1}}),
			plain(bson.D{{Key: "repo", Value: 1}, {Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		s.issues: {
			unique(bson.D{{Key: "repo", Value: 1}, {Key: "issueNumber", Value: 1}}),
			plain(bson.D{{Key: "repo", Value: 1}, {Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		s.comments: {
			unique(bson.D{{Key: "commentId", Value: 1}}),
			plain(bson.D{{Key: "repo", Value: 1}, {Key: "author", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		s.profiles: {
			unique(bson.D{{Key: "username", Value: 1}}),
		},
	}
	for col, models := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col.Name(), err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *Store) UpsertCommits(ctx context.Context, commits []model.Commit) error {
	now := s.now()
	models := make([]mongo.WriteModel, 0, len(commits))
	for _, c := range commits {
		models = append(models, upsertModel(bson.M{"repo": c.Repo, "sha": c.SHA}, newCommitDocument(c, now)))
	}
	return bulkUpsert(ctx, s.commits, models)
}

func (s *Store) UpsertPullRequests(ctx context.Context, prs []model.PullRequest) error {
	now := s.now()
	models := make([]mongo.WriteModel, 0, len(prs))
	for _, pr := range prs {
		models = append(models, upsertModel(bson.M{"repo": pr.Repo, "prNumber": pr.Number}, newPullRequestDocument(pr, now)))
	}
	return bulkUpsert(ctx, s.pullRequests, models)
}

func (s *Store) UpsertIssues(ctx context.Context, issues []model.Issue) error {
	now := s.now()
	models := make([]mongo.WriteModel, 0, len(issues))
	for _, is := range issues {
		models = append(models, upsertModel(bson.M{"repo": is.Repo, "issueNumber": is.Number}, newIssueDocument(is, now)))
	}
	return bulkUpsert(ctx, s.issues, models)
}

func (s *Store) UpsertComments(ctx context.Context, comments []model.Comment) error {
	now := s.now()
	models := make([]mongo.WriteModel, 0, len(comments))
	for _, c := range comments {
		models = append(models, upsertModel(bson.M{"commentId": c.CommentID}, newCommentDocument(c, now)))
	}
	return bulkUpsert(ctx, s.comments, models)
}

// StoreActivity writes every record of a fetched batch inside one
// multi-document transaction. Transactions need a replica set or sharded
// cluster; a standalone server rejects the write.
func (s *Store) StoreActivity(ctx context.Context, batch model.ActivityBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if err := s.UpsertCommits(sc, batch.Commits); err != nil {
			return nil, err
		}
		if err := s.UpsertPullRequests(sc, batch.PullRequests); err != nil {
			return nil, err
		}
		if err := s.UpsertIssues(sc, batch.Issues); err != nil {
			return nil, err
		}
		return nil, s.UpsertComments(sc, batch.Comments)
	})
	if err != nil {
		return fmt.Errorf("store activity transaction: %w", err)
	}
	return nil
}

func upsertModel(filter bson.M, doc any) mongo.WriteModel {
	return mongo.NewUpdateOneModel().
		SetFilter(filter).
		SetUpdate(bson.M{"$set": doc}).
		SetUpsert(true)
}

func bulkUpsert(ctx context.Context, col *mongo.Collection, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert into %s: %w", col.Name(), err)
	}
	return nil
}

func (s *Store) CountCommits(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return count(ctx, s.commits, bson.M{"author": author, "repo": repo, "committedDate": bson.M{"$gte": since}})
}

func (s *Store) CountPullRequests(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return count(ctx, s.pullRequests, bson.M{"author": author, "repo": repo, "createdAt": bson.M{"$gte": since}})
}

func (s *Store) CountIssues(ctx context.Context, author, repo string, since time.Time) (int, error) {
	return count(ctx, s.issues, bson.M{"author": author, "repo": repo, "createdAt": bson.M{"$gte": since}})
}

func (s *Store) CountComments(ctx context.Context, author, repo string, kind model.CommentType, since time.Time) (int, error) {
	return count(ctx, s.comments, bson.M{
		"author":    author,
		"repo":      repo,
		"type":      string(kind),
		"createdAt": bson.M{"$gte": since},
	})
}

func count(ctx context.Context, col *mongo.Collection, filter bson.M) (int, error) {
	n, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", col.Name(), err)
	}
	return int(n), nil
}

// ListCommits returns cached commits for a repository, newest first. An empty
// author matches every author.
func (s *Store) ListCommits(ctx context.Context, repo, author string, limit int) ([]model.Commit, error) {
	filter := bson.M{"repo": repo}
	if author != "" {
		filter["author"] = author
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "committedDate", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.commits.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []commitDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	commits := make([]model.Commit, 0, len(docs))
	for _, d := range docs {
		commits = append(commits, d.toModel())
	}
	return commits, nil
}

// FindProfile returns the stored profile or apperrors.ErrNotFound.
func (s *Store) FindProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	var doc profileDocument
	err := s.profiles.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// UpsertProfile replaces the stored snapshot and returns it as written.
func (s *Store) UpsertProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc profileDocument
	err := s.profiles.FindOneAndUpdate(ctx,
		bson.M{"username": profile.Username},
		bson.M{"$set": newProfileDocument(profile, s.now())},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", profile.Username, err)
	}
	return doc.toModel(), nil
}

// IsProfileCacheValid reports whether the stored snapshot was written at or
// after threshold.
func (s *Store) IsProfileCacheValid(ctx context.Context, username string, threshold time.Time) (bool, error) {
	n, err := s.profiles.CountDocuments(ctx,
		bson.M{"username": username, "fetchedAt": bson.M{"$gte": threshold}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
