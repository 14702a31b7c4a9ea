package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github-activity-resolver/internal/model"
)

type commitDocument struct {
	Repo          string    `bson:"repo"`
	RepoOwner     string    `bson:"repoOwner"`
	SHA           string    `bson:"sha"`
	CommittedDate time.Time `bson:"committedDate"`
	Author        string    `bson:"author"`
	Message       string    `bson:"message"`
	RawData       bson.M    `bson:"rawData,omitempty"`
	FetchedAt     time.Time `bson:"fetchedAt"`
}

type pullRequestDocument struct {
	Repo      string     `bson:"repo"`
	RepoOwner string     `bson:"repoOwner"`
	PRNumber  int        `bson:"prNumber"`
	Author    string     `bson:"author"`
	Title     string     `bson:"title"`
	State     string     `bson:"state"`
	CreatedAt time.Time  `bson:"createdAt"`
	ClosedAt  *time.Time `bson:"closedAt"`
	MergedAt  *time.Time `bson:"mergedAt"`
	RawData   bson.M     `bson:"rawData,omitempty"`
	FetchedAt time.Time  `bson:"fetchedAt"`
}

type issueDocument struct {
	Repo        string     `bson:"repo"`
	RepoOwner   string     `bson:"repoOwner"`
	IssueNumber int        `bson:"issueNumber"`
	Author      string     `bson:"author"`
	Title       string     `bson:"title"`
	State       string     `bson:"state"`
	CreatedAt   time.Time  `bson:"createdAt"`
	ClosedAt    *time.Time `bson:"closedAt"`
	RawData     bson.M     `bson:"rawData,omitempty"`
	FetchedAt   time.Time  `bson:"fetchedAt"`
}

type commentDocument struct {
	CommentID    string    `bson:"commentId"`
	Repo         string    `bson:"repo"`
	RepoOwner    string    `bson:"repoOwner"`
	Author       string    `bson:"author"`
	Type         string    `bson:"type"`
	ParentNumber int       `bson:"parentNumber"`
	CreatedAt    time.Time `bson:"createdAt"`
	Body         string    `bson:"body"`
	RawData      bson.M    `bson:"rawData,omitempty"`
	FetchedAt    time.Time `bson:"fetchedAt"`
}

type profileDocument struct {
	Username        string    `bson:"username"`
	DisplayName     *string   `bson:"displayName"`
	Bio             *string   `bson:"bio"`
	AvatarURL       *string   `bson:"avatarUrl"`
	Location        *string   `bson:"location"`
	Company         *string   `bson:"company"`
	Blog            *string   `bson:"blog"`
	TwitterUsername *string   `bson:"twitterUsername"`
	Email           *string   `bson:"email"`
	PublicRepos     int       `bson:"publicRepos"`
	Followers       int       `bson:"followers"`
	Following       int       `bson:"following"`
	AccountType     string    `bson:"accountType"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
	RawData         bson.M    `bson:"rawData,omitempty"`
	FetchedAt       time.Time `bson:"fetchedAt"`
}

func newCommitDocument(c model.Commit, now time.Time) commitDocument {
	return commitDocument{
		Repo:          c.Repo,
		RepoOwner:     c.RepoOwner,
		SHA:           c.SHA,
		CommittedDate: c.CommittedDate,
		Author:        c.Author,
		Message:       c.Message,
		RawData:       toDocument(c.RawData),
		FetchedAt:     now,
	}
}

func (d commitDocument) toModel() model.Commit {
	return model.Commit{
		Repo:          d.Repo,
		RepoOwner:     d.RepoOwner,
		SHA:           d.SHA,
		CommittedDate: d.CommittedDate,
		Author:        d.Author,
		Message:       d.Message,
		RawData:       fromDocument(d.RawData),
		FetchedAt:     d.FetchedAt,
	}
}

func newPullRequestDocument(pr model.PullRequest, now time.Time) pullRequestDocument {
	return pullRequestDocument{
		Repo:      pr.Repo,
		RepoOwner: pr.RepoOwner,
		PRNumber:  pr.Number,
		Author:    pr.Author,
		Title:     pr.Title,
		State:     pr.State,
		CreatedAt: pr.CreatedAt,
		ClosedAt:  pr.ClosedAt,
		MergedAt:  pr.MergedAt,
		RawData:   toDocument(pr.RawData),
		FetchedAt: now,
	}
}

func newIssueDocument(is model.Issue, now time.Time) issueDocument {
	return issueDocument{
		Repo:        is.Repo,
		RepoOwner:   is.RepoOwner,
		IssueNumber: is.Number,
		Author:      is.Author,
		Title:       is.Title,
		State:       is.State,
		CreatedAt:   is.CreatedAt,
		ClosedAt:    is.ClosedAt,
		RawData:     toDocument(is.RawData),
		FetchedAt:   now,
	}
}

func newCommentDocument(c model.Comment, now time.Time) commentDocument {
	return commentDocument{
		CommentID:    c.CommentID,
		Repo:         c.Repo,
		RepoOwner:    c.RepoOwner,
		Author:       c.Author,
		Type:         string(c.Type),
		ParentNumber: c.ParentNumber,
		CreatedAt:    c.CreatedAt,
		Body:         c.Body,
		RawData:      toDocument(c.RawData),
		FetchedAt:    now,
	}
}

func newProfileDocument(p *model.UserProfile, now time.Time) profileDocument {
	return profileDocument{
		Username:        p.Username,
		DisplayName:     p.DisplayName,
		Bio:             p.Bio,
		AvatarURL:       p.AvatarURL,
		Location:        p.Location,
		Company:         p.Company,
		Blog:            p.Blog,
		TwitterUsername: p.TwitterUsername,
		Email:           p.Email,
		PublicRepos:     p.PublicRepos,
		Followers:       p.Followers,
		Following:       p.Following,
		AccountType:     p.AccountType,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		RawData:         toDocument(p.RawData),
		FetchedAt:       now,
	}
}

func (d profileDocument) toModel() *model.UserProfile {
	return &model.UserProfile{
		Username:        d.Username,
		DisplayName:     d.DisplayName,
		Bio:             d.Bio,
		AvatarURL:       d.AvatarURL,
		Location:        d.Location,
		Company:         d.Company,
		Blog:            d.Blog,
		TwitterUsername: d.TwitterUsername,
		Email:           d.Email,
		PublicRepos:     d.PublicRepos,
		Followers:       d.Followers,
		Following:       d.Following,
		AccountType:     d.AccountType,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		RawData:         fromDocument(d.RawData),
		FetchedAt:       d.FetchedAt,
	}
}

// toDocument converts a raw JSON object into a BSON document. Payloads that do
// not parse as a document are dropped.
func toDocument(raw []byte) bson.M {
	if len(raw) == 0 {
		return nil
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil
	}
	return doc
}

func fromDocument(doc bson.M) []byte {
	if doc == nil {
		return nil
	}
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil
	}
	return raw
}
