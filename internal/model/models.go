// internal/model/models.go
package model

import (
	"time"

	"github.com/goccy/go-json"
)

// CommentType distinguishes pull request comments from issue comments.
type CommentType string

const (
	CommentTypePR    CommentType = "PR"
	CommentTypeIssue CommentType = "ISSUE"
)

// Repository is a public repository discovered for a user.
type Repository struct {
	Name           string  `json:"name"`
	Owner          string  `json:"owner"`
	Description    *string `json:"description,omitempty"`
	URL            string  `json:"url"`
	IsFork         bool    `json:"isFork"`
	IsArchived     bool    `json:"isArchived"`
	StargazerCount int     `json:"stargazerCount"`
	ForkCount      int     `json:"forkCount"`
}

// FullName returns the "owner/name" form used as the storage key prefix.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Commit is an authored commit on a repository's default branch.
type Commit struct {
	Repo          string          `json:"repo"`
	RepoOwner     string          `json:"repoOwner"`
	SHA           string          `json:"sha"`
	CommittedDate time.Time       `json:"committedDate"`
	Author        string          `json:"author"`
	Message       string          `json:"message"`
	RawData       json.RawMessage `json:"rawData,omitempty"`
	FetchedAt     time.Time       `json:"fetchedAt"`
}

type PullRequest struct {
	Repo      string          `json:"repo"`
	RepoOwner string          `json:"repoOwner"`
	Number    int             `json:"prNumber"`
	Author    string          `json:"author"`
	Title     string          `json:"title"`
	State     string          `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	ClosedAt  *time.Time      `json:"closedAt,omitempty"`
	MergedAt  *time.Time      `json:"mergedAt,omitempty"`
	RawData   json.RawMessage `json:"rawData,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

type Issue struct {
	Repo      string          `json:"repo"`
	RepoOwner string          `json:"repoOwner"`
	Number    int             `json:"issueNumber"`
	Author    string          `json:"author"`
	Title     string          `json:"title"`
	State     string          `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	ClosedAt  *time.Time      `json:"closedAt,omitempty"`
	RawData   json.RawMessage `json:"rawData,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Comment covers both pull request and issue comments; ParentNumber is the
// number of the PR or issue it belongs to.
type Comment struct {
	Repo         string          `json:"repo"`
	RepoOwner    string          `json:"repoOwner"`
	CommentID    string          `json:"commentId"`
	Author       string          `json:"author"`
	Type         CommentType     `json:"type"`
	ParentNumber int             `json:"parentNumber"`
	CreatedAt    time.Time       `json:"createdAt"`
	Body         string          `json:"body"`
	RawData      json.RawMessage `json:"rawData,omitempty"`
	FetchedAt    time.Time       `json:"fetchedAt"`
}

// ActivityBatch is every record derived from one remote fetch of a repository
// for one author. Stores write a batch all-or-nothing.
type ActivityBatch struct {
	Commits      []Commit
	PullRequests []PullRequest
	Issues       []Issue
	Comments     []Comment
}

func (b ActivityBatch) Len() int {
	return len(b.Commits) + len(b.PullRequests) + len(b.Issues) + len(b.Comments)
}

// UserProfile is a snapshot of a GitHub account. FetchedAt is the time the
// snapshot was written and drives cache expiry.
type UserProfile struct {
	Username        string          `json:"username"`
	DisplayName     *string         `json:"displayName,omitempty"`
	Bio             *string         `json:"bio,omitempty"`
	AvatarURL       *string         `json:"avatarUrl,omitempty"`
	Location        *string         `json:"location,omitempty"`
	Company         *string         `json:"company,omitempty"`
	Blog            *string         `json:"blog,omitempty"`
	TwitterUsername *string         `json:"twitterUsername,omitempty"`
	Email           *string         `json:"email,omitempty"`
	PublicRepos     int             `json:"publicRepos"`
	Followers       int             `json:"followers"`
	Following       int             `json:"following"`
	AccountType     string          `json:"accountType"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	RawData         json.RawMessage `json:"-"`
	FetchedAt       time.Time       `json:"fetchedAt"`
}
