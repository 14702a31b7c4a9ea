package github

import "time"

// Actor is the author of a pull request, issue or comment. It is nil for
// deleted accounts.
type Actor struct {
	Login string `json:"login"`
}

// login returns the actor's login or "" for a nil actor.
func (a *Actor) login() string {
	if a == nil {
		return ""
	}
	return a.Login
}

// IsLogin reports whether the actor is the account with the given login.
func (a *Actor) IsLogin(login string) bool {
	return login != "" && a.login() == login
}

type CommitNode struct {
	OID           string    `json:"oid"`
	CommittedDate time.Time `json:"committedDate"`
	Message       string    `json:"message"`
	URL           string    `json:"url"`
	Author        struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		User  *Actor `json:"user"`
	} `json:"author"`
}

type CommentNode struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Author    *Actor    `json:"author"`
}

type commentConnection struct {
	Nodes []CommentNode `json:"nodes"`
}

type PullRequestNode struct {
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	State     string            `json:"state"`
	URL       string            `json:"url"`
	CreatedAt time.Time         `json:"createdAt"`
	ClosedAt  *time.Time        `json:"closedAt"`
	MergedAt  *time.Time        `json:"mergedAt"`
	Author    *Actor            `json:"author"`
	Comments  commentConnection `json:"comments"`
}

type IssueNode struct {
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	State     string            `json:"state"`
	URL       string            `json:"url"`
	CreatedAt time.Time         `json:"createdAt"`
	ClosedAt  *time.Time        `json:"closedAt"`
	Author    *Actor            `json:"author"`
	Comments  commentConnection `json:"comments"`
}

// RepositoryActivity is the raw result of the combined activity query for one
// repository, before any author filtering.
type RepositoryActivity struct {
	Commits      []CommitNode
	PullRequests []PullRequestNode
	Issues       []IssueNode
}

// ActivityLimits caps how many nodes of each kind one activity query returns.
type ActivityLimits struct {
	Commits      int
	PullRequests int
	Issues       int
}
