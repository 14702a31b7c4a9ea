package model

// RepoActivity holds a user's windowed activity counts for one repository.
type RepoActivity struct {
	RepoName      string  `json:"repoName"`
	Description   *string `json:"description,omitempty"`
	URL           string  `json:"url"`
	Commits       int     `json:"commits"`
	PullRequests  int     `json:"pullRequests"`
	Issues        int     `json:"issues"`
	PRComments    int     `json:"prComments"`
	IssueComments int     `json:"issueComments"`
}

// Total is the sum of the five counters.
func (a RepoActivity) Total() int {
	return a.Commits + a.PullRequests + a.Issues + a.PRComments + a.IssueComments
}

type UserSummary struct {
	TotalCommits       int `json:"totalCommits"`
	TotalPRs           int `json:"totalPRs"`
	TotalIssues        int `json:"totalIssues"`
	TotalPRComments    int `json:"totalPRComments"`
	TotalIssueComments int `json:"totalIssueComments"`
}

type GlobalSummary struct {
	TotalCommits       int    `json:"totalCommits"`
	TotalPRs           int    `json:"totalPRs"`
	TotalIssues        int    `json:"totalIssues"`
	TotalPRComments    int    `json:"totalPRComments"`
	TotalIssueComments int    `json:"totalIssueComments"`
	TotalRepos         int    `json:"totalRepos"`
	SuccessfulUsers    int    `json:"successfulUsers"`
	FailedUsers        int    `json:"failedUsers"`
	TotalUsers         int    `json:"totalUsers"`
	AnalysisTimeframe  string `json:"analysisTimeframe"`
	MinForkCountFilter int    `json:"minForkCountFilter"`
}

// UserResult is either a resolved profile or, for failed users, just the
// username and the error message.
type UserResult struct {
	*UserProfile
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}

type UserActivityResult struct {
	User    UserResult     `json:"user"`
	Repos   []RepoActivity `json:"repos"`
	Summary *UserSummary   `json:"summary"`
}

// ActivityReport is the result of resolving a batch of usernames.
type ActivityReport struct {
	Users         []UserActivityResult `json:"users"`
	GlobalSummary GlobalSummary        `json:"globalSummary"`
}
