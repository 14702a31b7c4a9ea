package activity

import (
	"time"

	"github-activity-resolver/internal/model"
)

const timeframeLayout = "2006-01-02"

func summarizeUser(repos []model.RepoActivity) model.UserSummary {
	var sum model.UserSummary
	for _, r := range repos {
		sum.TotalCommits += r.Commits
		sum.TotalPRs += r.PullRequests
		sum.TotalIssues += r.Issues
		sum.TotalPRComments += r.PRComments
		sum.TotalIssueComments += r.IssueComments
	}
	return sum
}

// summarizeGlobal folds per-user results. A user counts as successful when it
// carries a summary.
func summarizeGlobal(users []model.UserActivityResult, since, until time.Time, minForkCount int) model.GlobalSummary {
	g := model.GlobalSummary{
		TotalUsers:         len(users),
		AnalysisTimeframe:  since.Format(timeframeLayout) + " to " + until.Format(timeframeLayout),
		MinForkCountFilter: minForkCount,
	}
	for _, u := range users {
		if u.Summary == nil {
			g.FailedUsers++
			continue
		}
		g.SuccessfulUsers++
		g.TotalCommits += u.Summary.TotalCommits
		g.TotalPRs += u.Summary.TotalPRs
		g.TotalIssues += u.Summary.TotalIssues
		g.TotalPRComments += u.Summary.TotalPRComments
		g.TotalIssueComments += u.Summary.TotalIssueComments
		g.TotalRepos += len(u.Repos)
	}
	return g
}
