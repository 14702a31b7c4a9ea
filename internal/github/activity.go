package github

import (
	"context"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const repositoryActivityQuery = `
query($owner: String!, $name: String!, $commitLimit: Int!, $prLimit: Int!, $issueLimit: Int!) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(first: $commitLimit) {
            nodes {
              oid
              committedDate
              message
              url
              author { name email user { login } }
            }
          }
        }
      }
    }
    pullRequests(first: $prLimit, states: [OPEN, CLOSED, MERGED], orderBy: {field: CREATED_AT, direction: DESC}) {
      nodes {
        number
        title
        state
        url
        createdAt
        closedAt
        mergedAt
        author { login }
        comments(first: 100) {
          nodes { id body url createdAt author { login } }
        }
      }
    }
    issues(first: $issueLimit, states: [OPEN, CLOSED], orderBy: {field: CREATED_AT, direction: DESC}) {
      nodes {
        number
        title
        state
        url
        createdAt
        closedAt
        author { login }
        comments(first: 100) {
          nodes { id body url createdAt author { login } }
        }
      }
    }
  }
}`

type repositoryActivityData struct {
	Repository *struct {
		DefaultBranchRef *struct {
			Target struct {
				History struct {
					Nodes []CommitNode `json:"nodes"`
				} `json:"history"`
			} `json:"target"`
		} `json:"defaultBranchRef"`
		PullRequests struct {
			Nodes []PullRequestNode `json:"nodes"`
		} `json:"pullRequests"`
		Issues struct {
			Nodes []IssueNode `json:"nodes"`
		} `json:"issues"`
	} `json:"repository"`
}

// FetchRepositoryActivity runs the combined commits/pull requests/issues query
// for one repository. An empty repository has no default branch and yields no
// commits.
func (c *Client) FetchRepositoryActivity(ctx context.Context, repo model.Repository, limits ActivityLimits) (*RepositoryActivity, error) {
	const op = "fetch repository activity"
	variables := map[string]any{
		"owner":       repo.Owner,
		"name":        repo.Name,
		"commitLimit": limits.Commits,
		"prLimit":     limits.PullRequests,
		"issueLimit":  limits.Issues,
	}

	var data repositoryActivityData
	if err := c.Query(ctx, op, repositoryActivityQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Repository == nil {
		return nil, &apperrors.RemoteError{Op: op, Kind: apperrors.KindNotFound, Messages: []string{"repository " + repo.FullName() + " not found"}}
	}

	activity := &RepositoryActivity{
		PullRequests: data.Repository.PullRequests.Nodes,
		Issues:       data.Repository.Issues.Nodes,
	}
	if ref := data.Repository.DefaultBranchRef; ref != nil {
		activity.Commits = ref.Target.History.Nodes
	}
	c.logger.Debug("Fetched repository activity",
		"repo", repo.FullName(),
		"commits", len(activity.Commits),
		"pull_requests", len(activity.PullRequests),
		"issues", len(activity.Issues),
	)
	return activity, nil
}
