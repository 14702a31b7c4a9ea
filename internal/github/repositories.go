package github

import (
	"context"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const userRepositoriesQuery = `
query($login: String!, $first: Int!, $after: String) {
  user(login: $login) {
    repositories(first: $first, after: $after, privacy: PUBLIC, ownerAffiliations: [OWNER]) {
      nodes {
        name
        description
        url
        isFork
        isArchived
        owner { login }
        stargazerCount
        forkCount
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

type repositoryNode struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	URL            string  `json:"url"`
	IsFork         bool    `json:"isFork"`
	IsArchived     bool    `json:"isArchived"`
	Owner          Actor   `json:"owner"`
	StargazerCount int     `json:"stargazerCount"`
	ForkCount      int     `json:"forkCount"`
}

type userRepositoriesData struct {
	User *struct {
		Repositories struct {
			Nodes    []repositoryNode `json:"nodes"`
			PageInfo struct {
				HasNextPage bool    `json:"hasNextPage"`
				EndCursor   *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"repositories"`
	} `json:"user"`
}

// ListUserRepositories returns the public repositories owned by username,
// following pagination cursors until GitHub reports no further pages or the
// per-user cap is reached. Fork-count filtering is left to the caller.
func (c *Client) ListUserRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	const op = "list user repositories"
	var repos []model.Repository
	var after *string

	for {
		first := min(100, c.maxRepos-len(repos))
		c.logger.Debug("Fetching repositories page", "user", username, "first", first)

		var data userRepositoriesData
		variables := map[string]any{"login": username, "first": first, "after": after}
		if err := c.Query(ctx, op, userRepositoriesQuery, variables, &data); err != nil {
			return nil, err
		}
		if data.User == nil {
			return nil, &apperrors.RemoteError{Op: op, Kind: apperrors.KindNotFound, Messages: []string{"user " + username + " not found"}}
		}

		for _, n := range data.User.Repositories.Nodes {
			repos = append(repos, toInternalRepository(n))
		}

		page := data.User.Repositories.PageInfo
		if !page.HasNextPage || page.EndCursor == nil || len(repos) >= c.maxRepos {
			break
		}
		after = page.EndCursor
	}

	return repos, nil
}

func toInternalRepository(n repositoryNode) model.Repository {
	return model.Repository{
		Name:           n.Name,
		Owner:          n.Owner.Login,
		Description:    n.Description,
		URL:            n.URL,
		IsFork:         n.IsFork,
		IsArchived:     n.IsArchived,
		StargazerCount: n.StargazerCount,
		ForkCount:      n.ForkCount,
	}
}
