package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const profileColumns = `username, display_name, bio, avatar_url, location, company, blog, twitter_username, email,
    public_repos, followers, following, account_type, created_at, updated_at, raw_data, fetched_at`

const findProfile = `-- name: FindProfile :one
SELECT ` + profileColumns + `
FROM user_profiles
WHERE username = $1
`

// FindProfile returns the stored profile or apperrors.ErrNotFound.
func (q *Queries) FindProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx, findProfile, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return p, err
}

const upsertProfile = `-- name: UpsertProfile :one
INSERT INTO user_profiles (username, display_name, bio, avatar_url, location, company, blog, twitter_username, email,
    public_repos, followers, following, account_type, created_at, updated_at, raw_data, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
ON CONFLICT (username) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    bio = EXCLUDED.bio,
    avatar_url = EXCLUDED.avatar_url,
    location = EXCLUDED.location,
    company = EXCLUDED.company,
    blog = EXCLUDED.blog,
    twitter_username = EXCLUDED.twitter_username,
    email = EXCLUDED.email,
    public_repos = EXCLUDED.public_repos,
    followers = EXCLUDED.followers,
    following = EXCLUDED.following,
    account_type = EXCLUDED.account_type,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at,
    raw_data = EXCLUDED.raw_data,
    fetched_at = EXCLUDED.fetched_at
RETURNING ` + profileColumns

// UpsertProfile replaces the stored snapshot for profile.Username and returns
// the row as written, with FetchedAt set to the write time.
func (q *Queries) UpsertProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	row := q.db.QueryRow(ctx, upsertProfile,
		profile.Username,
		profile.DisplayName,
		profile.Bio,
		profile.AvatarURL,
		profile.Location,
		profile.Company,
		profile.Blog,
		profile.TwitterUsername,
		profile.Email,
		profile.PublicRepos,
		profile.Followers,
		profile.Following,
		profile.AccountType,
		profile.CreatedAt,
		profile.UpdatedAt,
		rawJSON(profile.RawData),
	)
	return scanProfile(row)
}

const isProfileCacheValid = `-- name: IsProfileCacheValid :one
SELECT EXISTS (
    SELECT 1 FROM user_profiles WHERE username = $1 AND fetched_at >= $2
)
`

// IsProfileCacheValid reports whether a profile for username was written at
// or after threshold.
func (q *Queries) IsProfileCacheValid(ctx context.Context, username string, threshold time.Time) (bool, error) {
	var valid bool
	err := q.db.QueryRow(ctx, isProfileCacheValid, username, threshold).Scan(&valid)
	return valid, err
}

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	var p model.UserProfile
	var raw []byte
	err := row.Scan(
		&p.Username,
		&p.DisplayName,
		&p.Bio,
		&p.AvatarURL,
		&p.Location,
		&p.Company,
		&p.Blog,
		&p.TwitterUsername,
		&p.Email,
		&p.PublicRepos,
		&p.Followers,
		&p.Following,
		&p.AccountType,
		&p.CreatedAt,
		&p.UpdatedAt,
		&raw,
		&p.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	p.RawData = raw
	return &p, nil
}
