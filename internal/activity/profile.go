package activity

import (
	"context"
	"errors"
	"fmt"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

// resolveProfile returns a fresh-enough stored profile, or refreshes it from
// GitHub. When the refresh fails, a stored profile is served regardless of
// age; with nothing stored the remote error is returned.
func (s *Service) resolveProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	now := s.now()
	valid, err := s.store.IsProfileCacheValid(ctx, username, now.Add(-s.opts.CacheTTL))
	if err != nil {
		return nil, fmt.Errorf("check profile cache: %w", err)
	}
	if valid {
		profile, err := s.store.FindProfile(ctx, username)
		if err == nil {
			s.logger.Debug("Using cached profile", "user", username)
			return profile, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("find profile: %w", err)
		}
	}

	fresh, err := s.gateway.GetUserProfile(ctx, username)
	if err != nil {
		stale, findErr := s.store.FindProfile(ctx, username)
		if findErr != nil {
			return nil, err
		}
		s.logger.Warn("Serving stale profile after refresh failure",
			"user", username,
			"fetched_at", stale.FetchedAt,
			"error", err,
		)
		return stale, nil
	}

	fresh.Username = username
	fresh.FetchedAt = now
	stored, err := s.store.UpsertProfile(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}
	return stored, nil
}
