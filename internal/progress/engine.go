// Package progress holds the watch status rules: explicit updates, downward cascades and
// the derivation of a parent status from its children.
package progress

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/cache"
	"github.com/jon4hz/showtrack/internal/database"
)

// Status kinds used in NotUpdatedError.
const (
	KindShow    = "show"
	KindSeason  = "season"
	KindEpisode = "episode"
	KindMovie   = "movie"
)

// Engine applies status changes to the store and keeps the profile's cached views fresh.
// Concurrent writers for the same profile are last-writer-wins.
type Engine struct {
	db    database.DB
	cache *cache.Cache
}

// New creates a new status engine.
func New(db database.DB, c *cache.Cache) *Engine {
	return &Engine{db: db, cache: c}
}

// AggregateStatus is the single rule for deriving a parent status from its children:
// all equal yields that status, anything else yields WATCHING, no children yields nothing.
func AggregateStatus(statuses []database.WatchStatus) (database.WatchStatus, bool) {
	return database.AggregateWatchStatus(statuses)
}

func validate(status database.WatchStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return nil
}

// UpdateShowStatus sets the status of a show. With recursive set, every season and episode of
// the show is set to the same status in one transaction.
func (e *Engine) UpdateShowStatus(ctx context.Context, profileID, showID uint, status database.WatchStatus, recursive bool) error {
	if err := validate(status); err != nil {
		return err
	}

	var updated bool
	if recursive {
		n, err := e.db.SetShowAndDescendantsStatus(ctx, profileID, showID, status)
		if err != nil {
			return fmt.Errorf("failed to update show %d and descendants: %w", showID, err)
		}
		updated = n > 0
	} else {
		ok, err := e.db.SetShowStatus(ctx, profileID, showID, status)
		if err != nil {
			return fmt.Errorf("failed to update show %d: %w", showID, err)
		}
		updated = ok
	}
	if !updated {
		return notUpdated(KindShow, profileID, showID)
	}

	log.Debug("updated show status", "profileID", profileID, "showID", showID, "status", status, "recursive", recursive)
	e.invalidate(ctx, profileID)
	return nil
}

// UpdateSeasonStatus sets the status of a season, optionally stamping all of its episodes.
func (e *Engine) UpdateSeasonStatus(ctx context.Context, profileID, seasonID uint, status database.WatchStatus, cascadeToEpisodes bool) error {
	if err := validate(status); err != nil {
		return err
	}

	var (
		updated bool
		err     error
	)
	if cascadeToEpisodes {
		updated, err = e.db.SetSeasonAndEpisodesStatus(ctx, profileID, seasonID, status)
	} else {
		updated, err = e.db.SetSeasonStatus(ctx, profileID, seasonID, status)
	}
	if err != nil {
		return fmt.Errorf("failed to update season %d: %w", seasonID, err)
	}
	if !updated {
		return notUpdated(KindSeason, profileID, seasonID)
	}

	log.Debug("updated season status", "profileID", profileID, "seasonID", seasonID, "status", status, "cascade", cascadeToEpisodes)
	e.invalidate(ctx, profileID)
	return nil
}

// UpdateEpisodeStatus sets the status of a single episode. The season is not recomputed;
// callers batch episode changes and call RecomputeSeasonFromEpisodes once.
func (e *Engine) UpdateEpisodeStatus(ctx context.Context, profileID, episodeID uint, status database.WatchStatus) error {
	if err := validate(status); err != nil {
		return err
	}

	updated, err := e.db.SetEpisodeStatus(ctx, profileID, episodeID, status)
	if err != nil {
		return fmt.Errorf("failed to update episode %d: %w", episodeID, err)
	}
	if !updated {
		return notUpdated(KindEpisode, profileID, episodeID)
	}

	e.invalidate(ctx, profileID)
	return nil
}

// UpdateMovieStatus sets the status of a movie.
func (e *Engine) UpdateMovieStatus(ctx context.Context, profileID, movieID uint, status database.WatchStatus) error {
	if err := validate(status); err != nil {
		return err
	}

	updated, err := e.db.SetMovieStatus(ctx, profileID, movieID, status)
	if err != nil {
		return fmt.Errorf("failed to update movie %d: %w", movieID, err)
	}
	if !updated {
		return notUpdated(KindMovie, profileID, movieID)
	}

	e.invalidate(ctx, profileID)
	return nil
}

// RecomputeSeasonFromEpisodes derives the season status from its episodes and stores it.
// If the profile tracks no episode of the season nothing is written and ok is false.
func (e *Engine) RecomputeSeasonFromEpisodes(ctx context.Context, profileID, seasonID uint) (database.WatchStatus, bool, error) {
	status, ok, err := e.db.ComputeSeasonStatusFromEpisodes(ctx, profileID, seasonID)
	if err != nil {
		return "", false, fmt.Errorf("failed to compute season %d status: %w", seasonID, err)
	}
	if !ok {
		return "", false, nil
	}

	updated, err := e.db.SetSeasonStatus(ctx, profileID, seasonID, status)
	if err != nil {
		return "", false, fmt.Errorf("failed to store season %d status: %w", seasonID, err)
	}
	if !updated {
		return "", false, notUpdated(KindSeason, profileID, seasonID)
	}

	e.invalidate(ctx, profileID)
	return status, true, nil
}

// RecomputeShowFromSeasons derives the show status from its seasons. It uses the same rule as
// RecomputeSeasonFromEpisodes and is never chained from it.
func (e *Engine) RecomputeShowFromSeasons(ctx context.Context, profileID, showID uint) (database.WatchStatus, bool, error) {
	status, ok, err := e.db.ComputeShowStatusFromSeasons(ctx, profileID, showID)
	if err != nil {
		return "", false, fmt.Errorf("failed to compute show %d status: %w", showID, err)
	}
	if !ok {
		return "", false, nil
	}

	updated, err := e.db.SetShowStatus(ctx, profileID, showID, status)
	if err != nil {
		return "", false, fmt.Errorf("failed to store show %d status: %w", showID, err)
	}
	if !updated {
		return "", false, notUpdated(KindShow, profileID, showID)
	}

	e.invalidate(ctx, profileID)
	return status, true, nil
}

// invalidate drops every cached view of the profile. A failure leaves stale entries
// until their ttl runs out, so it is logged but does not fail the write.
func (e *Engine) invalidate(ctx context.Context, profileID uint) {
	if err := e.cache.InvalidatePattern(ctx, cache.ProfilePrefix(profileID)); err != nil {
		log.Warn("failed to invalidate profile cache", "profileID", profileID, "error", err)
	}
}

// InvalidateProfile drops the cached views of a profile after a change made outside the engine.
func (e *Engine) InvalidateProfile(ctx context.Context, profileID uint) {
	e.invalidate(ctx, profileID)
}

// GetShowsForProfile returns the favorited shows of a profile.
func (e *Engine) GetShowsForProfile(ctx context.Context, profileID uint) ([]database.ProfileShow, error) {
	return cache.GetOrSet(ctx, e.cache, cache.ShowsKey(profileID), 0, func(ctx context.Context) ([]database.ProfileShow, error) {
		return e.db.GetShowsForProfile(ctx, profileID)
	})
}

// GetShowDetails returns the show hierarchy for a profile, or nil if the show is not favorited.
func (e *Engine) GetShowDetails(ctx context.Context, profileID, showID uint) (*database.ShowDetails, error) {
	return cache.GetOrSet(ctx, e.cache, cache.ShowDetailsKey(profileID, showID), 0, func(ctx context.Context) (*database.ShowDetails, error) {
		return e.db.GetShowDetailsForProfile(ctx, profileID, showID)
	})
}

// GetUnwatchedEpisodes returns the next episode to watch for each show in progress.
func (e *Engine) GetUnwatchedEpisodes(ctx context.Context, profileID uint) ([]database.NextEpisode, error) {
	return cache.GetOrSet(ctx, e.cache, cache.UnwatchedEpisodesKey(profileID), 0, func(ctx context.Context) ([]database.NextEpisode, error) {
		return e.db.GetUnwatchedEpisodes(ctx, profileID)
	})
}

// GetMoviesForProfile returns the favorited movies of a profile.
func (e *Engine) GetMoviesForProfile(ctx context.Context, profileID uint) ([]database.ProfileMovie, error) {
	return cache.GetOrSet(ctx, e.cache, cache.MoviesKey(profileID), 0, func(ctx context.Context) ([]database.ProfileMovie, error) {
		return e.db.GetMoviesForProfile(ctx, profileID)
	})
}
