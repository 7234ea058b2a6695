package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

func setStatus(tx *gorm.DB, model any, status WatchStatus, query string, args ...any) (int64, error) {
	result := tx.Model(model).Where(query, args...).Update("status", status)
	return result.RowsAffected, result.Error
}

// SetEpisodeStatus sets the status of one episode association. It reports false if the profile
// has no association for the episode.
func (c *Client) SetEpisodeStatus(ctx context.Context, profileID, episodeID uint, status WatchStatus) (bool, error) {
	n, err := setStatus(c.db.WithContext(ctx), &EpisodeWatchStatus{}, status,
		"profile_id = ? AND episode_id = ?", profileID, episodeID)
	if err != nil {
		log.Error("failed to set episode status", "profileID", profileID, "episodeID", episodeID, "error", err)
		return false, storageError("set episode status", err)
	}
	return n > 0, nil
}

// SetSeasonStatus sets the status of one season association without touching its episodes.
func (c *Client) SetSeasonStatus(ctx context.Context, profileID, seasonID uint, status WatchStatus) (bool, error) {
	n, err := setStatus(c.db.WithContext(ctx), &SeasonWatchStatus{}, status,
		"profile_id = ? AND season_id = ?", profileID, seasonID)
	if err != nil {
		log.Error("failed to set season status", "profileID", profileID, "seasonID", seasonID, "error", err)
		return false, storageError("set season status", err)
	}
	return n > 0, nil
}

// SetSeasonAndEpisodesStatus sets a season and all of its episodes in one transaction.
// The result reports whether the season association existed.
func (c *Client) SetSeasonAndEpisodesStatus(ctx context.Context, profileID, seasonID uint, status WatchStatus) (bool, error) {
	var updated bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := setStatus(tx, &SeasonWatchStatus{}, status, "profile_id = ? AND season_id = ?", profileID, seasonID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		updated = true
		_, err = setStatus(tx, &EpisodeWatchStatus{}, status, "profile_id = ? AND season_id = ?", profileID, seasonID)
		return err
	})
	if err != nil {
		log.Error("failed to set season and episode status", "profileID", profileID, "seasonID", seasonID, "error", err)
		return false, storageError("set season and episodes status", err)
	}
	return updated, nil
}

// SetShowStatus sets the status of the show association only.
func (c *Client) SetShowStatus(ctx context.Context, profileID, showID uint, status WatchStatus) (bool, error) {
	n, err := setStatus(c.db.WithContext(ctx), &ShowWatchStatus{}, status,
		"profile_id = ? AND show_id = ?", profileID, showID)
	if err != nil {
		log.Error("failed to set show status", "profileID", profileID, "showID", showID, "error", err)
		return false, storageError("set show status", err)
	}
	return n > 0, nil
}

// SetShowAndDescendantsStatus sets the show, every season and every episode association of the
// profile to status in a single transaction. Either all rows change or none do.
// It returns the number of association rows written, which is zero only when the profile has no
// association with the show.
func (c *Client) SetShowAndDescendantsStatus(ctx context.Context, profileID, showID uint, status WatchStatus) (int64, error) {
	var total int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := setStatus(tx, &ShowWatchStatus{}, status, "profile_id = ? AND show_id = ?", profileID, showID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		total = n

		n, err = setStatus(tx, &SeasonWatchStatus{}, status, "profile_id = ? AND show_id = ?", profileID, showID)
		if err != nil {
			return err
		}
		total += n

		n, err = setStatus(tx, &EpisodeWatchStatus{}, status, "profile_id = ? AND show_id = ?", profileID, showID)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		log.Error("failed to set show and descendants status", "profileID", profileID, "showID", showID, "error", err)
		return 0, storageError("set show and descendants status", err)
	}
	return total, nil
}

// SetMovieStatus sets the status of a movie association.
func (c *Client) SetMovieStatus(ctx context.Context, profileID, movieID uint, status WatchStatus) (bool, error) {
	n, err := setStatus(c.db.WithContext(ctx), &MovieWatchStatus{}, status,
		"profile_id = ? AND movie_id = ?", profileID, movieID)
	if err != nil {
		log.Error("failed to set movie status", "profileID", profileID, "movieID", movieID, "error", err)
		return false, storageError("set movie status", err)
	}
	return n > 0, nil
}

// ComputeSeasonStatusFromEpisodes derives the season status from the profile's episode statuses.
// ok is false when the profile has no episode associations in the season.
func (c *Client) ComputeSeasonStatusFromEpisodes(ctx context.Context, profileID, seasonID uint) (WatchStatus, bool, error) {
	var statuses []WatchStatus
	err := c.db.WithContext(ctx).Model(&EpisodeWatchStatus{}).
		Where("profile_id = ? AND season_id = ?", profileID, seasonID).
		Distinct().
		Pluck("status", &statuses).Error
	if err != nil {
		log.Error("failed to read episode statuses", "profileID", profileID, "seasonID", seasonID, "error", err)
		return "", false, storageError("compute season status", err)
	}
	status, ok := AggregateWatchStatus(statuses)
	return status, ok, nil
}

// ComputeShowStatusFromSeasons derives the show status from the profile's season statuses.
func (c *Client) ComputeShowStatusFromSeasons(ctx context.Context, profileID, showID uint) (WatchStatus, bool, error) {
	var statuses []WatchStatus
	err := c.db.WithContext(ctx).Model(&SeasonWatchStatus{}).
		Where("profile_id = ? AND show_id = ?", profileID, showID).
		Distinct().
		Pluck("status", &statuses).Error
	if err != nil {
		log.Error("failed to read season statuses", "profileID", profileID, "showID", showID, "error", err)
		return "", false, storageError("compute show status", err)
	}
	status, ok := AggregateWatchStatus(statuses)
	return status, ok, nil
}
