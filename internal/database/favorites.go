package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateShowFavorite creates the show association for a profile. It is a no-op if the
// profile already favorited the show.
func (c *Client) CreateShowFavorite(ctx context.Context, profileID, showID uint) error {
	fav := ShowWatchStatus{ProfileID: profileID, ShowID: showID, Status: WatchStatusNotWatched}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error; err != nil {
		log.Error("failed to create show favorite", "profileID", profileID, "showID", showID, "error", err)
		return storageError("create show favorite", err)
	}
	return nil
}

// AttachShowFavorite favorites a show whose hierarchy is already stored. The show, season and
// episode associations are created in one transaction with NOT_WATCHED, existing ones are kept.
func (c *Client) AttachShowFavorite(ctx context.Context, profileID, showID uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fav := ShowWatchStatus{ProfileID: profileID, ShowID: showID, Status: WatchStatusNotWatched}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error; err != nil {
			return err
		}
		return attachHierarchy(tx, showID, []uint{profileID})
	})
	if err != nil {
		log.Error("failed to attach show favorite", "profileID", profileID, "showID", showID, "error", err)
		return storageError("attach show favorite", err)
	}
	return nil
}

// AttachFavoritingProfiles creates the missing season and episode associations of every profile
// that currently favorites the show. Show associations are never created here, so a profile
// that removed the favorite is not brought back. It returns the profiles it attached.
func (c *Client) AttachFavoritingProfiles(ctx context.Context, showID uint) ([]uint, error) {
	var profileIDs []uint
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ShowWatchStatus{}).Where("show_id = ?", showID).Order("profile_id").Pluck("profile_id", &profileIDs).Error; err != nil {
			return err
		}
		return attachHierarchy(tx, showID, profileIDs)
	})
	if err != nil {
		log.Error("failed to attach favoriting profiles", "showID", showID, "error", err)
		return nil, storageError("attach favoriting profiles", err)
	}
	return profileIDs, nil
}

// attachHierarchy creates NOT_WATCHED season and episode associations for the profiles on every
// stored season and episode of the show, keeping existing ones.
func attachHierarchy(tx *gorm.DB, showID uint, profileIDs []uint) error {
	if len(profileIDs) == 0 {
		return nil
	}

	var seasons []Season
	if err := tx.Where("show_id = ?", showID).Find(&seasons).Error; err != nil {
		return err
	}
	var episodes []Episode
	if err := tx.Where("show_id = ?", showID).Find(&episodes).Error; err != nil {
		return err
	}

	for _, profileID := range profileIDs {
		if len(seasons) > 0 {
			rows := make([]SeasonWatchStatus, 0, len(seasons))
			for _, s := range seasons {
				rows = append(rows, SeasonWatchStatus{ProfileID: profileID, SeasonID: s.ID, ShowID: showID, Status: WatchStatusNotWatched})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(episodes) > 0 {
			rows := make([]EpisodeWatchStatus, 0, len(episodes))
			for _, e := range episodes {
				rows = append(rows, EpisodeWatchStatus{ProfileID: profileID, EpisodeID: e.ID, SeasonID: e.SeasonID, ShowID: showID, Status: WatchStatusNotWatched})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 500).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveShowFavorite removes the show association and every season and episode association of
// the profile below it. It reports whether the profile had favorited the show.
func (c *Client) RemoveShowFavorite(ctx context.Context, profileID, showID uint) (bool, error) {
	var removed bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ? AND show_id = ?", profileID, showID).Delete(&EpisodeWatchStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ? AND show_id = ?", profileID, showID).Delete(&SeasonWatchStatus{}).Error; err != nil {
			return err
		}
		result := tx.Where("profile_id = ? AND show_id = ?", profileID, showID).Delete(&ShowWatchStatus{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		log.Error("failed to remove show favorite", "profileID", profileID, "showID", showID, "error", err)
		return false, storageError("remove show favorite", err)
	}
	return removed, nil
}

// CreateMovieFavorite creates the movie association for a profile.
func (c *Client) CreateMovieFavorite(ctx context.Context, profileID, movieID uint) error {
	fav := MovieWatchStatus{ProfileID: profileID, MovieID: movieID, Status: WatchStatusNotWatched}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error; err != nil {
		log.Error("failed to create movie favorite", "profileID", profileID, "movieID", movieID, "error", err)
		return storageError("create movie favorite", err)
	}
	return nil
}

// RemoveMovieFavorite removes the movie association.
func (c *Client) RemoveMovieFavorite(ctx context.Context, profileID, movieID uint) (bool, error) {
	result := c.db.WithContext(ctx).Where("profile_id = ? AND movie_id = ?", profileID, movieID).Delete(&MovieWatchStatus{})
	if result.Error != nil {
		log.Error("failed to remove movie favorite", "profileID", profileID, "movieID", movieID, "error", result.Error)
		return false, storageError("remove movie favorite", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetFavoritingProfiles returns the ids of all profiles that favorited the show.
func (c *Client) GetFavoritingProfiles(ctx context.Context, showID uint) ([]uint, error) {
	var ids []uint
	err := c.db.WithContext(ctx).Model(&ShowWatchStatus{}).
		Where("show_id = ?", showID).
		Order("profile_id").
		Pluck("profile_id", &ids).Error
	if err != nil {
		return nil, storageError("get favoriting profiles", err)
	}
	return ids, nil
}

// GetSeasonIDsForShow returns the ids of all stored seasons of a show.
func (c *Client) GetSeasonIDsForShow(ctx context.Context, showID uint) ([]uint, error) {
	var ids []uint
	err := c.db.WithContext(ctx).Model(&Season{}).
		Where("show_id = ?", showID).
		Order("season_number").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, storageError("get season ids", err)
	}
	return ids, nil
}
