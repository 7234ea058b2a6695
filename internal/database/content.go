package database

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	showMetadataColumns    = []string{"title", "overview", "poster_path", "first_air_date", "production_status", "in_production", "season_count", "episode_count", "updated_at"}
	seasonMetadataColumns  = []string{"show_id", "season_number", "name", "overview", "poster_path", "air_date", "episode_count", "updated_at"}
	episodeMetadataColumns = []string{"show_id", "season_id", "season_number", "episode_number", "title", "overview", "still_path", "air_date", "runtime", "updated_at"}
	movieMetadataColumns   = []string{"title", "overview", "poster_path", "release_date", "runtime", "updated_at"}
)

func upsertOn(columns []string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// UpsertShow inserts the show or refreshes its metadata when the external id is already known.
// On return show.ID holds the internal id.
func (c *Client) UpsertShow(ctx context.Context, show *Show) error {
	if err := c.db.WithContext(ctx).Clauses(upsertOn(showMetadataColumns)).Create(show).Error; err != nil {
		log.Error("failed to upsert show", "externalID", show.ExternalID, "error", err)
		return storageError("upsert show", err)
	}
	// conflict updates don't report the existing row id on every driver
	var stored Show
	if err := c.db.WithContext(ctx).Where("external_id = ?", show.ExternalID).First(&stored).Error; err != nil {
		return storageError("reload show", err)
	}
	*show = stored
	return nil
}

// UpsertMovie inserts the movie or refreshes its metadata.
func (c *Client) UpsertMovie(ctx context.Context, movie *Movie) error {
	if err := c.db.WithContext(ctx).Clauses(upsertOn(movieMetadataColumns)).Create(movie).Error; err != nil {
		log.Error("failed to upsert movie", "externalID", movie.ExternalID, "error", err)
		return storageError("upsert movie", err)
	}
	var stored Movie
	if err := c.db.WithContext(ctx).Where("external_id = ?", movie.ExternalID).First(&stored).Error; err != nil {
		return storageError("reload movie", err)
	}
	*movie = stored
	return nil
}

// UpsertSeasonWithEpisodes persists a season and its episodes in one transaction and makes sure every
// given profile has a status association for the season and each episode. Existing associations are
// left untouched, so re-ingesting the same content never duplicates rows or resets progress.
// season.ShowID must be set. IDs are filled in on return.
func (c *Client) UpsertSeasonWithEpisodes(ctx context.Context, season *Season, episodes []Episode, profileIDs ...uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(upsertOn(seasonMetadataColumns)).Create(season).Error; err != nil {
			return err
		}
		var storedSeason Season
		if err := tx.Where("external_id = ?", season.ExternalID).First(&storedSeason).Error; err != nil {
			return err
		}
		*season = storedSeason

		if len(episodes) > 0 {
			for i := range episodes {
				episodes[i].ShowID = season.ShowID
				episodes[i].SeasonID = season.ID
				episodes[i].SeasonNumber = season.SeasonNumber
			}
			if err := tx.Clauses(upsertOn(episodeMetadataColumns)).Create(&episodes).Error; err != nil {
				return err
			}

			var stored []Episode
			externalIDs := lo.Map(episodes, func(e Episode, _ int) int64 { return e.ExternalID })
			if err := tx.Where("external_id IN ?", externalIDs).Find(&stored).Error; err != nil {
				return err
			}
			byExternalID := lo.KeyBy(stored, func(e Episode) int64 { return e.ExternalID })
			for i := range episodes {
				episodes[i] = byExternalID[episodes[i].ExternalID]
			}

			// episodes the provider moved to this season take their associations along
			episodeIDs := lo.Map(episodes, func(e Episode, _ int) uint { return e.ID })
			if err := tx.Model(&EpisodeWatchStatus{}).
				Where("episode_id IN ? AND season_id <> ?", episodeIDs, season.ID).
				Update("season_id", season.ID).Error; err != nil {
				return err
			}
		}

		for _, profileID := range profileIDs {
			seasonStatus := SeasonWatchStatus{
				ProfileID: profileID,
				SeasonID:  season.ID,
				ShowID:    season.ShowID,
				Status:    WatchStatusNotWatched,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seasonStatus).Error; err != nil {
				return err
			}
			if len(episodes) == 0 {
				continue
			}
			episodeStatuses := lo.Map(episodes, func(e Episode, _ int) EpisodeWatchStatus {
				return EpisodeWatchStatus{
					ProfileID: profileID,
					EpisodeID: e.ID,
					SeasonID:  season.ID,
					ShowID:    season.ShowID,
					Status:    WatchStatusNotWatched,
				}
			})
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&episodeStatuses).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to persist season", "showID", season.ShowID, "season", season.SeasonNumber, "error", err)
		return storageError("upsert season with episodes", err)
	}
	return nil
}

// GetShowByExternalID returns the show with the given provider id, or nil if it was never stored.
func (c *Client) GetShowByExternalID(ctx context.Context, externalID int64) (*Show, error) {
	var show Show
	if err := c.db.WithContext(ctx).Where("external_id = ?", externalID).First(&show).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get show by external ID", "error", err)
		return nil, storageError("get show", err)
	}
	return &show, nil
}

// GetMovieByExternalID returns the movie with the given provider id, or nil if it was never stored.
func (c *Client) GetMovieByExternalID(ctx context.Context, externalID int64) (*Movie, error) {
	var movie Movie
	if err := c.db.WithContext(ctx).Where("external_id = ?", externalID).First(&movie).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get movie by external ID", "error", err)
		return nil, storageError("get movie", err)
	}
	return &movie, nil
}

// GetShowsInProduction returns shows that are still in production and favorited by at least one profile.
func (c *Client) GetShowsInProduction(ctx context.Context) ([]Show, error) {
	var shows []Show
	err := c.db.WithContext(ctx).
		Where("in_production = ?", true).
		Where("id IN (?)", c.db.Model(&ShowWatchStatus{}).Distinct("show_id")).
		Order("id").
		Find(&shows).Error
	if err != nil {
		log.Error("failed to get shows in production", "error", err)
		return nil, storageError("get shows in production", err)
	}
	return shows, nil
}

// CountShowContent returns how many season and episode rows are stored for a show.
func (c *Client) CountShowContent(ctx context.Context, showID uint) (int64, int64, error) {
	var seasons, episodes int64
	if err := c.db.WithContext(ctx).Model(&Season{}).Where("show_id = ?", showID).Count(&seasons).Error; err != nil {
		return 0, 0, storageError("count seasons", err)
	}
	if err := c.db.WithContext(ctx).Model(&Episode{}).Where("show_id = ?", showID).Count(&episodes).Error; err != nil {
		return 0, 0, storageError("count episodes", err)
	}
	return seasons, episodes, nil
}
