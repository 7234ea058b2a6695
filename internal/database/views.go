package database

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// ProfileShow is a favorited show as seen by one profile.
type ProfileShow struct {
	Show
	Status          WatchStatus `json:"status"`
	TrackedEpisodes int64       `json:"trackedEpisodes"`
	WatchedEpisodes int64       `json:"watchedEpisodes"`
}

// SeasonView is a season with the profile's status.
type SeasonView struct {
	Season
	Status WatchStatus `json:"status"`
}

// EpisodeView is an episode with the profile's status.
type EpisodeView struct {
	Episode
	Status WatchStatus `json:"status"`
}

// ShowDetails is the full hierarchy of a show for one profile. Seasons and episodes are
// kept in flat slices; EpisodeIndex maps a season id to the positions of its episodes.
type ShowDetails struct {
	Show         Show           `json:"show"`
	Status       WatchStatus    `json:"status"`
	Seasons      []SeasonView   `json:"seasons"`
	Episodes     []EpisodeView  `json:"episodes"`
	EpisodeIndex map[uint][]int `json:"episodeIndex"`
}

// EpisodesOf returns the episodes of a season in episode order.
func (d *ShowDetails) EpisodesOf(seasonID uint) []EpisodeView {
	idx := d.EpisodeIndex[seasonID]
	out := make([]EpisodeView, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.Episodes[i])
	}
	return out
}

// NextEpisode is the first episode not yet watched of a show the profile is watching.
type NextEpisode struct {
	EpisodeView
	ShowTitle      string `json:"showTitle"`
	ShowPosterPath string `json:"showPosterPath"`
}

// ProfileMovie is a favorited movie as seen by one profile.
type ProfileMovie struct {
	Movie
	Status WatchStatus `json:"status"`
}

// GetShowsForProfile lists the favorited shows of a profile with episode progress.
func (c *Client) GetShowsForProfile(ctx context.Context, profileID uint) ([]ProfileShow, error) {
	var shows []ProfileShow
	err := c.db.WithContext(ctx).
		Table("shows").
		Select(`shows.*, sws.status AS status,
			(SELECT COUNT(*) FROM episode_watch_statuses e WHERE e.profile_id = sws.profile_id AND e.show_id = shows.id) AS tracked_episodes,
			(SELECT COUNT(*) FROM episode_watch_statuses e WHERE e.profile_id = sws.profile_id AND e.show_id = shows.id AND e.status = ?) AS watched_episodes`,
			WatchStatusWatched).
		Joins("JOIN show_watch_statuses sws ON sws.show_id = shows.id").
		Where("sws.profile_id = ?", profileID).
		Order("shows.title").
		Scan(&shows).Error
	if err != nil {
		log.Error("failed to get shows for profile", "profileID", profileID, "error", err)
		return nil, storageError("get shows for profile", err)
	}
	return shows, nil
}

// GetShowDetailsForProfile loads a show with all seasons and episodes the profile tracks.
// It returns nil if the profile did not favorite the show.
func (c *Client) GetShowDetailsForProfile(ctx context.Context, profileID, showID uint) (*ShowDetails, error) {
	db := c.db.WithContext(ctx)

	var head struct {
		Show
		Status WatchStatus
	}
	res := db.Table("shows").
		Select("shows.*, sws.status AS status").
		Joins("JOIN show_watch_statuses sws ON sws.show_id = shows.id").
		Where("sws.profile_id = ? AND shows.id = ?", profileID, showID).
		Limit(1).
		Scan(&head)
	if res.Error != nil {
		log.Error("failed to get show details", "profileID", profileID, "showID", showID, "error", res.Error)
		return nil, storageError("get show details", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	details := &ShowDetails{
		Show:         head.Show,
		Status:       head.Status,
		Seasons:      []SeasonView{},
		Episodes:     []EpisodeView{},
		EpisodeIndex: map[uint][]int{},
	}

	err := db.Table("seasons").
		Select("seasons.*, s.status AS status").
		Joins("JOIN season_watch_statuses s ON s.season_id = seasons.id").
		Where("s.profile_id = ? AND seasons.show_id = ?", profileID, showID).
		Order("seasons.season_number").
		Scan(&details.Seasons).Error
	if err != nil {
		return nil, storageError("get seasons for profile", err)
	}

	err = db.Table("episodes").
		Select("episodes.*, e.status AS status").
		Joins("JOIN episode_watch_statuses e ON e.episode_id = episodes.id").
		Where("e.profile_id = ? AND episodes.show_id = ?", profileID, showID).
		Order("episodes.season_number, episodes.episode_number").
		Scan(&details.Episodes).Error
	if err != nil {
		return nil, storageError("get episodes for profile", err)
	}

	for i, ep := range details.Episodes {
		details.EpisodeIndex[ep.SeasonID] = append(details.EpisodeIndex[ep.SeasonID], i)
	}
	return details, nil
}

// GetUnwatchedEpisodes returns, for every show the profile is currently watching, the first
// episode that is not watched yet. Specials are ignored.
func (c *Client) GetUnwatchedEpisodes(ctx context.Context, profileID uint) ([]NextEpisode, error) {
	var candidates []NextEpisode
	err := c.db.WithContext(ctx).
		Table("episodes").
		Select("episodes.*, e.status AS status, shows.title AS show_title, shows.poster_path AS show_poster_path").
		Joins("JOIN episode_watch_statuses e ON e.episode_id = episodes.id").
		Joins("JOIN show_watch_statuses sws ON sws.show_id = episodes.show_id AND sws.profile_id = e.profile_id").
		Joins("JOIN shows ON shows.id = episodes.show_id").
		Where("e.profile_id = ? AND e.status <> ? AND sws.status = ? AND episodes.season_number > 0",
			profileID, WatchStatusWatched, WatchStatusWatching).
		Order("episodes.show_id, episodes.season_number, episodes.episode_number").
		Scan(&candidates).Error
	if err != nil {
		log.Error("failed to get unwatched episodes", "profileID", profileID, "error", err)
		return nil, storageError("get unwatched episodes", err)
	}
	return lo.UniqBy(candidates, func(n NextEpisode) uint { return n.ShowID }), nil
}

// GetMoviesForProfile lists the favorited movies of a profile.
func (c *Client) GetMoviesForProfile(ctx context.Context, profileID uint) ([]ProfileMovie, error) {
	var movies []ProfileMovie
	err := c.db.WithContext(ctx).
		Table("movies").
		Select("movies.*, mws.status AS status").
		Joins("JOIN movie_watch_statuses mws ON mws.movie_id = movies.id").
		Where("mws.profile_id = ?", profileID).
		Order("movies.title").
		Scan(&movies).Error
	if err != nil {
		log.Error("failed to get movies for profile", "profileID", profileID, "error", err)
		return nil, storageError("get movies for profile", err)
	}
	return movies, nil
}
