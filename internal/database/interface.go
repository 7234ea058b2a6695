package database

import "context"

// DB is the store used by the status engine, the hierarchy loader and the favorites service.
type DB interface {
	ContentDB
	FavoritesDB
	StatusDB
	ViewDB

	WithTransaction(ctx context.Context, fn func(tx DB) error) error
	Close() error
}

// ContentDB holds the show/season/episode/movie rows.
type ContentDB interface {
	UpsertShow(ctx context.Context, show *Show) error
	UpsertSeasonWithEpisodes(ctx context.Context, season *Season, episodes []Episode, profileIDs ...uint) error
	UpsertMovie(ctx context.Context, movie *Movie) error
	GetShowByExternalID(ctx context.Context, externalID int64) (*Show, error)
	GetMovieByExternalID(ctx context.Context, externalID int64) (*Movie, error)
	GetShowsInProduction(ctx context.Context) ([]Show, error)
	CountShowContent(ctx context.Context, showID uint) (seasons int64, episodes int64, err error)
}

// FavoritesDB creates and removes the associations that make content a favorite of a profile.
type FavoritesDB interface {
	CreateShowFavorite(ctx context.Context, profileID, showID uint) error
	AttachShowFavorite(ctx context.Context, profileID, showID uint) error
	AttachFavoritingProfiles(ctx context.Context, showID uint) ([]uint, error)
	RemoveShowFavorite(ctx context.Context, profileID, showID uint) (bool, error)
	CreateMovieFavorite(ctx context.Context, profileID, movieID uint) error
	RemoveMovieFavorite(ctx context.Context, profileID, movieID uint) (bool, error)
	GetFavoritingProfiles(ctx context.Context, showID uint) ([]uint, error)
	GetSeasonIDsForShow(ctx context.Context, showID uint) ([]uint, error)
}

// StatusDB writes and aggregates watch status associations.
type StatusDB interface {
	SetEpisodeStatus(ctx context.Context, profileID, episodeID uint, status WatchStatus) (bool, error)
	SetSeasonStatus(ctx context.Context, profileID, seasonID uint, status WatchStatus) (bool, error)
	SetSeasonAndEpisodesStatus(ctx context.Context, profileID, seasonID uint, status WatchStatus) (bool, error)
	SetShowStatus(ctx context.Context, profileID, showID uint, status WatchStatus) (bool, error)
	SetShowAndDescendantsStatus(ctx context.Context, profileID, showID uint, status WatchStatus) (int64, error)
	SetMovieStatus(ctx context.Context, profileID, movieID uint, status WatchStatus) (bool, error)
	ComputeSeasonStatusFromEpisodes(ctx context.Context, profileID, seasonID uint) (WatchStatus, bool, error)
	ComputeShowStatusFromSeasons(ctx context.Context, profileID, showID uint) (WatchStatus, bool, error)
}

// ViewDB assembles the read models served to clients.
type ViewDB interface {
	GetShowsForProfile(ctx context.Context, profileID uint) ([]ProfileShow, error)
	GetShowDetailsForProfile(ctx context.Context, profileID, showID uint) (*ShowDetails, error)
	GetUnwatchedEpisodes(ctx context.Context, profileID uint) ([]NextEpisode, error)
	GetMoviesForProfile(ctx context.Context, profileID uint) ([]ProfileMovie, error)
}
