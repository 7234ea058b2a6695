// Package favorites adds and removes shows and movies from a profile's favorites.
package favorites

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/loader"
	"github.com/jon4hz/showtrack/internal/progress"
	"github.com/jon4hz/showtrack/internal/provider"
)

// ShowResult is returned when a show is favorited. For a show that was not stored yet
// Loading is set and Details holds no seasons; the full hierarchy follows as a
// loader.EventFavoriteLoaded event.
type ShowResult struct {
	Show    database.Show         `json:"show"`
	Details *database.ShowDetails `json:"details,omitempty"`
	Loading bool                  `json:"loading"`
	RunID   string                `json:"runId,omitempty"`
}

// Service orchestrates favorites across the store, the provider and the loader.
type Service struct {
	db       database.DB
	provider provider.ContentProvider
	loader   *loader.Loader
	engine   *progress.Engine
}

// New creates a new favorites service.
func New(db database.DB, p provider.ContentProvider, l *loader.Loader, e *progress.Engine) *Service {
	return &Service{db: db, provider: p, loader: l, engine: e}
}

// AddShowFavorite favorites the show with the given provider id for a profile. A stored
// show is attached synchronously. An unknown show is fetched, stored without seasons and
// its hierarchy is loaded in the background.
func (s *Service) AddShowFavorite(ctx context.Context, accountID, profileID uint, externalID int64) (*ShowResult, error) {
	existing, err := s.db.GetShowByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up show: %w", err)
	}

	if existing != nil {
		return s.attachShowFavorite(ctx, accountID, profileID, existing)
	}

	info, err := s.provider.GetShowDetails(ctx, externalID)
	if err != nil {
		return nil, err
	}

	show := loader.ShowFromDetails(info)
	if err := s.db.UpsertShow(ctx, &show); err != nil {
		return nil, fmt.Errorf("failed to store show: %w", err)
	}
	if err := s.db.CreateShowFavorite(ctx, profileID, show.ID); err != nil {
		return nil, fmt.Errorf("failed to create favorite: %w", err)
	}
	s.engine.InvalidateProfile(ctx, profileID)

	run := s.loader.Start(ctx, loader.Request{
		AccountID:  accountID,
		ProfileID:  profileID,
		ShowID:     show.ID,
		ExternalID: show.ExternalID,
		Title:      show.Title,
		Details:    info,
	})
	log.Info("favorited new show, loading hierarchy", "profileID", profileID, "showID", show.ID, "run", run.ID)

	return &ShowResult{
		Show: show,
		Details: &database.ShowDetails{
			Show:         show,
			Status:       database.WatchStatusNotWatched,
			Seasons:      []database.SeasonView{},
			Episodes:     []database.EpisodeView{},
			EpisodeIndex: map[uint][]int{},
		},
		Loading: true,
		RunID:   run.ID,
	}, nil
}

// attachShowFavorite favorites a stored show. The stored hierarchy is attached right away.
// While the show is still loading the favorite joins that load. A hierarchy left incomplete
// by a failed load is loaded again.
func (s *Service) attachShowFavorite(ctx context.Context, accountID, profileID uint, show *database.Show) (*ShowResult, error) {
	if err := s.db.AttachShowFavorite(ctx, profileID, show.ID); err != nil {
		return nil, fmt.Errorf("failed to attach favorite: %w", err)
	}
	s.engine.InvalidateProfile(ctx, profileID)

	req := loader.Request{
		AccountID:  accountID,
		ProfileID:  profileID,
		ShowID:     show.ID,
		ExternalID: show.ExternalID,
		Title:      show.Title,
	}
	var run *loader.Run
	if joined, ok := s.loader.Join(req); ok {
		run = joined
		log.Info("attached show favorite to running load", "profileID", profileID, "showID", show.ID, "run", run.ID)
	} else {
		seasons, _, err := s.db.CountShowContent(ctx, show.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count show content: %w", err)
		}
		if seasons == 0 || seasons < int64(show.SeasonCount) {
			run = s.loader.Start(ctx, req)
			log.Info("stored hierarchy is incomplete, loading again", "profileID", profileID, "showID", show.ID,
				"seasons", seasons, "expected", show.SeasonCount, "run", run.ID)
		}
	}

	details, err := s.engine.GetShowDetails(ctx, profileID, show.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load show details: %w", err)
	}
	res := &ShowResult{Show: *show, Details: details}
	if run != nil {
		res.Loading = true
		res.RunID = run.ID
		return res, nil
	}
	log.Info("attached show favorite", "profileID", profileID, "showID", show.ID)
	return res, nil
}

// RemoveShowFavorite removes a show and all of its progress from a profile.
func (s *Service) RemoveShowFavorite(ctx context.Context, profileID, showID uint) error {
	removed, err := s.db.RemoveShowFavorite(ctx, profileID, showID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if !removed {
		return &progress.NotUpdatedError{Kind: progress.KindShow, ProfileID: profileID, ContentID: showID}
	}
	s.engine.InvalidateProfile(ctx, profileID)
	log.Info("removed show favorite", "profileID", profileID, "showID", showID)
	return nil
}

// AddMovieFavorite favorites the movie with the given provider id for a profile.
// Movies have no children, so unknown movies are fetched and stored synchronously.
func (s *Service) AddMovieFavorite(ctx context.Context, profileID uint, externalID int64) (*database.Movie, error) {
	movie, err := s.db.GetMovieByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up movie: %w", err)
	}

	if movie == nil {
		info, err := s.provider.GetMovieDetails(ctx, externalID)
		if err != nil {
			return nil, err
		}
		m := loader.MovieFromDetails(info)
		if err := s.db.UpsertMovie(ctx, &m); err != nil {
			return nil, fmt.Errorf("failed to store movie: %w", err)
		}
		movie = &m
	}

	if err := s.db.CreateMovieFavorite(ctx, profileID, movie.ID); err != nil {
		return nil, fmt.Errorf("failed to create favorite: %w", err)
	}
	s.engine.InvalidateProfile(ctx, profileID)
	return movie, nil
}

// RemoveMovieFavorite removes a movie from a profile.
func (s *Service) RemoveMovieFavorite(ctx context.Context, profileID, movieID uint) error {
	removed, err := s.db.RemoveMovieFavorite(ctx, profileID, movieID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if !removed {
		return &progress.NotUpdatedError{Kind: progress.KindMovie, ProfileID: profileID, ContentID: movieID}
	}
	s.engine.InvalidateProfile(ctx, profileID)
	return nil
}
