package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jon4hz/showtrack/internal/cache"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/database/dbtest"
	dbmock "github.com/jon4hz/showtrack/internal/database/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const profile = uint(1)

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *dbmock.MockDB
	cache  *cache.Cache
	engine *Engine
	show   dbtest.Show
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbmock.NewMockDB(dbtest.New(s.T()))

	c, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute, CoalesceConcurrentMisses: true})
	s.Require().NoError(err)
	s.cache = c
	s.engine = New(s.db, c)

	// S1: E1, E2 and S2: E3
	s.show = dbtest.SeedShow(s.T(), s.db, 1396, "Breaking Bad", []int{2, 1}, profile)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) details() *database.ShowDetails {
	d, err := s.db.GetShowDetailsForProfile(s.ctx, profile, s.show.Show.ID)
	s.Require().NoError(err)
	s.Require().NotNil(d)
	return d
}

func (s *EngineTestSuite) TestRecomputeSeasonScenario() {
	s1 := s.show.Seasons[0].ID
	e := s.show.EpisodeIDs(0)

	s.Require().NoError(s.engine.UpdateEpisodeStatus(s.ctx, profile, e[0], database.WatchStatusWatched))
	s.Require().NoError(s.engine.UpdateEpisodeStatus(s.ctx, profile, e[1], database.WatchStatusWatched))
	status, ok, err := s.engine.RecomputeSeasonFromEpisodes(s.ctx, profile, s1)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(database.WatchStatusWatched, status)

	s.Require().NoError(s.engine.UpdateEpisodeStatus(s.ctx, profile, e[1], database.WatchStatusNotWatched))
	status, ok, err = s.engine.RecomputeSeasonFromEpisodes(s.ctx, profile, s1)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(database.WatchStatusWatching, status)
	s.Equal(database.WatchStatusWatching, s.details().Seasons[0].Status)

	s.Require().NoError(s.engine.UpdateShowStatus(s.ctx, profile, s.show.Show.ID, database.WatchStatusWatched, true))
	d := s.details()
	s.Equal(database.WatchStatusWatched, d.Status)
	for _, season := range d.Seasons {
		s.Equal(database.WatchStatusWatched, season.Status)
	}
	s.Len(d.Episodes, 3)
	for _, ep := range d.Episodes {
		s.Equal(database.WatchStatusWatched, ep.Status)
	}
}

func (s *EngineTestSuite) TestEpisodeUpdateDoesNotRecompute() {
	e := s.show.EpisodeIDs(1)
	s.Require().NoError(s.engine.UpdateEpisodeStatus(s.ctx, profile, e[0], database.WatchStatusWatched))
	s.Equal(database.WatchStatusNotWatched, s.details().Seasons[1].Status)
	s.Zero(s.db.Calls("ComputeSeasonStatusFromEpisodes"))
}

func (s *EngineTestSuite) TestRecomputeWithoutEpisodesIsNoop() {
	season := database.Season{ShowID: s.show.Show.ID, ExternalID: 777, SeasonNumber: 3}
	s.Require().NoError(s.db.UpsertSeasonWithEpisodes(s.ctx, &season, nil, profile))
	s.Require().NoError(s.engine.UpdateSeasonStatus(s.ctx, profile, season.ID, database.WatchStatusWatched, false))

	status, ok, err := s.engine.RecomputeSeasonFromEpisodes(s.ctx, profile, season.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(status)
	s.Equal(1, s.db.Calls("SetSeasonStatus"), "only the explicit update writes")
}

func (s *EngineTestSuite) TestUpdateSeasonNotFavorited() {
	err := s.engine.UpdateSeasonStatus(s.ctx, 2, s.show.Seasons[0].ID, database.WatchStatusWatched, false)
	s.Require().Error(err)
	s.ErrorIs(err, ErrNotUpdated)

	var nu *NotUpdatedError
	s.Require().ErrorAs(err, &nu)
	s.Equal(KindSeason, nu.Kind)
	s.Equal(uint(2), nu.ProfileID)
}

func (s *EngineTestSuite) TestUpdateShowNotFavorited() {
	for _, recursive := range []bool{false, true} {
		err := s.engine.UpdateShowStatus(s.ctx, 9, s.show.Show.ID, database.WatchStatusWatched, recursive)
		s.ErrorIs(err, ErrNotUpdated)
	}
}

func (s *EngineTestSuite) TestUpdateShowNonRecursiveLeavesChildren() {
	s.Require().NoError(s.engine.UpdateShowStatus(s.ctx, profile, s.show.Show.ID, database.WatchStatusWatched, false))
	d := s.details()
	s.Equal(database.WatchStatusWatched, d.Status)
	s.Equal(database.WatchStatusNotWatched, d.Seasons[0].Status)
	s.Zero(s.db.Calls("SetShowAndDescendantsStatus"))
}

func (s *EngineTestSuite) TestUpdateSeasonCascade() {
	s1 := s.show.Seasons[0].ID
	s.Require().NoError(s.engine.UpdateSeasonStatus(s.ctx, profile, s1, database.WatchStatusWatched, true))
	d := s.details()
	for _, ep := range d.EpisodesOf(s1) {
		s.Equal(database.WatchStatusWatched, ep.Status)
	}
	for _, ep := range d.EpisodesOf(s.show.Seasons[1].ID) {
		s.Equal(database.WatchStatusNotWatched, ep.Status)
	}

	status, ok, err := s.engine.RecomputeShowFromSeasons(s.ctx, profile, s.show.Show.ID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(database.WatchStatusWatching, status)
}

func (s *EngineTestSuite) TestInvalidStatus() {
	err := s.engine.UpdateEpisodeStatus(s.ctx, profile, s.show.EpisodeIDs(0)[0], "SKIPPED")
	s.ErrorIs(err, ErrInvalidStatus)
	s.Zero(s.db.Calls("SetEpisodeStatus"))
}

func (s *EngineTestSuite) TestStorageErrorsPropagate() {
	storageErr := &database.StorageError{Op: "set show and descendants status", Err: errors.New("database is locked")}
	s.db.SetShowAndDescendantsStatusError = storageErr

	err := s.engine.UpdateShowStatus(s.ctx, profile, s.show.Show.ID, database.WatchStatusWatched, true)
	s.Require().Error(err)
	s.NotErrorIs(err, ErrNotUpdated)
	var se *database.StorageError
	s.ErrorAs(err, &se)

	s.db.ComputeSeasonStatusError = storageErr
	_, _, err = s.engine.RecomputeSeasonFromEpisodes(s.ctx, profile, s.show.Seasons[0].ID)
	s.ErrorAs(err, &se)
}

func (s *EngineTestSuite) TestMutationsInvalidateCachedViews() {
	shows, err := s.engine.GetShowsForProfile(s.ctx, profile)
	s.Require().NoError(err)
	s.Require().Len(shows, 1)
	s.Equal(database.WatchStatusNotWatched, shows[0].Status)

	before, err := s.engine.GetShowDetails(s.ctx, profile, s.show.Show.ID)
	s.Require().NoError(err)
	s.Equal(database.WatchStatusNotWatched, before.Status)

	s.Require().NoError(s.engine.UpdateShowStatus(s.ctx, profile, s.show.Show.ID, database.WatchStatusWatched, true))

	shows, err = s.engine.GetShowsForProfile(s.ctx, profile)
	s.Require().NoError(err)
	s.Equal(database.WatchStatusWatched, shows[0].Status)
	s.EqualValues(3, shows[0].WatchedEpisodes)

	after, err := s.engine.GetShowDetails(s.ctx, profile, s.show.Show.ID)
	s.Require().NoError(err)
	s.Equal(database.WatchStatusWatched, after.Status)
	s.Len(after.EpisodesOf(s.show.Seasons[0].ID), 2)
}

func (s *EngineTestSuite) TestCachedReadsHitStoreOnce() {
	for range 3 {
		_, err := s.engine.GetShowDetails(s.ctx, profile, s.show.Show.ID)
		s.Require().NoError(err)
	}
	s.Equal(1, s.db.Calls("GetShowDetailsForProfile"))
}

func (s *EngineTestSuite) TestMovieStatus() {
	movie := database.Movie{ExternalID: 27205, Title: "Inception"}
	s.Require().NoError(s.db.UpsertMovie(s.ctx, &movie))
	s.Require().NoError(s.db.CreateMovieFavorite(s.ctx, profile, movie.ID))

	s.Require().NoError(s.engine.UpdateMovieStatus(s.ctx, profile, movie.ID, database.WatchStatusWatched))
	s.ErrorIs(s.engine.UpdateMovieStatus(s.ctx, 2, movie.ID, database.WatchStatusWatched), ErrNotUpdated)

	movies, err := s.engine.GetMoviesForProfile(s.ctx, profile)
	s.Require().NoError(err)
	s.Require().Len(movies, 1)
	s.Equal(database.WatchStatusWatched, movies[0].Status)
}

func TestNotUpdatedError(t *testing.T) {
	err := notUpdated(KindEpisode, 3, 42)
	assert.EqualError(t, err, "episode 42 is not tracked by profile 3")
	assert.True(t, errors.Is(err, ErrNotUpdated))
	assert.False(t, errors.Is(errors.New("other"), ErrNotUpdated))
}

func TestAggregateStatus(t *testing.T) {
	status, ok := AggregateStatus([]database.WatchStatus{database.WatchStatusWatched, database.WatchStatusWatched, database.WatchStatusNotWatched})
	require.True(t, ok)
	assert.Equal(t, database.WatchStatusWatching, status, "a majority never implies WATCHED")

	_, ok = AggregateStatus(nil)
	assert.False(t, ok)
}
