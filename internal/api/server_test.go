package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/database/dbtest"
	"github.com/jon4hz/showtrack/internal/engine"
	"github.com/jon4hz/showtrack/internal/provider"
	providermock "github.com/jon4hz/showtrack/internal/provider/mock"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	db       *database.Client
	provider *providermock.Provider
	engine   *engine.Engine
	router   http.Handler
	seeded   dbtest.Show
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.db = dbtest.New(s.T())
	s.seeded = dbtest.SeedShow(s.T(), s.db, 1396, "Breaking Bad", []int{2, 1}, 1)
	s.provider = providermock.New()

	cfg := &config.Config{
		Listen:  "127.0.0.1:0",
		Cache:   &config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute},
		Loader:  &config.LoaderConfig{SeasonDelay: time.Millisecond},
		Refresh: &config.RefreshConfig{Enabled: false},
	}
	e, err := engine.New(cfg, s.db, engine.WithProvider(s.provider))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = e.Close() })
	s.engine = e

	srv, err := New(cfg, e)
	s.Require().NoError(err)
	s.router = srv.Handler()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *ServerTestSuite) showDetails(profileID, showID uint) database.ShowDetails {
	w := s.do(http.MethodGet, fmt.Sprintf("/api/profiles/%d/shows/%d", profileID, showID), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var details database.ShowDetails
	s.decode(w, &details)
	return details
}

func (s *ServerTestSuite) TestGetShows() {
	w := s.do(http.MethodGet, "/api/profiles/1/shows", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var shows []database.ProfileShow
	s.decode(w, &shows)
	s.Require().Len(shows, 1)
	s.Equal("Breaking Bad", shows[0].Title)
	s.EqualValues(3, shows[0].TrackedEpisodes)

	w = s.do(http.MethodGet, "/api/profiles/2/shows", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var none []database.ProfileShow
	s.decode(w, &none)
	s.Empty(none)
}

func (s *ServerTestSuite) TestShowDetails() {
	details := s.showDetails(1, s.seeded.Show.ID)
	s.Len(details.Seasons, 2)
	s.Len(details.EpisodesOf(s.seeded.Seasons[0].ID), 2)

	w := s.do(http.MethodGet, fmt.Sprintf("/api/profiles/2/shows/%d", s.seeded.Show.ID), nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/profiles/abc/shows", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestEpisodeUpdatesAndRecompute() {
	episodes := s.seeded.EpisodeIDs(0)
	seasonID := s.seeded.Seasons[0].ID

	w := s.do(http.MethodPut, fmt.Sprintf("/api/profiles/1/episodes/%d/status", episodes[0]), models.StatusRequest{Status: database.WatchStatusWatched})
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(http.MethodPost, fmt.Sprintf("/api/profiles/1/seasons/%d/recompute", seasonID), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var res models.RecomputeResponse
	s.decode(w, &res)
	s.True(res.Updated)
	s.Equal(database.WatchStatusWatching, res.Status)

	details := s.showDetails(1, s.seeded.Show.ID)
	s.Equal(database.WatchStatusWatching, details.Seasons[0].Status)

	w = s.do(http.MethodGet, "/api/profiles/1/unwatched", nil)
	s.Require().Equal(http.StatusOK, w.Code)
}

func (s *ServerTestSuite) TestRecursiveShowStatus() {
	w := s.do(http.MethodPut, fmt.Sprintf("/api/profiles/1/shows/%d/status", s.seeded.Show.ID),
		models.StatusRequest{Status: database.WatchStatusWatched, Recursive: true})
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

	details := s.showDetails(1, s.seeded.Show.ID)
	s.Equal(database.WatchStatusWatched, details.Status)
	for _, ep := range details.Episodes {
		s.Equal(database.WatchStatusWatched, ep.Status)
	}
}

func (s *ServerTestSuite) TestStatusErrors() {
	seasonPath := fmt.Sprintf("/api/profiles/%%d/seasons/%d/status", s.seeded.Seasons[0].ID)

	tests := []struct {
		name    string
		profile uint
		body    any
		want    int
	}{
		{name: "unknown status", profile: 1, body: models.StatusRequest{Status: "FINISHED"}, want: http.StatusBadRequest},
		{name: "missing status", profile: 1, body: map[string]any{}, want: http.StatusBadRequest},
		{name: "not favorited", profile: 2, body: models.StatusRequest{Status: database.WatchStatusWatched}, want: http.StatusNotFound},
		{name: "cascade", profile: 1, body: models.StatusRequest{Status: database.WatchStatusWatched, CascadeToEpisodes: true}, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPut, fmt.Sprintf(seasonPath, tt.profile), tt.body)
			s.Equal(tt.want, w.Code, w.Body.String())
		})
	}
}

func (s *ServerTestSuite) TestAddShowFavorite() {
	s.provider.AddShow(provider.ShowDetails{
		ID:      1399,
		Title:   "Game of Thrones",
		Seasons: []provider.SeasonSummary{{ID: 3624, SeasonNumber: 1}},
	})
	s.provider.AddSeason(1399, provider.SeasonDetails{
		SeasonSummary: provider.SeasonSummary{ID: 3624, SeasonNumber: 1},
		Episodes:      []provider.EpisodeDetails{{ID: 63056, EpisodeNumber: 1}},
	})

	w := s.do(http.MethodPost, "/api/profiles/1/favorites/shows", models.AddShowFavoriteRequest{AccountID: 7, ExternalID: 1399})
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())

	var res struct {
		Show    database.Show `json:"show"`
		Loading bool          `json:"loading"`
		RunID   string        `json:"runId"`
	}
	s.decode(w, &res)
	s.True(res.Loading)
	s.engine.Loader().Wait()

	w = s.do(http.MethodGet, "/api/loader/runs/"+res.RunID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"state":"DONE"`)

	details := s.showDetails(1, res.Show.ID)
	s.Len(details.Episodes, 1)

	// the show is stored now, a second profile is attached right away
	w = s.do(http.MethodPost, "/api/profiles/2/favorites/shows", models.AddShowFavoriteRequest{AccountID: 8, ExternalID: 1399})
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *ServerTestSuite) TestAddShowFavoriteErrors() {
	w := s.do(http.MethodPost, "/api/profiles/1/favorites/shows", models.AddShowFavoriteRequest{AccountID: 7, ExternalID: 999})
	s.Equal(http.StatusNotFound, w.Code)

	s.provider.ShowError = &provider.ProviderError{Op: "get show details", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}
	w = s.do(http.MethodPost, "/api/profiles/1/favorites/shows", models.AddShowFavoriteRequest{AccountID: 7, ExternalID: 999})
	s.Equal(http.StatusBadGateway, w.Code)

	w = s.do(http.MethodPost, "/api/profiles/1/favorites/shows", map[string]any{"externalId": "nope"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestRemoveShowFavorite() {
	path := fmt.Sprintf("/api/profiles/1/favorites/shows/%d", s.seeded.Show.ID)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, path, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, path, nil).Code)
}

func (s *ServerTestSuite) TestMovies() {
	s.provider.AddMovie(provider.MovieDetails{ID: 603, Title: "The Matrix"})

	w := s.do(http.MethodPost, "/api/profiles/1/favorites/movies", models.AddMovieFavoriteRequest{ExternalID: 603})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var movie database.Movie
	s.decode(w, &movie)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/profiles/1/movies/%d/status", movie.ID), models.StatusRequest{Status: database.WatchStatusWatched})
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/profiles/1/movies", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var movies []database.ProfileMovie
	s.decode(w, &movies)
	s.Require().Len(movies, 1)
	s.Equal(database.WatchStatusWatched, movies[0].Status)
}

func (s *ServerTestSuite) TestOperationalEndpoints() {
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/loader/runs/unknown", nil).Code)

	w := s.do(http.MethodGet, "/api/jobs", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq("[]", w.Body.String())
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/api/jobs/refresh_shows/run", nil).Code)

	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/webpush/vapid-key", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/ws", nil).Code)
}
