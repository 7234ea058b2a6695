package mock

import (
	"context"
	"sync"

	"github.com/jon4hz/showtrack/internal/database"
)

// MockDB wraps a real database.DB and injects errors or forced zero-row results for testing.
// Methods without an override fall through to the wrapped store.
type MockDB struct {
	database.DB

	mu    sync.RWMutex
	calls map[string]int

	// Error simulation
	UpsertShowError                  error
	UpsertSeasonWithEpisodesError    error
	UpsertMovieError                 error
	GetShowByExternalIDError         error
	AttachShowFavoriteError          error
	CreateShowFavoriteError          error
	SetEpisodeStatusError            error
	SetSeasonStatusError             error
	SetShowStatusError               error
	SetShowAndDescendantsStatusError error
	ComputeSeasonStatusError         error
	GetShowDetailsForProfileError    error

	// FailSeasonUpsertAfter makes UpsertSeasonWithEpisodes fail once this many seasons were stored.
	// Zero disables it.
	FailSeasonUpsertAfter int
}

// NewMockDB creates a new MockDB around db.
func NewMockDB(db database.DB) *MockDB {
	return &MockDB{DB: db, calls: make(map[string]int)}
}

// Reset clears all recorded calls and injected errors.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = make(map[string]int)
	m.UpsertShowError = nil
	m.UpsertSeasonWithEpisodesError = nil
	m.UpsertMovieError = nil
	m.GetShowByExternalIDError = nil
	m.AttachShowFavoriteError = nil
	m.CreateShowFavoriteError = nil
	m.SetEpisodeStatusError = nil
	m.SetSeasonStatusError = nil
	m.SetShowStatusError = nil
	m.SetShowAndDescendantsStatusError = nil
	m.ComputeSeasonStatusError = nil
	m.GetShowDetailsForProfileError = nil
	m.FailSeasonUpsertAfter = 0
}

// Calls returns how often method was invoked.
func (m *MockDB) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

func (m *MockDB) record(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.calls[method]
}

// Content operations

func (m *MockDB) UpsertShow(ctx context.Context, show *database.Show) error {
	m.record("UpsertShow")
	if m.UpsertShowError != nil {
		return m.UpsertShowError
	}
	return m.DB.UpsertShow(ctx, show)
}

func (m *MockDB) UpsertSeasonWithEpisodes(ctx context.Context, season *database.Season, episodes []database.Episode, profileIDs ...uint) error {
	n := m.record("UpsertSeasonWithEpisodes")
	if m.UpsertSeasonWithEpisodesError != nil && (m.FailSeasonUpsertAfter == 0 || n > m.FailSeasonUpsertAfter) {
		return m.UpsertSeasonWithEpisodesError
	}
	return m.DB.UpsertSeasonWithEpisodes(ctx, season, episodes, profileIDs...)
}

func (m *MockDB) UpsertMovie(ctx context.Context, movie *database.Movie) error {
	m.record("UpsertMovie")
	if m.UpsertMovieError != nil {
		return m.UpsertMovieError
	}
	return m.DB.UpsertMovie(ctx, movie)
}

func (m *MockDB) GetShowByExternalID(ctx context.Context, externalID int64) (*database.Show, error) {
	m.record("GetShowByExternalID")
	if m.GetShowByExternalIDError != nil {
		return nil, m.GetShowByExternalIDError
	}
	return m.DB.GetShowByExternalID(ctx, externalID)
}

// Favorite operations

func (m *MockDB) AttachShowFavorite(ctx context.Context, profileID, showID uint) error {
	m.record("AttachShowFavorite")
	if m.AttachShowFavoriteError != nil {
		return m.AttachShowFavoriteError
	}
	return m.DB.AttachShowFavorite(ctx, profileID, showID)
}

func (m *MockDB) CreateShowFavorite(ctx context.Context, profileID, showID uint) error {
	m.record("CreateShowFavorite")
	if m.CreateShowFavoriteError != nil {
		return m.CreateShowFavoriteError
	}
	return m.DB.CreateShowFavorite(ctx, profileID, showID)
}

// Status operations

func (m *MockDB) SetEpisodeStatus(ctx context.Context, profileID, episodeID uint, status database.WatchStatus) (bool, error) {
	m.record("SetEpisodeStatus")
	if m.SetEpisodeStatusError != nil {
		return false, m.SetEpisodeStatusError
	}
	return m.DB.SetEpisodeStatus(ctx, profileID, episodeID, status)
}

func (m *MockDB) SetSeasonStatus(ctx context.Context, profileID, seasonID uint, status database.WatchStatus) (bool, error) {
	m.record("SetSeasonStatus")
	if m.SetSeasonStatusError != nil {
		return false, m.SetSeasonStatusError
	}
	return m.DB.SetSeasonStatus(ctx, profileID, seasonID, status)
}

func (m *MockDB) SetShowStatus(ctx context.Context, profileID, showID uint, status database.WatchStatus) (bool, error) {
	m.record("SetShowStatus")
	if m.SetShowStatusError != nil {
		return false, m.SetShowStatusError
	}
	return m.DB.SetShowStatus(ctx, profileID, showID, status)
}

func (m *MockDB) SetShowAndDescendantsStatus(ctx context.Context, profileID, showID uint, status database.WatchStatus) (int64, error) {
	m.record("SetShowAndDescendantsStatus")
	if m.SetShowAndDescendantsStatusError != nil {
		return 0, m.SetShowAndDescendantsStatusError
	}
	return m.DB.SetShowAndDescendantsStatus(ctx, profileID, showID, status)
}

func (m *MockDB) ComputeSeasonStatusFromEpisodes(ctx context.Context, profileID, seasonID uint) (database.WatchStatus, bool, error) {
	m.record("ComputeSeasonStatusFromEpisodes")
	if m.ComputeSeasonStatusError != nil {
		return "", false, m.ComputeSeasonStatusError
	}
	return m.DB.ComputeSeasonStatusFromEpisodes(ctx, profileID, seasonID)
}

// View operations

func (m *MockDB) GetShowDetailsForProfile(ctx context.Context, profileID, showID uint) (*database.ShowDetails, error) {
	m.record("GetShowDetailsForProfile")
	if m.GetShowDetailsForProfileError != nil {
		return nil, m.GetShowDetailsForProfileError
	}
	return m.DB.GetShowDetailsForProfile(ctx, profileID, showID)
}
