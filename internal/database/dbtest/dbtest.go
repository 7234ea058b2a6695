// Package dbtest provides sqlite backed stores and content fixtures for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/stretchr/testify/require"
)

// New opens a migrated sqlite store in a temporary directory.
func New(t testing.TB) *database.Client {
	t.Helper()
	c, err := database.New(&config.DatabaseConfig{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "showtrack.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Show is a stored show fixture. Episodes are keyed by season id.
type Show struct {
	Show     database.Show
	Seasons  []database.Season
	Episodes map[uint][]database.Episode
}

// EpisodeIDs returns the ids of the episodes of the n-th season (zero based).
func (s Show) EpisodeIDs(n int) []uint {
	eps := s.Episodes[s.Seasons[n].ID]
	ids := make([]uint, len(eps))
	for i, e := range eps {
		ids[i] = e.ID
	}
	return ids
}

// SeedShow stores a show with one regular season per entry of episodesPerSeason and
// favorites it for the given profiles.
func SeedShow(t testing.TB, db database.DB, externalID int64, title string, episodesPerSeason []int, profileIDs ...uint) Show {
	t.Helper()
	ctx := context.Background()

	show := database.Show{ExternalID: externalID, Title: title, InProduction: true, SeasonCount: len(episodesPerSeason)}
	require.NoError(t, db.UpsertShow(ctx, &show))
	for _, p := range profileIDs {
		require.NoError(t, db.CreateShowFavorite(ctx, p, show.ID))
	}

	seeded := Show{Show: show, Episodes: map[uint][]database.Episode{}}
	for i, count := range episodesPerSeason {
		number := i + 1
		season := database.Season{
			ShowID:       show.ID,
			ExternalID:   externalID*100 + int64(number),
			SeasonNumber: number,
			EpisodeCount: count,
		}
		episodes := make([]database.Episode, count)
		for j := range episodes {
			episodes[j] = database.Episode{ExternalID: season.ExternalID*100 + int64(j+1), EpisodeNumber: j + 1}
		}
		require.NoError(t, db.UpsertSeasonWithEpisodes(ctx, &season, episodes, profileIDs...))
		seeded.Seasons = append(seeded.Seasons, season)
		seeded.Episodes[season.ID] = episodes
	}
	return seeded
}
