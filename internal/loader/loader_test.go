package loader

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jon4hz/showtrack/internal/cache"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/database/dbtest"
	"github.com/jon4hz/showtrack/internal/provider"
	providermock "github.com/jon4hz/showtrack/internal/provider/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	accountID uint
	event     string
	payload   any
}

type recordingNotifier struct {
	mu        sync.Mutex
	deliver   bool
	delivered []sentEvent
}

func (n *recordingNotifier) SendToAccount(_ context.Context, accountID uint, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, sentEvent{accountID, event, payload})
	return n.deliver
}

func (n *recordingNotifier) events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.delivered...)
}

type fixture struct {
	db       *database.Client
	provider *providermock.Provider
	notifier *recordingNotifier
	loader   *Loader
	show     database.Show
}

// newFixture registers a show with specials and the given regular seasons at the provider and
// stores the show row favorited by profile 1.
func newFixture(t *testing.T, delay time.Duration, episodesPerSeason ...int) *fixture {
	t.Helper()
	f := &fixture{
		db:       dbtest.New(t),
		provider: providermock.New(),
		notifier: &recordingNotifier{deliver: true},
	}

	details := provider.ShowDetails{ID: 95396, Title: "Severance", InProduction: true}
	details.Seasons = append(details.Seasons, provider.SeasonSummary{ID: 9000, SeasonNumber: 0, Name: "Specials"})
	f.provider.AddSeason(details.ID, provider.SeasonDetails{
		SeasonSummary: provider.SeasonSummary{ID: 9000, SeasonNumber: 0},
		Episodes:      []provider.EpisodeDetails{{ID: 90001, EpisodeNumber: 1}},
	})
	for i, count := range episodesPerSeason {
		number := i + 1
		summary := provider.SeasonSummary{ID: int64(9000 + number), SeasonNumber: number, EpisodeCount: count}
		details.Seasons = append(details.Seasons, summary)

		season := provider.SeasonDetails{SeasonSummary: summary}
		for e := 1; e <= count; e++ {
			season.Episodes = append(season.Episodes, provider.EpisodeDetails{
				ID:            int64(number*1000 + e),
				EpisodeNumber: e,
				SeasonNumber:  number,
			})
		}
		f.provider.AddSeason(details.ID, season)
	}
	f.provider.AddShow(details)

	c, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute})
	require.NoError(t, err)
	f.loader = New(f.db, f.provider, f.notifier, c, &config.LoaderConfig{SeasonDelay: delay})

	f.show = ShowFromDetails(&details)
	require.NoError(t, f.db.UpsertShow(context.Background(), &f.show))
	require.NoError(t, f.db.CreateShowFavorite(context.Background(), 1, f.show.ID))
	return f
}

func (f *fixture) request() Request {
	return Request{AccountID: 10, ProfileID: 1, ShowID: f.show.ID, ExternalID: f.show.ExternalID}
}

func waitRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("run %s did not finish, state %s", run.ID, run.State())
	}
}

func TestLoad_CompletesAndNotifies(t *testing.T) {
	f := newFixture(t, time.Millisecond, 2, 1)

	run := f.loader.Start(context.Background(), f.request())
	waitRun(t, run)

	require.Equal(t, StateDone, run.State(), "error: %v", run.Err())
	assert.Equal(t, []State{
		StatePending,
		StateFetchingSeasons,
		StateFetchingEpisodes, StatePersisting,
		StateFetchingEpisodes, StatePersisting,
		StateNotifying,
		StateDone,
	}, run.History())
	assert.Equal(t, []int{1, 2}, f.provider.SeasonCalls(), "specials are skipped")
	assert.True(t, run.Delivered())
	assert.Equal(t, 2, run.Status().SeasonsLoaded)

	events := f.notifier.events()
	require.Len(t, events, 1)
	assert.Equal(t, uint(10), events[0].accountID)
	assert.Equal(t, EventFavoriteLoaded, events[0].event)

	payload, ok := events[0].payload.(FavoriteLoadedPayload)
	require.True(t, ok)
	assert.Contains(t, payload.Message, "Severance")
	assert.Equal(t, payload.Message, payload.Summary())
	require.NotNil(t, payload.Show)
	assert.Len(t, payload.Show.Seasons, 2)
	assert.Len(t, payload.Show.Episodes, 3)
	for _, ep := range payload.Show.Episodes {
		assert.Equal(t, database.WatchStatusNotWatched, ep.Status)
	}
}

func TestLoad_FailureKeepsStoredSeasons(t *testing.T) {
	f := newFixture(t, time.Millisecond, 2, 2, 2)
	f.provider.SeasonError[2] = &provider.ProviderError{Op: "get season details", StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")}

	run := f.loader.Start(context.Background(), f.request())
	waitRun(t, run)

	assert.Equal(t, StateFailed, run.State())
	var pe *provider.ProviderError
	assert.ErrorAs(t, run.Err(), &pe)
	assert.Equal(t, []int{1, 2}, f.provider.SeasonCalls(), "the loop stops without retry")
	assert.Empty(t, f.notifier.events())

	seasons, episodes, err := f.db.CountShowContent(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, seasons)
	assert.EqualValues(t, 2, episodes)

	history := run.History()
	assert.Equal(t, StateFetchingEpisodes, history[len(history)-2])
}

func TestLoad_ShowFetchFails(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1)
	f.provider.ShowError = &provider.ProviderError{Op: "get show details", Err: errors.New("connection refused")}

	run := f.loader.Start(context.Background(), f.request())
	waitRun(t, run)

	assert.Equal(t, []State{StatePending, StateFetchingSeasons, StateFailed}, run.History())
	assert.Empty(t, f.provider.SeasonCalls())
	assert.NotEmpty(t, run.Status().Error)
}

func TestLoad_UndeliveredNotificationIsDropped(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1)
	f.notifier.deliver = false

	run := f.loader.Start(context.Background(), f.request())
	waitRun(t, run)

	assert.Equal(t, StateDone, run.State())
	assert.False(t, run.Delivered())
	assert.Len(t, f.notifier.events(), 1)
}

func TestLoad_PacesSeasonFetches(t *testing.T) {
	delay := 40 * time.Millisecond
	f := newFixture(t, delay, 1, 1, 1)

	start := time.Now()
	run := f.loader.Start(context.Background(), f.request())
	waitRun(t, run)

	assert.Equal(t, StateDone, run.State())
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestLoad_OutlivesRequestContext(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	run := f.loader.Start(ctx, f.request())
	cancel()
	waitRun(t, run)

	assert.Equal(t, StateDone, run.State())
}

func TestRegistry(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1)

	first := f.loader.Start(context.Background(), f.request())
	waitRun(t, first)
	second := f.loader.Start(context.Background(), f.request())
	f.loader.Wait()

	got, ok := f.loader.Run(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)

	runs := f.loader.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)

	_, ok = f.loader.Run("unknown")
	assert.False(t, ok)
}

func TestRefresh_AddsNewEpisodesKeepsProgress(t *testing.T) {
	f := newFixture(t, time.Millisecond, 2)
	ctx := context.Background()

	run := f.loader.Start(ctx, f.request())
	waitRun(t, run)
	require.Equal(t, StateDone, run.State())

	details, err := f.db.GetShowDetailsForProfile(ctx, 1, f.show.ID)
	require.NoError(t, err)
	_, err = f.db.SetEpisodeStatus(ctx, 1, details.Episodes[0].ID, database.WatchStatusWatched)
	require.NoError(t, err)

	// a new episode airs in season 1
	f.provider.AddSeason(f.show.ExternalID, provider.SeasonDetails{
		SeasonSummary: provider.SeasonSummary{ID: 9001, SeasonNumber: 1},
		Episodes: []provider.EpisodeDetails{
			{ID: 1001, EpisodeNumber: 1, SeasonNumber: 1},
			{ID: 1002, EpisodeNumber: 2, SeasonNumber: 1},
			{ID: 1003, EpisodeNumber: 3, SeasonNumber: 1},
		},
	})

	seasonIDs, err := f.loader.Refresh(ctx, f.show, []uint{1})
	require.NoError(t, err)
	assert.Len(t, seasonIDs, 1)

	details, err = f.db.GetShowDetailsForProfile(ctx, 1, f.show.ID)
	require.NoError(t, err)
	require.Len(t, details.Episodes, 3)
	assert.Equal(t, database.WatchStatusWatched, details.Episodes[0].Status)
	assert.Equal(t, database.WatchStatusNotWatched, details.Episodes[2].Status)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateNotifying.Terminal())
}

type panickingProvider struct {
	*providermock.Provider
}

func (panickingProvider) GetSeasonDetails(context.Context, int64, int) (*provider.SeasonDetails, error) {
	panic("malformed season payload")
}

func TestLoad_PanicFailsRun(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1)
	c, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory})
	require.NoError(t, err)
	l := New(f.db, panickingProvider{f.provider}, f.notifier, c, &config.LoaderConfig{SeasonDelay: time.Millisecond})

	run := l.Start(context.Background(), f.request())
	waitRun(t, run)
	l.Wait()

	assert.Equal(t, StateFailed, run.State())
	assert.ErrorContains(t, run.Err(), "malformed season payload")
	assert.Empty(t, f.notifier.events())

	// the show is free to be loaded again
	_, ok := l.Join(f.request())
	assert.False(t, ok)
}

func TestLoad_UsesProvidedDetails(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1, 1)
	details, err := f.provider.GetShowDetails(context.Background(), f.show.ExternalID)
	require.NoError(t, err)

	req := f.request()
	req.Details = details
	run := f.loader.Start(context.Background(), req)
	waitRun(t, run)

	assert.Equal(t, StateDone, run.State())
	assert.Equal(t, 1, f.provider.ShowCalls())
}

func TestJoin(t *testing.T) {
	f := newFixture(t, time.Millisecond, 1, 1)
	require.NoError(t, f.db.CreateShowFavorite(context.Background(), 2, f.show.ID))

	release := make(chan struct{})
	f.provider.BeforeSeason = func(number int) {
		if number == 2 {
			<-release
		}
	}

	run := f.loader.Start(context.Background(), f.request())
	joiner := Request{AccountID: 20, ProfileID: 2, ShowID: f.show.ID, ExternalID: f.show.ExternalID}
	joined, ok := f.loader.Join(joiner)
	require.True(t, ok)
	assert.Same(t, run, joined)

	close(release)
	waitRun(t, run)
	require.Equal(t, StateDone, run.State(), "error: %v", run.Err())

	events := f.notifier.events()
	require.Len(t, events, 2)
	assert.ElementsMatch(t, []uint{10, 20}, []uint{events[0].accountID, events[1].accountID})

	details, err := f.db.GetShowDetailsForProfile(context.Background(), 2, f.show.ID)
	require.NoError(t, err)
	assert.Len(t, details.Seasons, 2)

	// a finished run can't be joined
	_, ok = f.loader.Join(joiner)
	assert.False(t, ok)
}
