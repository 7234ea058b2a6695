// Package loader fetches the season and episode hierarchy of a newly favorited show in the
// background and tells the owning account once it is complete.
package loader

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/showtrack/internal/cache"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/notify"
	"github.com/jon4hz/showtrack/internal/provider"
	"github.com/samber/lo"
)

// EventFavoriteLoaded is sent to the account once the hierarchy of a favorite is stored.
const EventFavoriteLoaded = "updateShowFavorite"

// maxFinishedRuns bounds how many finished runs stay in the registry.
const maxFinishedRuns = 100

// FavoriteLoadedPayload is the body of EventFavoriteLoaded.
type FavoriteLoadedPayload struct {
	Message string                `json:"message"`
	Show    *database.ShowDetails `json:"show"`
}

// Summary implements notify.Summarizer.
func (p FavoriteLoadedPayload) Summary() string {
	return p.Message
}

// Loader runs hierarchy loads. Loads are best effort: a failed load is logged and stays
// failed, seasons stored before the failure are kept.
type Loader struct {
	db       database.DB
	provider provider.ContentProvider
	notifier notify.Notifier
	cache    *cache.Cache
	delay    time.Duration

	mu     sync.RWMutex
	runs   map[string]*Run
	order  []string
	active map[uint]*Run // by show id
	wg     sync.WaitGroup
}

// New creates a new loader.
func New(db database.DB, p provider.ContentProvider, n notify.Notifier, c *cache.Cache, cfg *config.LoaderConfig) *Loader {
	return &Loader{
		db:       db,
		provider: p,
		notifier: n,
		cache:    c,
		delay:    cfg.SeasonDelay,
		runs:     make(map[string]*Run),
		active:   make(map[uint]*Run),
	}
}

// Start begins loading the hierarchy of req.ShowID for req.ProfileID and returns immediately.
// The load is detached from ctx cancellation since the request that triggered it ends first.
func (l *Loader) Start(ctx context.Context, req Request) *Run {
	run := newRun(uuid.NewString(), req)
	l.register(run)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(run.done)
		defer l.deactivate(run)
		defer func() {
			if r := recover(); r != nil {
				log.Error("hierarchy load panicked", "run", run.ID, "showID", req.ShowID, "panic", r)
				run.fail(fmt.Errorf("hierarchy load panicked: %v", r))
			}
		}()
		l.load(context.WithoutCancel(ctx), run)
	}()
	return run
}

// Join attaches req to the run that is currently loading req.ShowID, if any. The account of
// req is notified when that run completes. It reports false when no run can take req.
func (l *Loader) Join(req Request) (*Run, bool) {
	l.mu.RLock()
	run, ok := l.active[req.ShowID]
	l.mu.RUnlock()
	if !ok || !run.join(req) {
		return nil, false
	}
	log.Debug("joined running hierarchy load", "run", run.ID, "showID", req.ShowID, "profileID", req.ProfileID)
	return run, true
}

func (l *Loader) deactivate(run *Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[run.Request.ShowID] == run {
		delete(l.active, run.Request.ShowID)
	}
}

// Wait blocks until all started runs are finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Run returns the run with the given id.
func (l *Loader) Run(id string) (*Run, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[id]
	return run, ok
}

// Runs returns the known runs, oldest first.
func (l *Loader) Runs() []*Run {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Map(l.order, func(id string, _ int) *Run { return l.runs[id] })
}

func (l *Loader) register(run *Run) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runs[run.ID] = run
	l.order = append(l.order, run.ID)
	l.active[run.Request.ShowID] = run

	finished := lo.CountBy(l.order, func(id string) bool { return l.runs[id].State().Terminal() })
	for i := 0; finished > maxFinishedRuns && i < len(l.order); {
		id := l.order[i]
		if l.runs[id].State().Terminal() {
			delete(l.runs, id)
			l.order = slices.Delete(l.order, i, i+1)
			finished--
			continue
		}
		i++
	}
}

func (l *Loader) load(ctx context.Context, run *Run) {
	req := run.Request
	logger := log.With("run", run.ID, "showID", req.ShowID, "profileID", req.ProfileID)

	run.transition(StateFetchingSeasons)
	show := req.Details
	if show == nil {
		logger.Debug("fetching seasons", "externalID", req.ExternalID)
		var err error
		show, err = l.provider.GetShowDetails(ctx, req.ExternalID)
		if err != nil {
			logger.Error("failed to fetch seasons", "error", err)
			run.fail(err)
			return
		}
	}

	// profiles that favorite the show while it loads get their associations per season
	favoriting := func(ctx context.Context) ([]uint, error) {
		return l.db.GetFavoritingProfiles(ctx, req.ShowID)
	}
	err := l.loadSeasons(ctx, req.ShowID, show, favoriting, seasonHooks{
		step: func(state State, season int) {
			run.setSeason(season)
			run.transition(state)
			logger.Debug("hierarchy load step", "state", state, "season", season)
		},
		stored: func(int) { run.seasonLoaded() },
	})
	if err != nil {
		logger.Error("failed to load hierarchy", "state", run.State(), "error", err)
		run.fail(err)
		return
	}

	run.transition(StateNotifying)
	// a profile that attached between two seasons or before the last one was stored
	// gets whatever it missed
	profileIDs, err := l.db.AttachFavoritingProfiles(ctx, req.ShowID)
	if err != nil {
		logger.Error("failed to attach favoriting profiles", "error", err)
		run.fail(err)
		return
	}
	for _, profileID := range lo.Uniq(append(profileIDs, req.ProfileID)) {
		if err := l.cache.InvalidatePattern(ctx, cache.ProfilePrefix(profileID)); err != nil {
			logger.Warn("failed to invalidate profile cache", "profileID", profileID, "error", err)
		}
	}

	var delivered bool
	for _, r := range lo.UniqBy(run.requests(), func(r Request) [2]uint { return [2]uint{r.AccountID, r.ProfileID} }) {
		details, err := l.db.GetShowDetailsForProfile(ctx, r.ProfileID, req.ShowID)
		if err != nil {
			logger.Error("failed to load show details for notification", "error", err)
			run.fail(err)
			return
		}
		if details == nil {
			// removed while loading
			continue
		}
		payload := FavoriteLoadedPayload{
			Message: fmt.Sprintf("%s has been added to your favorites", show.Title),
			Show:    details,
		}
		if l.notifier.SendToAccount(ctx, r.AccountID, EventFavoriteLoaded, payload) {
			delivered = true
		} else {
			logger.Debug("favorite loaded notification dropped", "accountID", r.AccountID)
		}
	}
	run.mu.Lock()
	run.delivered = delivered
	run.mu.Unlock()

	run.transition(StateDone)
	logger.Info("favorite hierarchy loaded", "seasons", run.Status().SeasonsLoaded)
}

type seasonHooks struct {
	step   func(state State, seasonNumber int)
	stored func(seasonNumber int)
}

// loadSeasons fetches and stores every regular season of show in provider order, pausing
// between fetches. Specials (season 0) are skipped. Each season is stored with its
// episodes and the associations of the profiles returned by profiles in one transaction;
// a failure stops the loop and keeps earlier seasons.
func (l *Loader) loadSeasons(ctx context.Context, showID uint, show *provider.ShowDetails, profiles func(context.Context) ([]uint, error), hooks seasonHooks) error {
	step := func(state State, number int) {
		if hooks.step != nil {
			hooks.step(state, number)
		}
	}
	seasons := lo.Filter(show.Seasons, func(s provider.SeasonSummary, _ int) bool { return s.SeasonNumber > 0 })

	for i, summary := range seasons {
		if i > 0 {
			if err := sleep(ctx, l.delay); err != nil {
				return err
			}
		}

		step(StateFetchingEpisodes, summary.SeasonNumber)
		details, err := l.provider.GetSeasonDetails(ctx, show.ID, summary.SeasonNumber)
		if err != nil {
			return fmt.Errorf("season %d: %w", summary.SeasonNumber, err)
		}

		step(StatePersisting, summary.SeasonNumber)
		profileIDs, err := profiles(ctx)
		if err != nil {
			return fmt.Errorf("season %d: %w", summary.SeasonNumber, err)
		}
		season, episodes := seasonFromDetails(showID, details)
		if err := l.db.UpsertSeasonWithEpisodes(ctx, &season, episodes, profileIDs...); err != nil {
			return fmt.Errorf("season %d: %w", summary.SeasonNumber, err)
		}
		if hooks.stored != nil {
			hooks.stored(summary.SeasonNumber)
		}
	}
	return nil
}

// Refresh re-fetches a stored show and its regular seasons and stores new or changed
// seasons and episodes for all given profiles. Existing progress is kept. It runs
// synchronously and returns the ids of all stored seasons of the show.
func (l *Loader) Refresh(ctx context.Context, show database.Show, profileIDs []uint) ([]uint, error) {
	details, err := l.provider.GetShowDetails(ctx, show.ExternalID)
	if err != nil {
		return nil, err
	}

	updated := ShowFromDetails(details)
	if err := l.db.UpsertShow(ctx, &updated); err != nil {
		return nil, err
	}

	fixed := func(context.Context) ([]uint, error) { return profileIDs, nil }
	if err := l.loadSeasons(ctx, show.ID, details, fixed, seasonHooks{}); err != nil {
		return nil, err
	}
	return l.db.GetSeasonIDsForShow(ctx, show.ID)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
