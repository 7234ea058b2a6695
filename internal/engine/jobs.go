package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/progress"
	"golang.org/x/sync/errgroup"
)

// RefreshJobID identifies the show refresh job in the scheduler.
const RefreshJobID = "refresh_shows"

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	if e.cfg.Refresh == nil || !e.cfg.Refresh.Enabled {
		log.Info("Show refresh job is disabled")
		return nil
	}

	if err := e.scheduler.AddSingletonJob(
		RefreshJobID,
		"Refresh Shows",
		"Fetches new seasons and episodes of favorited shows that are still in production",
		e.cfg.Refresh.Schedule,
		gocron.CronJob(e.cfg.Refresh.Schedule, false),
		e.RefreshShows,
		false,
	); err != nil {
		return fmt.Errorf("failed to add refresh job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully")
	return nil
}

// RefreshShows refreshes every favorited show in production. A failing show is logged
// and skipped.
func (e *Engine) RefreshShows(ctx context.Context) error {
	shows, err := e.db.GetShowsInProduction(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shows in production: %w", err)
	}
	log.Info("Refreshing shows in production", "count", len(shows))

	var failed int
	for _, show := range shows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.refreshShow(ctx, show); err != nil {
			log.Error("Failed to refresh show", "showID", show.ID, "title", show.Title, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to refresh %d of %d shows", failed, len(shows))
	}
	return nil
}

// refreshShow stores new seasons and episodes of a show for every profile that favorited
// it and then recomputes each season per profile, so a watched season that got a new
// episode goes back to WATCHING.
func (e *Engine) refreshShow(ctx context.Context, show database.Show) error {
	profileIDs, err := e.db.GetFavoritingProfiles(ctx, show.ID)
	if err != nil {
		return err
	}
	if len(profileIDs) == 0 {
		return nil
	}

	seasonIDs, err := e.loader.Refresh(ctx, show, profileIDs)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Refresh.Concurrency))
	for _, profileID := range profileIDs {
		g.Go(func() error {
			for _, seasonID := range seasonIDs {
				_, _, err := e.progress.RecomputeSeasonFromEpisodes(gctx, profileID, seasonID)
				if err != nil && !errors.Is(err, progress.ErrNotUpdated) {
					return fmt.Errorf("profile %d season %d: %w", profileID, seasonID, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Debug("Refreshed show", "showID", show.ID, "profiles", len(profileIDs), "seasons", len(seasonIDs))
	return nil
}
