package loader

import (
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/provider"
	"github.com/samber/lo"
)

// ShowFromDetails maps provider show metadata onto a show row.
func ShowFromDetails(d *provider.ShowDetails) database.Show {
	return database.Show{
		ExternalID:       d.ID,
		Title:            d.Title,
		Overview:         d.Overview,
		PosterPath:       d.PosterPath,
		FirstAirDate:     d.FirstAirDate,
		ProductionStatus: d.ProductionStatus,
		InProduction:     d.InProduction,
		SeasonCount:      d.SeasonCount,
		EpisodeCount:     d.EpisodeCount,
	}
}

// MovieFromDetails maps provider movie metadata onto a movie row.
func MovieFromDetails(d *provider.MovieDetails) database.Movie {
	return database.Movie{
		ExternalID:  d.ID,
		Title:       d.Title,
		Overview:    d.Overview,
		PosterPath:  d.PosterPath,
		ReleaseDate: d.ReleaseDate,
		Runtime:     d.Runtime,
	}
}

func seasonFromDetails(showID uint, d *provider.SeasonDetails) (database.Season, []database.Episode) {
	season := database.Season{
		ShowID:       showID,
		ExternalID:   d.ID,
		SeasonNumber: d.SeasonNumber,
		Name:         d.Name,
		Overview:     d.Overview,
		PosterPath:   d.PosterPath,
		AirDate:      d.AirDate,
		EpisodeCount: d.EpisodeCount,
	}
	episodes := lo.Map(d.Episodes, func(e provider.EpisodeDetails, _ int) database.Episode {
		return database.Episode{
			ExternalID:    e.ID,
			EpisodeNumber: e.EpisodeNumber,
			Title:         e.Title,
			Overview:      e.Overview,
			StillPath:     e.StillPath,
			AirDate:       e.AirDate,
			Runtime:       e.Runtime,
		}
	})
	return season, episodes
}
