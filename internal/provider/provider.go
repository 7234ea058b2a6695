// Package provider defines the external content metadata source.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ShowDetails is the root metadata of a show. Seasons come in provider order and may include
// specials with season number 0.
type ShowDetails struct {
	ID               int64
	Title            string
	Overview         string
	PosterPath       string
	FirstAirDate     string
	ProductionStatus string
	InProduction     bool
	SeasonCount      int
	EpisodeCount     int
	Seasons          []SeasonSummary
}

// SeasonSummary is a season as listed in the show details.
type SeasonSummary struct {
	ID           int64
	SeasonNumber int
	Name         string
	Overview     string
	PosterPath   string
	AirDate      string
	EpisodeCount int
}

// SeasonDetails is a season with its episodes.
type SeasonDetails struct {
	SeasonSummary
	Episodes []EpisodeDetails
}

// EpisodeDetails is the metadata of a single episode.
type EpisodeDetails struct {
	ID            int64
	EpisodeNumber int
	SeasonNumber  int
	Title         string
	Overview      string
	StillPath     string
	AirDate       string
	Runtime       int
}

// MovieDetails is the metadata of a movie.
type MovieDetails struct {
	ID          int64
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate string
	Runtime     int
}

// ContentProvider fetches content metadata from an external source.
type ContentProvider interface {
	GetShowDetails(ctx context.Context, showID int64) (*ShowDetails, error)
	GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error)
	GetMovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
}

// ProviderError is returned for every failure of the metadata source. StatusCode is zero for
// transport failures.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a provider error for unknown content.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
