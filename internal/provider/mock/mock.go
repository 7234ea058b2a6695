// Package mock provides an in-memory provider.ContentProvider for tests.
package mock

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/jon4hz/showtrack/internal/provider"
)

var _ provider.ContentProvider = (*Provider)(nil)

type seasonKey struct {
	showID int64
	number int
}

// Provider serves shows, seasons and movies registered with the Add methods.
type Provider struct {
	mu      sync.Mutex
	shows   map[int64]provider.ShowDetails
	seasons map[seasonKey]provider.SeasonDetails
	movies  map[int64]provider.MovieDetails

	showCalls   int
	seasonCalls []int

	// BeforeSeason, when set, runs before a season is served. Tests use it to hold a load
	// at a given season.
	BeforeSeason func(seasonNumber int)

	// Error simulation
	ShowError   error
	MovieError  error
	SeasonError map[int]error // by season number
}

// New creates an empty provider.
func New() *Provider {
	return &Provider{
		shows:       make(map[int64]provider.ShowDetails),
		seasons:     make(map[seasonKey]provider.SeasonDetails),
		movies:      make(map[int64]provider.MovieDetails),
		SeasonError: make(map[int]error),
	}
}

// AddShow registers a show. Its Seasons list is what GetShowDetails returns.
func (p *Provider) AddShow(show provider.ShowDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shows[show.ID] = show
}

// AddSeason registers the details of one season of a show.
func (p *Provider) AddSeason(showID int64, season provider.SeasonDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seasons[seasonKey{showID, season.SeasonNumber}] = season
}

// AddMovie registers a movie.
func (p *Provider) AddMovie(movie provider.MovieDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movies[movie.ID] = movie
}

// ShowCalls returns how often show details were requested.
func (p *Provider) ShowCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showCalls
}

// SeasonCalls returns the season numbers requested so far, in order.
func (p *Provider) SeasonCalls() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.seasonCalls...)
}

func notFound(op string) error {
	return &provider.ProviderError{Op: op, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
}

func (p *Provider) GetShowDetails(_ context.Context, showID int64) (*provider.ShowDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showCalls++
	if p.ShowError != nil {
		return nil, p.ShowError
	}
	show, ok := p.shows[showID]
	if !ok {
		return nil, notFound("get show details")
	}
	return &show, nil
}

func (p *Provider) GetSeasonDetails(_ context.Context, showID int64, seasonNumber int) (*provider.SeasonDetails, error) {
	p.mu.Lock()
	hook := p.BeforeSeason
	p.mu.Unlock()
	if hook != nil {
		hook(seasonNumber)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seasonCalls = append(p.seasonCalls, seasonNumber)
	if err := p.SeasonError[seasonNumber]; err != nil {
		return nil, err
	}
	season, ok := p.seasons[seasonKey{showID, seasonNumber}]
	if !ok {
		return nil, notFound("get season details")
	}
	return &season, nil
}

func (p *Provider) GetMovieDetails(_ context.Context, movieID int64) (*provider.MovieDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MovieError != nil {
		return nil, p.MovieError
	}
	movie, ok := p.movies[movieID]
	if !ok {
		return nil, notFound("get movie details")
	}
	return &movie, nil
}
