// Package tmdb implements provider.ContentProvider on top of the TMDb v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/provider"
	"github.com/samber/lo"
)

var _ provider.ContentProvider = (*Client)(nil)

// Client represents a TMDb API client.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// New creates a new TMDb API client.
func New(cfg *config.TMDBConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tvResponse struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Overview         string           `json:"overview"`
	PosterPath       string           `json:"poster_path"`
	FirstAirDate     string           `json:"first_air_date"`
	Status           string           `json:"status"`
	InProduction     bool             `json:"in_production"`
	NumberOfSeasons  int              `json:"number_of_seasons"`
	NumberOfEpisodes int              `json:"number_of_episodes"`
	Seasons          []seasonResponse `json:"seasons"`
}

type seasonResponse struct {
	ID           int64             `json:"id"`
	SeasonNumber int               `json:"season_number"`
	Name         string            `json:"name"`
	Overview     string            `json:"overview"`
	PosterPath   string            `json:"poster_path"`
	AirDate      string            `json:"air_date"`
	EpisodeCount int               `json:"episode_count"`
	Episodes     []episodeResponse `json:"episodes"`
}

type episodeResponse struct {
	ID            int64  `json:"id"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	StillPath     string `json:"still_path"`
	AirDate       string `json:"air_date"`
	Runtime       int    `json:"runtime"`
}

type movieResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
	Runtime     int    `json:"runtime"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// doRequest performs a GET request against the TMDb API and decodes the JSON body into out.
func (c *Client) doRequest(ctx context.Context, op, endpoint string, out any) error {
	query := url.Values{}
	query.Set("api_key", c.apiKey)
	if c.language != "" {
		query.Set("language", c.language)
	}
	reqURL := c.baseURL + endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &provider.ProviderError{Op: op, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &provider.ProviderError{Op: op, Err: fmt.Errorf("error performing request: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var apiErr errorResponse
		msg := string(bodyBytes)
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.StatusMessage != "" {
			msg = apiErr.StatusMessage
		}
		log.Debug("tmdb request failed", "endpoint", endpoint, "status", resp.StatusCode)
		return &provider.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &provider.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("error decoding response: %w", err)}
	}
	return nil
}

// GetShowDetails retrieves a show with its season list.
func (c *Client) GetShowDetails(ctx context.Context, showID int64) (*provider.ShowDetails, error) {
	var tv tvResponse
	if err := c.doRequest(ctx, "get show details", fmt.Sprintf("/tv/%d", showID), &tv); err != nil {
		return nil, err
	}

	return &provider.ShowDetails{
		ID:               tv.ID,
		Title:            tv.Name,
		Overview:         tv.Overview,
		PosterPath:       tv.PosterPath,
		FirstAirDate:     tv.FirstAirDate,
		ProductionStatus: tv.Status,
		InProduction:     tv.InProduction,
		SeasonCount:      tv.NumberOfSeasons,
		EpisodeCount:     tv.NumberOfEpisodes,
		Seasons:          lo.Map(tv.Seasons, func(s seasonResponse, _ int) provider.SeasonSummary { return s.summary() }),
	}, nil
}

// GetSeasonDetails retrieves a season with all of its episodes.
func (c *Client) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*provider.SeasonDetails, error) {
	var season seasonResponse
	if err := c.doRequest(ctx, "get season details", fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber), &season); err != nil {
		return nil, err
	}

	details := &provider.SeasonDetails{
		SeasonSummary: season.summary(),
		Episodes: lo.Map(season.Episodes, func(e episodeResponse, _ int) provider.EpisodeDetails {
			return provider.EpisodeDetails{
				ID:            e.ID,
				EpisodeNumber: e.EpisodeNumber,
				SeasonNumber:  e.SeasonNumber,
				Title:         e.Name,
				Overview:      e.Overview,
				StillPath:     e.StillPath,
				AirDate:       e.AirDate,
				Runtime:       e.Runtime,
			}
		}),
	}
	// the season endpoint omits episode_count
	if details.EpisodeCount == 0 {
		details.EpisodeCount = len(details.Episodes)
	}
	return details, nil
}

// GetMovieDetails retrieves a movie.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*provider.MovieDetails, error) {
	var movie movieResponse
	if err := c.doRequest(ctx, "get movie details", fmt.Sprintf("/movie/%d", movieID), &movie); err != nil {
		return nil, err
	}
	return &provider.MovieDetails{
		ID:          movie.ID,
		Title:       movie.Title,
		Overview:    movie.Overview,
		PosterPath:  movie.PosterPath,
		ReleaseDate: movie.ReleaseDate,
		Runtime:     movie.Runtime,
	}, nil
}

func (s seasonResponse) summary() provider.SeasonSummary {
	return provider.SeasonSummary{
		ID:           s.ID,
		SeasonNumber: s.SeasonNumber,
		Name:         s.Name,
		Overview:     s.Overview,
		PosterPath:   s.PosterPath,
		AirDate:      s.AirDate,
		EpisodeCount: s.EpisodeCount,
	}
}
