package database

import (
	"fmt"
	"time"
)

// WatchStatus is the watch progress of a profile on one piece of content.
// WATCHING is a state of its own, not a point between the other two.
type WatchStatus string

const (
	WatchStatusNotWatched WatchStatus = "NOT_WATCHED"
	WatchStatusWatching   WatchStatus = "WATCHING"
	WatchStatusWatched    WatchStatus = "WATCHED"
)

// Valid reports whether s is one of the known statuses.
func (s WatchStatus) Valid() bool {
	switch s {
	case WatchStatusNotWatched, WatchStatusWatching, WatchStatusWatched:
		return true
	}
	return false
}

// ParseWatchStatus parses a status as sent by clients.
func ParseWatchStatus(s string) (WatchStatus, error) {
	status := WatchStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid watch status %q", s)
	}
	return status, nil
}

// AggregateWatchStatus derives a parent status from its children.
// All children equal yields that status, any mix yields WATCHING.
// Without children there is nothing to derive and ok is false.
func AggregateWatchStatus(statuses []WatchStatus) (status WatchStatus, ok bool) {
	if len(statuses) == 0 {
		return "", false
	}
	first := statuses[0]
	for _, s := range statuses[1:] {
		if s != first {
			return WatchStatusWatching, true
		}
	}
	return first, true
}

// Show is the root of the content hierarchy.
type Show struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ExternalID       int64     `gorm:"not null;uniqueIndex" json:"externalId"`
	Title            string    `gorm:"not null" json:"title"`
	Overview         string    `json:"overview"`
	PosterPath       string    `json:"posterPath"`
	FirstAirDate     string    `json:"firstAirDate"`
	ProductionStatus string    `json:"productionStatus"`
	InProduction     bool      `gorm:"index" json:"inProduction"`
	SeasonCount      int       `json:"seasonCount"`
	EpisodeCount     int       `json:"episodeCount"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// Season belongs to exactly one show. EpisodeCount is what the provider announced and
// may be larger than the number of persisted episodes.
type Season struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ShowID       uint      `gorm:"not null;index" json:"showId"`
	ExternalID   int64     `gorm:"not null;uniqueIndex" json:"externalId"`
	SeasonNumber int       `gorm:"not null" json:"seasonNumber"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview"`
	PosterPath   string    `json:"posterPath"`
	AirDate      string    `json:"airDate"`
	EpisodeCount int       `json:"episodeCount"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Episode belongs to one season. ShowID is denormalized for show wide queries.
type Episode struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ShowID        uint      `gorm:"not null;index" json:"showId"`
	SeasonID      uint      `gorm:"not null;index" json:"seasonId"`
	ExternalID    int64     `gorm:"not null;uniqueIndex" json:"externalId"`
	SeasonNumber  int       `gorm:"not null" json:"seasonNumber"`
	EpisodeNumber int       `gorm:"not null" json:"episodeNumber"`
	Title         string    `json:"title"`
	Overview      string    `json:"overview"`
	StillPath     string    `json:"stillPath"`
	AirDate       string    `json:"airDate"`
	Runtime       int       `json:"runtime"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// Movie is flat content without children.
type Movie struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  int64     `gorm:"not null;uniqueIndex" json:"externalId"`
	Title       string    `gorm:"not null" json:"title"`
	Overview    string    `json:"overview"`
	PosterPath  string    `json:"posterPath"`
	ReleaseDate string    `json:"releaseDate"`
	Runtime     int       `json:"runtime"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// ShowWatchStatus is the per profile status of a show. Its existence means the profile favorited the show.
type ShowWatchStatus struct {
	ProfileID uint        `gorm:"primaryKey;autoIncrement:false"`
	ShowID    uint        `gorm:"primaryKey;autoIncrement:false;index"`
	Status    WatchStatus `gorm:"not null;size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeasonWatchStatus is the per profile status of a season.
type SeasonWatchStatus struct {
	ProfileID uint        `gorm:"primaryKey;autoIncrement:false"`
	SeasonID  uint        `gorm:"primaryKey;autoIncrement:false;index"`
	ShowID    uint        `gorm:"not null;index"`
	Status    WatchStatus `gorm:"not null;size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EpisodeWatchStatus is the per profile status of an episode.
type EpisodeWatchStatus struct {
	ProfileID uint        `gorm:"primaryKey;autoIncrement:false"`
	EpisodeID uint        `gorm:"primaryKey;autoIncrement:false;index"`
	SeasonID  uint        `gorm:"not null;index"`
	ShowID    uint        `gorm:"not null;index"`
	Status    WatchStatus `gorm:"not null;size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MovieWatchStatus is the per profile status of a movie.
type MovieWatchStatus struct {
	ProfileID uint        `gorm:"primaryKey;autoIncrement:false"`
	MovieID   uint        `gorm:"primaryKey;autoIncrement:false;index"`
	Status    WatchStatus `gorm:"not null;size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
