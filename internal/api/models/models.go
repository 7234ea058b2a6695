// Package models holds the request and response bodies of the HTTP API.
package models

import "github.com/jon4hz/showtrack/internal/database"

// StatusRequest sets the watch status of a piece of content.
type StatusRequest struct {
	Status database.WatchStatus `json:"status" binding:"required"`
	// Recursive applies a show status to all of its seasons and episodes.
	Recursive bool `json:"recursive"`
	// CascadeToEpisodes applies a season status to all of its episodes.
	CascadeToEpisodes bool `json:"cascadeToEpisodes"`
}

// AddShowFavoriteRequest favorites a show by its provider id. AccountID receives the
// notification once the show is loaded.
type AddShowFavoriteRequest struct {
	AccountID  uint  `json:"accountId" binding:"required"`
	ExternalID int64 `json:"externalId" binding:"required"`
}

// AddMovieFavoriteRequest favorites a movie by its provider id.
type AddMovieFavoriteRequest struct {
	ExternalID int64 `json:"externalId" binding:"required"`
}

// RecomputeResponse is returned by the recompute endpoints. Updated is false when the
// content has no children to derive a status from.
type RecomputeResponse struct {
	Status  database.WatchStatus `json:"status,omitempty"`
	Updated bool                 `json:"updated"`
}

// SubscribeRequest represents the request body for push notification subscription.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
