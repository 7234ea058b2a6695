// Package handler implements the HTTP endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
	"github.com/jon4hz/showtrack/internal/database"
	"github.com/jon4hz/showtrack/internal/engine"
	"github.com/jon4hz/showtrack/internal/progress"
	"github.com/jon4hz/showtrack/internal/provider"
)

type Handler struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Convert[uint](id)
}

// uintParams reads the named path parameters. On failure it answers with 400 and returns false.
func uintParams(c *gin.Context, names ...string) ([]uint, bool) {
	ids := make([]uint, len(names))
	for i, name := range names {
		id, err := parseUintParam(c.Param(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name + " id"})
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}

// respondError maps an error to its status code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var pe *provider.ProviderError
	var se *database.StorageError
	switch {
	case errors.Is(err, progress.ErrNotUpdated):
		status = http.StatusNotFound
	case errors.Is(err, progress.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.As(err, &pe):
		status = http.StatusBadGateway
		if provider.IsNotFound(err) {
			status = http.StatusNotFound
		}
	case errors.As(err, &se):
		log.Error("Storage failure", "path", c.FullPath(), "error", err)
		c.JSON(status, models.ErrorResponse{Error: "storage unavailable"})
		return
	default:
		log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

// GetShows lists the favorited shows of a profile with their progress.
func (h *Handler) GetShows(c *gin.Context) {
	ids, ok := uintParams(c, "profile")
	if !ok {
		return
	}
	shows, err := h.engine.Progress().GetShowsForProfile(c.Request.Context(), ids[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shows)
}

// GetShowDetails returns the seasons and episodes of a favorited show.
func (h *Handler) GetShowDetails(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "show")
	if !ok {
		return
	}
	details, err := h.engine.Progress().GetShowDetails(c.Request.Context(), ids[0], ids[1])
	if err != nil {
		respondError(c, err)
		return
	}
	if details == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "show is not a favorite of this profile"})
		return
	}
	c.JSON(http.StatusOK, details)
}

// GetUnwatchedEpisodes returns the next episode to watch of every show in progress.
func (h *Handler) GetUnwatchedEpisodes(c *gin.Context) {
	ids, ok := uintParams(c, "profile")
	if !ok {
		return
	}
	episodes, err := h.engine.Progress().GetUnwatchedEpisodes(c.Request.Context(), ids[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, episodes)
}

// GetMovies lists the favorited movies of a profile.
func (h *Handler) GetMovies(c *gin.Context) {
	ids, ok := uintParams(c, "profile")
	if !ok {
		return
	}
	movies, err := h.engine.Progress().GetMoviesForProfile(c.Request.Context(), ids[0])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movies)
}
