package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
)

func bindStatus(c *gin.Context) (*models.StatusRequest, bool) {
	var req models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid status request"})
		return nil, false
	}
	return &req, true
}

// UpdateShowStatus sets the status of a show, and of all its children if recursive is set.
func (h *Handler) UpdateShowStatus(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "show")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	if err := h.engine.Progress().UpdateShowStatus(c.Request.Context(), ids[0], ids[1], req.Status, req.Recursive); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSeasonStatus sets the status of a season, and of its episodes if cascadeToEpisodes is set.
func (h *Handler) UpdateSeasonStatus(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "season")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	if err := h.engine.Progress().UpdateSeasonStatus(c.Request.Context(), ids[0], ids[1], req.Status, req.CascadeToEpisodes); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateEpisodeStatus sets the status of one episode. The season is not recomputed; clients
// call RecomputeSeason after a batch of episode updates.
func (h *Handler) UpdateEpisodeStatus(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "episode")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	if err := h.engine.Progress().UpdateEpisodeStatus(c.Request.Context(), ids[0], ids[1], req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateMovieStatus(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "movie")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	if err := h.engine.Progress().UpdateMovieStatus(c.Request.Context(), ids[0], ids[1], req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecomputeSeason derives the season status from its episodes.
func (h *Handler) RecomputeSeason(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "season")
	if !ok {
		return
	}
	status, updated, err := h.engine.Progress().RecomputeSeasonFromEpisodes(c.Request.Context(), ids[0], ids[1])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RecomputeResponse{Status: status, Updated: updated})
}

// RecomputeShow derives the show status from its seasons.
func (h *Handler) RecomputeShow(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "show")
	if !ok {
		return
	}
	status, updated, err := h.engine.Progress().RecomputeShowFromSeasons(c.Request.Context(), ids[0], ids[1])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RecomputeResponse{Status: status, Updated: updated})
}
