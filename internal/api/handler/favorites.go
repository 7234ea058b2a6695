package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
)

// AddShowFavorite favorites a show. A show that is not stored yet is answered with 202 and
// a partial result; its seasons arrive later as an event on the account's sessions.
func (h *Handler) AddShowFavorite(c *gin.Context) {
	ids, ok := uintParams(c, "profile")
	if !ok {
		return
	}
	var req models.AddShowFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid favorite request"})
		return
	}

	res, err := h.engine.Favorites().AddShowFavorite(c.Request.Context(), req.AccountID, ids[0], req.ExternalID)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Loading {
		c.JSON(http.StatusAccepted, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RemoveShowFavorite(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "show")
	if !ok {
		return
	}
	if err := h.engine.Favorites().RemoveShowFavorite(c.Request.Context(), ids[0], ids[1]); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddMovieFavorite(c *gin.Context) {
	ids, ok := uintParams(c, "profile")
	if !ok {
		return
	}
	var req models.AddMovieFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid favorite request"})
		return
	}

	movie, err := h.engine.Favorites().AddMovieFavorite(c.Request.Context(), ids[0], req.ExternalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movie)
}

func (h *Handler) RemoveMovieFavorite(c *gin.Context) {
	ids, ok := uintParams(c, "profile", "movie")
	if !ok {
		return
	}
	if err := h.engine.Favorites().RemoveMovieFavorite(c.Request.Context(), ids[0], ids[1]); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
