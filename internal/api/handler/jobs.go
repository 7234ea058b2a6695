package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
	"github.com/jon4hz/showtrack/internal/loader"
	"github.com/samber/lo"
)

// GetLoaderRuns lists the known hierarchy loads, oldest first.
func (h *Handler) GetLoaderRuns(c *gin.Context) {
	runs := lo.Map(h.engine.Loader().Runs(), func(r *loader.Run, _ int) loader.RunStatus {
		return r.Status()
	})
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) GetLoaderRun(c *gin.Context) {
	run, ok := h.engine.Loader().Run(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, run.Status())
}

// GetJobs lists the scheduled jobs.
func (h *Handler) GetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Scheduler().Jobs())
}

// RunJob triggers a scheduled job right away.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.engine.Scheduler().Job(id); !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
		return
	}
	if err := h.engine.Scheduler().RunJobNow(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
