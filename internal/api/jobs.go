package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
)

// RecomputeRequest asks for a recompute of a city year. No months means
// the whole year.
type RecomputeRequest struct {
	Year     int    `json:"year" binding:"required"`
	Months   []int  `json:"months"`
	Location string `json:"location"`
}

// ImportWorkbook loads an uploaded monthly statistics workbook
func (h *Handler) ImportWorkbook(c *gin.Context) {
	city, _, ok := h.city(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing workbook file"})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}
	defer file.Close()

	res, err := h.importer.Import(c.Request.Context(), city.ID, file)
	if err != nil {
		if res != nil {
			// Records are stored; only the recompute could not be queued.
			h.logger.WithError(err).WithField("city", city.ID).Warn("Workbook imported without recompute")
			c.JSON(http.StatusAccepted, gin.H{"result": res, "warning": err.Error()})
			return
		}
		h.respondError(c, err, "Failed to import workbook")
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// Recompute enqueues a rollup and YTD recompute
func (h *Handler) Recompute(c *gin.Context) {
	city, tree, ok := h.city(c)
	if !ok {
		return
	}
	var req RecomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	months := req.Months
	if len(months) == 0 {
		months = models.AllMonths()
	}
	seen := make(map[int]bool, len(months))
	unique := make([]int, 0, len(months))
	for _, m := range months {
		if !(models.YearMonth{Year: req.Year, Month: m}).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid month %d", m)})
			return
		}
		if !seen[m] {
			seen[m] = true
			unique = append(unique, m)
		}
	}
	sort.Ints(unique)
	if req.Location != "" && !tree.Contains(req.Location) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown location " + req.Location})
		return
	}

	job := queue.NewJob(models.JobKindRecompute, city.ID, req.Year, unique)
	job.Location = req.Location
	if err := h.queue.Push(job); err != nil {
		h.respondError(c, err, "Failed to enqueue job")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"city":   city.ID,
		"year":   job.Year,
		"months": job.Months,
	}).Info("Recompute job enqueued")
	c.JSON(http.StatusAccepted, job)
}
