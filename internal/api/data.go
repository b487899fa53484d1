package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
	"marketstats/server/internal/stats"
)

// PeriodData is the per property type content of one location and month.
type PeriodData struct {
	City     string                   `json:"city"`
	Location string                   `json:"location"`
	Year     int                      `json:"year"`
	Month    int                      `json:"month"`
	Data     map[string]*models.Stats `json:"data"`
	JobID    string                   `json:"jobId,omitempty"`
}

// DistributionResponse is a merged month distribution. Buckets are only
// set when a property type was requested.
type DistributionResponse struct {
	City         string                   `json:"city"`
	Year         int                      `json:"year"`
	Month        int                      `json:"month"`
	Rows         []models.DistributionRow `json:"rows"`
	PropertyType string                   `json:"propertyType,omitempty"`
	Buckets      []models.Bucket          `json:"buckets,omitempty"`
}

// GetData returns the stored records of a location for one month
func (h *Handler) GetData(c *gin.Context) {
	city, tree, ok := h.city(c)
	if !ok {
		return
	}
	ym, ok := pathPeriod(c)
	if !ok {
		return
	}
	loc := c.Param("location")
	if !h.knownLocation(c, tree, loc) {
		return
	}

	out := PeriodData{City: city.ID, Location: loc, Year: ym.Year, Month: ym.Month, Data: make(map[string]*models.Stats)}
	found := false
	for _, pt := range city.PropertyTypes {
		p, err := h.store.GetPeriod(c.Request.Context(), models.PeriodKey{
			City: city.ID, Location: loc, PropertyType: pt, Year: ym.Year, Month: ym.Month,
		})
		if err != nil {
			h.respondError(c, err, "Failed to get data")
			return
		}
		if p == nil {
			out.Data[pt] = nil
			continue
		}
		s := p.Stats
		out.Data[pt] = &s
		found = true
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data for this period"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// PutData replaces the records of a location for one month. The body maps
// property types to statistics. Unless recompute=false is given, a
// recompute of the month is enqueued for the location.
func (h *Handler) PutData(c *gin.Context) {
	city, tree, ok := h.city(c)
	if !ok {
		return
	}
	ym, ok := pathPeriod(c)
	if !ok {
		return
	}
	loc := c.Param("location")
	if !h.knownLocation(c, tree, loc) {
		return
	}

	var body map[string]models.Stats
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No property types given"})
		return
	}
	pts := make([]string, 0, len(body))
	for pt := range body {
		if !city.HasPropertyType(pt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown property type " + strconv.Quote(pt)})
			return
		}
		pts = append(pts, pt)
	}
	sort.Strings(pts)

	out := PeriodData{City: city.ID, Location: loc, Year: ym.Year, Month: ym.Month, Data: make(map[string]*models.Stats)}
	for _, pt := range pts {
		s := body[pt]
		key := models.PeriodKey{City: city.ID, Location: loc, PropertyType: pt, Year: ym.Year, Month: ym.Month}
		if err := h.store.PutPeriod(c.Request.Context(), key, s); err != nil {
			h.respondError(c, err, "Failed to save data")
			return
		}
		out.Data[pt] = &s
	}

	if c.DefaultQuery("recompute", "true") != "false" {
		job := queue.NewJob(models.JobKindRecompute, city.ID, ym.Year, []int{ym.Month})
		job.Location = loc
		if err := h.queue.Push(job); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"city":     city.ID,
				"location": loc,
			}).Warn("Failed to enqueue recompute after data update")
		} else {
			out.JobID = job.ID
		}
	}
	c.JSON(http.StatusOK, out)
}

// GetDistribution returns the distribution of a month merged with the
// city's bucket ranges
func (h *Handler) GetDistribution(c *gin.Context) {
	city, _, ok := h.city(c)
	if !ok {
		return
	}
	ym, ok := pathPeriod(c)
	if !ok {
		return
	}

	rows, err := h.assembler.Distribution(c.Request.Context(), city.ID, ym)
	if err != nil {
		h.respondError(c, err, "Failed to get distribution")
		return
	}
	if rows == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No distribution for this period"})
		return
	}

	out := DistributionResponse{City: city.ID, Year: ym.Year, Month: ym.Month, Rows: rows}
	if pt := c.Query("propertyType"); pt != "" {
		if !city.HasPropertyType(pt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown property type " + strconv.Quote(pt)})
			return
		}
		out.PropertyType = pt
		out.Buckets = stats.Buckets(rows, pt)
	}
	c.JSON(http.StatusOK, out)
}

// PutDistribution replaces the distribution of a month and adds its
// boundaries to the city's ranges
func (h *Handler) PutDistribution(c *gin.Context) {
	city, _, ok := h.city(c)
	if !ok {
		return
	}
	ym, ok := pathPeriod(c)
	if !ok {
		return
	}

	var rows []models.DistributionRow
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seen := make(map[float64]bool, len(rows))
	for _, row := range rows {
		if seen[row.RangeFrom] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate rangeFrom " + strconv.FormatFloat(row.RangeFrom, 'f', -1, 64)})
			return
		}
		seen[row.RangeFrom] = true
	}

	ctx := c.Request.Context()
	if err := h.store.PutDistribution(ctx, city.ID, ym, rows); err != nil {
		h.respondError(c, err, "Failed to save distribution")
		return
	}

	stored, err := h.store.GetDistributionRanges(ctx, city.ID)
	if err != nil {
		h.respondError(c, err, "Failed to load distribution ranges")
		return
	}
	ranges := mergeRanges(stored, stats.RangesOf(rows))
	if len(ranges) != len(stored) {
		if err := h.store.PutDistributionRanges(ctx, city.ID, ranges); err != nil {
			h.respondError(c, err, "Failed to save distribution ranges")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"city": city.ID, "year": ym.Year, "month": ym.Month, "rows": len(rows), "ranges": ranges})
}

func mergeRanges(a, b []float64) []float64 {
	seen := make(map[float64]bool, len(a)+len(b))
	merged := make([]float64, 0, len(a)+len(b))
	for _, v := range append(append([]float64{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	sort.Float64s(merged)
	return merged
}

// GetLastAvailable returns the most recent month with data for a city
func (h *Handler) GetLastAvailable(c *gin.Context) {
	city, ok := h.cityOnly(c)
	if !ok {
		return
	}
	last, err := h.store.GetLastAvailable(c.Request.Context(), city.ID)
	if err != nil {
		h.respondError(c, err, "Failed to get last available month")
		return
	}
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (h *Handler) PutLastAvailable(c *gin.Context) {
	city, ok := h.cityOnly(c)
	if !ok {
		return
	}
	var ym models.YearMonth
	if err := c.ShouldBindJSON(&ym); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ym.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period " + ym.String()})
		return
	}
	if err := h.store.PutLastAvailable(c.Request.Context(), city.ID, ym); err != nil {
		h.respondError(c, err, "Failed to save last available month")
		return
	}
	c.JSON(http.StatusOK, ym)
}
