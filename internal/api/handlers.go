package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketstats/server/config"
	"marketstats/server/internal/geometry"
	"marketstats/server/internal/importer"
	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/queue"
	"marketstats/server/internal/report"
)

// Store is the storage surface used by the HTTP handlers.
type Store interface {
	report.Store
	PutPeriod(ctx context.Context, key models.PeriodKey, s models.Stats) error
	PutDistribution(ctx context.Context, city string, ym models.YearMonth, rows []models.DistributionRow) error
	PutDistributionRanges(ctx context.Context, city string, ranges []float64) error
	PutLastAvailable(ctx context.Context, city string, ym models.YearMonth) error
}

// JobPusher accepts recompute jobs
type JobPusher interface {
	Push(job *models.RecomputeJob) error
}

type Handler struct {
	store     Store
	registry  *location.Registry
	assembler *report.Assembler
	importer  *importer.Importer
	queue     JobPusher
	strict    bool
	logger    *logrus.Logger
}

// CityInfo is one entry of the city listing.
type CityInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PropertyTypes []string `json:"propertyTypes"`
	Available     bool     `json:"available"`
}

func NewHandler(store Store, registry *location.Registry, assembler *report.Assembler, imp *importer.Importer, q JobPusher, strict bool, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{
		store:     store,
		registry:  registry,
		assembler: assembler,
		importer:  imp,
		queue:     q,
		strict:    strict,
		logger:    logger,
	}
}

// respondError maps engine errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, config.ErrUnknownCity),
		errors.Is(err, location.ErrHierarchyMismatch),
		errors.Is(err, report.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, importer.ErrInvalidWorkbook):
		status = http.StatusBadRequest
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"city":   c.Param("city"),
			"method": c.Request.Method,
		}).Error(message)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// city resolves the :city parameter and its hierarchy. It writes the error
// response and returns false when either is missing.
func (h *Handler) city(c *gin.Context) (config.City, *location.Tree, bool) {
	city, ok := h.cityOnly(c)
	if !ok {
		return config.City{}, nil, false
	}
	tree, ok := h.registry.Tree(city.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no hierarchy loaded for %s", city.ID)})
		return config.City{}, nil, false
	}
	return city, tree, true
}

// cityOnly resolves the :city parameter for routes that need no hierarchy.
func (h *Handler) cityOnly(c *gin.Context) (config.City, bool) {
	city, err := config.GetCityByID(c.Param("city"))
	if err != nil {
		h.respondError(c, err, "")
		return config.City{}, false
	}
	return city, true
}

// knownLocation rejects locations outside the hierarchy in strict mode.
func (h *Handler) knownLocation(c *gin.Context, tree *location.Tree, name string) bool {
	if h.strict && !tree.Contains(name) {
		h.respondError(c, fmt.Errorf("%w: %s", location.ErrHierarchyMismatch, name), "")
		return false
	}
	return true
}

// parsePeriod reads year and month from the given sources. Both empty
// means the zero period.
func parsePeriod(year, month string) (models.YearMonth, error) {
	if year == "" && month == "" {
		return models.YearMonth{}, nil
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("invalid year %q", year)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("invalid month %q", month)
	}
	ym := models.YearMonth{Year: y, Month: m}
	if !ym.Valid() {
		return models.YearMonth{}, fmt.Errorf("invalid period %d-%d", y, m)
	}
	return ym, nil
}

// pathPeriod parses the required :year and :month path parameters.
func pathPeriod(c *gin.Context) (models.YearMonth, bool) {
	ym, err := parsePeriod(c.Param("year"), c.Param("month"))
	if err == nil && ym == (models.YearMonth{}) {
		err = errors.New("year and month are required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.YearMonth{}, false
	}
	return ym, true
}

func (h *Handler) ListCities(c *gin.Context) {
	cities := make([]CityInfo, 0, len(config.SupportedCities))
	for _, city := range config.SupportedCities {
		_, ok := h.registry.Tree(city.ID)
		cities = append(cities, CityInfo{
			ID:            city.ID,
			Name:          city.Name,
			PropertyTypes: city.PropertyTypes,
			Available:     ok,
		})
	}
	c.JSON(http.StatusOK, cities)
}

// GetStructure returns the location hierarchy of a city
func (h *Handler) GetStructure(c *gin.Context) {
	_, tree, ok := h.city(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tree.Root)
}

// GetStructureGeoJSON returns location centers and hulls as GeoJSON
func (h *Handler) GetStructureGeoJSON(c *gin.Context) {
	_, tree, ok := h.city(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, geometry.Locations(tree))
}

// GetReport returns the month and year rows of a location. The period
// defaults to the last available month.
func (h *Handler) GetReport(c *gin.Context) {
	city, tree, ok := h.city(c)
	if !ok {
		return
	}
	period, err := parsePeriod(c.Query("year"), c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.assembler.Build(c.Request.Context(), report.Request{
		City:          city.ID,
		Tree:          tree,
		PropertyTypes: city.PropertyTypes,
		Location:      c.Param("location"),
		Period:        period,
	})
	if err != nil {
		h.respondError(c, err, "Failed to build report")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GetSummary returns the market summary of a location
func (h *Handler) GetSummary(c *gin.Context) {
	city, tree, ok := h.city(c)
	if !ok {
		return
	}
	period, err := parsePeriod(c.Query("year"), c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sum, err := h.assembler.Summary(c.Request.Context(), report.Request{
		City:          city.ID,
		Tree:          tree,
		PropertyTypes: city.PropertyTypes,
		Location:      c.Param("location"),
		Period:        period,
	})
	if err != nil {
		h.respondError(c, err, "Failed to build summary")
		return
	}
	c.JSON(http.StatusOK, sum)
}
