package api

import (
	"github.com/gin-gonic/gin"

	"marketstats/server/internal/metrics"
)

func SetupRoutes(router *gin.Engine, handler *Handler, m *metrics.Metrics) {
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	{
		api.GET("/cities", handler.ListCities)

		city := api.Group("/cities/:city")
		city.GET("/structure", handler.GetStructure)
		city.GET("/structure.geojson", handler.GetStructureGeoJSON)
		city.GET("/reports/:location", handler.GetReport)
		city.GET("/summary/:location", handler.GetSummary)
		city.GET("/data/:location/:year/:month", handler.GetData)
		city.PUT("/data/:location/:year/:month", handler.PutData)
		city.GET("/distribution/:year/:month", handler.GetDistribution)
		city.PUT("/distribution/:year/:month", handler.PutDistribution)
		city.GET("/last-available", handler.GetLastAvailable)
		city.PUT("/last-available", handler.PutLastAvailable)
		city.POST("/import", handler.ImportWorkbook)
		city.POST("/recompute", handler.Recompute)
	}
}
