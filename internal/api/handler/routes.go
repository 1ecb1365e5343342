package handler

import (
	"time"

	"live-tick-excel/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitRoutes registers the export endpoints. The CSV path is the one a
// spreadsheet's "from web" query polls.
func (hd *Handler) InitRoutes(timeout time.Duration, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Logger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.Error())
	r.Use(middleware.Timeout(timeout))

	r.GET("/live_prices.csv", hd.GetLivePricesCSV)
	r.GET("/live_prices.xlsx", hd.GetLivePricesXLSX)
	r.GET("/health", hd.GetHealth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/snapshot", hd.GetSnapshot)
		v1.GET("/health", hd.GetHealth)
	}
	return r
}
