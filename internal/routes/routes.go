package routes

import (
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mops/internal/config"
	"mops/internal/controllers"
	"mops/internal/pkg/financial"
	"mops/internal/pkg/mops"
	"mops/internal/pkg/openai"
	"mops/internal/pkg/xbrl"
	"mops/internal/repository"
)

// SetupRouter initializes all services, controllers, and API routes.
// db may be nil; the service then runs without the statement cache.
func SetupRouter(db *gorm.DB, cfg *config.Config, client *mops.Client) *gin.Engine {
	var repo *repository.ReportRepository
	if db != nil {
		repo = repository.NewReportRepository(db)
	}

	service := financial.NewService(client, xbrl.NewParser(), repo)

	analyzer, err := openai.NewStatementAnalyzerFromEnv()
	if err != nil {
		log.Printf("assessment endpoint disabled: %v", err)
	}

	financialController := controllers.FinancialController{Service: service, Analyzer: analyzer}
	marketController := controllers.MarketController{Client: client}

	// Set up Gin router
	router := gin.Default()

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	// Group API routes under /api/v1
	api := router.Group("/api/v1")
	{
		financials := api.Group("/financials")
		{
			// GET /api/v1/financials/:stock_id/balance-sheet?year=113&quarter=2
			// Also income-statement, cash-flow, equity-statement and the
			// flat "simplified" view.
			financials.GET("/:stock_id/:report", func(c *gin.Context) {
				if c.Param("report") == "simplified" {
					financialController.GetSimplified(c)
					return
				}
				financialController.GetStatement(c)
			})
		}

		analysis := api.Group("/analysis")
		{
			// GET /api/v1/analysis/roe?stocks=2330,2317&year=113&quarter=3
			analysis.GET("/roe", financialController.GetROE)

			// GET /api/v1/analysis/assessment?stock_id=2330&year=113
			analysis.GET("/assessment", financialController.GetAssessment)
		}

		// GET /api/v1/revenue?year=113&month=7&market=sii
		api.GET("/revenue", marketController.GetRevenue)

		// GET /api/v1/dividends/:stock_id?year_start=113
		api.GET("/dividends/:stock_id", marketController.GetDividends)

		// GET /api/v1/insiders/:stock_id/pledging?year=113&month=7
		api.GET("/insiders/:stock_id/pledging", marketController.GetPledging)

		// GET /api/v1/disclosure/:stock_id?year=113&month=7
		api.GET("/disclosure/:stock_id", marketController.GetDisclosure)
	}

	return router
}
