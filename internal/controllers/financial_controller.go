package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mops/internal/pkg/financial"
	"mops/internal/pkg/mops"
	"mops/internal/pkg/openai"
	"mops/internal/pkg/statement"
)

// FinancialController serves assembled statements and derived metrics.
// Analyzer is nil when no OpenAI key is configured; the assessment
// endpoint then returns 503.
type FinancialController struct {
	Service  *financial.Service
	Analyzer *openai.StatementAnalyzer
}

// Route suffix → report type.
var reportTypesByPath = map[string]string{
	"balance-sheet":    statement.BalanceSheet,
	"income-statement": statement.IncomeStatement,
	"cash-flow":        statement.CashFlow,
	"equity-statement": statement.EquityStatement,
}

// GetStatement handles GET /financials/:stock_id/:report. Query params:
// year (ROC, required), quarter (default annual), format (tree|flat),
// no_cache.
func (fc *FinancialController) GetStatement(c *gin.Context) {
	stockID := c.Param("stock_id")

	reportType, ok := reportTypesByPath[c.Param("report")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown report type"})
		return
	}

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	quarter := getIntWithDefault(c, "quarter", 4)
	if quarter < 1 || quarter > 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quarter must be 1-4"})
		return
	}

	useCache := c.Query("no_cache") == ""

	var stmt *statement.FinancialStatement
	if c.Query("format") == "flat" {
		stmt, err = fc.Service.GetFlatStatement(c.Request.Context(), stockID, year, quarter, reportType, useCache)
	} else {
		stmt, err = fc.Service.GetFinancialStatement(c.Request.Context(), stockID, year, quarter, reportType, useCache)
	}
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, stmt)
}

// GetSimplified handles GET /financials/:stock_id/simplified.
func (fc *FinancialController) GetSimplified(c *gin.Context) {
	stockID := c.Param("stock_id")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	quarter := getIntWithDefault(c, "quarter", 4)

	statementType := c.Query("type")
	if statementType == "" {
		statementType = statement.IncomeStatement
	}
	if !statement.IsValidReportType(statementType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown statement type"})
		return
	}

	simplified, err := fc.Service.GetSimplifiedStatement(c.Request.Context(), stockID, year, quarter, statementType)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, simplified)
}

// GetROE handles GET /analysis/roe?stocks=2330,2317&year=113&quarter=3&quarters=8.
func (fc *FinancialController) GetROE(c *gin.Context) {
	stocksParam := c.Query("stocks")
	if stocksParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stocks is required"})
		return
	}
	stocks := strings.Split(stocksParam, ",")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	quarter := getIntWithDefault(c, "quarter", 4)
	quarters := getIntWithDefault(c, "quarters", 8)

	var metrics []*financial.CompanyMetric
	for _, stockID := range stocks {
		stockID = strings.TrimSpace(stockID)
		if stockID == "" {
			continue
		}

		metric, err := fc.Service.GetROESeries(c.Request.Context(), stockID, year, quarter, quarters)
		if err != nil {
			log.Printf("failed to build ROE series for %s: %v", stockID, err)
			continue
		}
		metrics = append(metrics, metric)
	}

	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

// GetAssessment handles GET /analysis/assessment?stock_id=2330&year=113.
// It feeds the simplified statement and the ROE series to the model.
func (fc *FinancialController) GetAssessment(c *gin.Context) {
	if fc.Analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analysis is not configured"})
		return
	}

	stockID := c.Query("stock_id")
	if stockID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock_id is required"})
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	quarter := getIntWithDefault(c, "quarter", 4)
	quarters := getIntWithDefault(c, "quarters", 4)

	simplified, err := fc.Service.GetSimplifiedStatement(c.Request.Context(), stockID, year, quarter, statement.IncomeStatement)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	// The series is optional context, a failure only narrows the input.
	roe, err := fc.Service.GetROESeries(c.Request.Context(), stockID, year, quarter, quarters)
	if err != nil {
		log.Printf("failed to build ROE series for %s: %v", stockID, err)
		roe = nil
	}

	assessment, err := fc.Analyzer.AnalyzeStatement(c.Request.Context(), simplified, roe)
	if err != nil {
		log.Printf("failed to analyze statement for %s: %v", stockID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, assessment)
}

func respondFetchError(c *gin.Context, err error) {
	if errors.Is(err, mops.ErrDataNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data found for the query"})
		return
	}

	log.Printf("failed to fetch statement: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
}

func getIntWithDefault(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("failed to parse %s: %v, using default value: %d", name, err, defaultValue)
		return defaultValue
	}
	return value
}
