package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mops/internal/pkg/mops"
)

// MarketController serves the MOPS scraper data: monthly revenue,
// dividends, insider pledging and lending/guarantee disclosure.
type MarketController struct {
	Client *mops.Client
}

// GetRevenue handles GET /revenue?year=113&month=7&market=sii.
func (mc *MarketController) GetRevenue(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
		return
	}

	market := c.Query("market")
	if market == "" {
		market = "sii"
	}

	if stockID := c.Query("stock_id"); stockID != "" {
		revenue, err := mc.Client.GetSingleRevenue(c.Request.Context(), stockID, year, month, market)
		if err != nil {
			respondFetchError(c, err)
			return
		}
		if revenue == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No data found for the query"})
			return
		}
		c.JSON(http.StatusOK, revenue)
		return
	}

	revenues, err := mc.Client.GetMarketRevenue(c.Request.Context(), year, month, market, false)
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"year":     year,
		"month":    month,
		"market":   market,
		"count":    len(revenues),
		"revenues": revenues,
	})
}

// GetDividends handles GET /dividends/:stock_id?year_start=&year_end=.
func (mc *MarketController) GetDividends(c *gin.Context) {
	stockID := c.Param("stock_id")

	yearStart, err := strconv.Atoi(c.Query("year_start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year_start is required (ROC calendar)"})
		return
	}
	yearEnd := getIntWithDefault(c, "year_end", yearStart)

	resp, err := mc.Client.GetDividends(c.Request.Context(), stockID, yearStart, yearEnd, getIntWithDefault(c, "query_type", 2))
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPledging handles GET /insiders/:stock_id/pledging?year=&month=.
func (mc *MarketController) GetPledging(c *gin.Context) {
	stockID := c.Param("stock_id")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
		return
	}

	resp, err := mc.Client.GetSharePledging(c.Request.Context(), stockID, year, month, c.Query("market"))
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDisclosure handles GET /disclosure/:stock_id?year=&month=.
func (mc *MarketController) GetDisclosure(c *gin.Context) {
	stockID := c.Param("stock_id")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required (ROC calendar)"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
		return
	}

	resp, err := mc.Client.GetDisclosure(c.Request.Context(), stockID, year, month, c.Query("market"))
	if err != nil {
		respondFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
