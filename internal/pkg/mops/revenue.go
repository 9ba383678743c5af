package mops

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Markets MOPS publishes monthly revenue for.
var MarketTypes = map[string]string{
	"sii":  "上市",
	"otc":  "上櫃",
	"rotc": "興櫃",
	"pub":  "公開發行",
}

// MonthlyRevenue is one company's row from the monthly revenue summary
// page. Amounts are in thousands of TWD; rates are percentages.
type MonthlyRevenue struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"` // ROC calendar year
	Month       int    `json:"month"`

	Revenue          *int64 `json:"revenue"`
	RevenueLastMonth *int64 `json:"revenue_last_month"`
	RevenueLastYear  *int64 `json:"revenue_last_year"`

	MoMChange *float64 `json:"mom_change"`
	YoYChange *float64 `json:"yoy_change"`

	AccumulatedRevenue  *int64   `json:"accumulated_revenue"`
	AccumulatedLastYear *int64   `json:"accumulated_last_year"`
	AccumulatedYoY      *float64 `json:"accumulated_yoy_change"`

	Comment string `json:"comment,omitempty"`
}

// GetMarketRevenue scrapes the monthly revenue summary for a whole
// market. The pages are static Big5 HTML, one table per industry, with
// the last row of each table being an industry total.
func (c *Client) GetMarketRevenue(ctx context.Context, year, month int, market string, foreign bool) ([]MonthlyRevenue, error) {
	if _, ok := MarketTypes[market]; !ok {
		return nil, fmt.Errorf("mops: invalid market %q", market)
	}

	companyType := 0
	if foreign {
		companyType = 1
	}

	pageURL := fmt.Sprintf("%s/nas/t21/%s/t21sc03_%d_%d_%d.html", c.baseURL, market, year, month, companyType)
	log.Printf("fetching monthly revenue %d/%d for %s", year, month, market)

	tables, err := c.FetchStaticTables(ctx, pageURL, true)
	if err != nil {
		return nil, fmt.Errorf("fetch revenue %d/%d: %w", year, month, err)
	}

	var revenues []MonthlyRevenue
	for _, table := range tables {
		if len(table) < 2 || len(table[0]) < 5 {
			continue
		}
		revenues = append(revenues, parseRevenueTable(table, year, month)...)
	}

	log.Printf("parsed %d companies from %s %d/%d", len(revenues), market, year, month)
	return revenues, nil
}

// GetSingleRevenue returns one company's row from the market summary,
// or nil when the company is not listed there.
func (c *Client) GetSingleRevenue(ctx context.Context, stockID string, year, month int, market string) (*MonthlyRevenue, error) {
	revenues, err := c.GetMarketRevenue(ctx, year, month, market, false)
	if err != nil {
		return nil, err
	}

	for i := range revenues {
		if revenues[i].StockID == stockID {
			return &revenues[i], nil
		}
	}
	return nil, nil
}

// parseRevenueTable reads one industry table. Column layout:
// 公司代號 | 公司名稱 | 當月營收 | 上月營收 | 去年當月營收 | 上月比較增減(%) |
// 去年同月增減(%) | 當月累計營收 | 去年累計營收 | 前期比較增減(%) | 備註
func parseRevenueTable(table Table, year, month int) []MonthlyRevenue {
	var revenues []MonthlyRevenue

	for _, row := range table {
		stockID := strings.TrimSpace(row[0])
		if len(stockID) < 4 || !leadingDigit(stockID) {
			continue
		}

		rev := MonthlyRevenue{
			StockID: stockID,
			Year:    year,
			Month:   month,
		}
		if len(row) > 1 {
			rev.CompanyName = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			rev.Revenue = toInt64Ptr(row[2])
		}
		if len(row) > 3 {
			rev.RevenueLastMonth = toInt64Ptr(row[3])
		}
		if len(row) > 4 {
			rev.RevenueLastYear = toInt64Ptr(row[4])
		}
		if len(row) > 5 {
			rev.MoMChange = toFloat64Ptr(row[5])
		}
		if len(row) > 6 {
			rev.YoYChange = toFloat64Ptr(row[6])
		}
		if len(row) > 7 {
			rev.AccumulatedRevenue = toInt64Ptr(row[7])
		}
		if len(row) > 8 {
			rev.AccumulatedLastYear = toInt64Ptr(row[8])
		}
		if len(row) > 9 {
			rev.AccumulatedYoY = toFloat64Ptr(row[9])
		}
		if len(row) > 10 && !isAbsent(strings.TrimSpace(row[10])) {
			rev.Comment = strings.TrimSpace(row[10])
		}

		revenues = append(revenues, rev)
	}

	return revenues
}
