package financial

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"mops/internal/pkg/statement"
)

// MetricPoint is one quarter's value of a metric.
type MetricPoint struct {
	Year    int     `json:"year"` // ROC calendar year
	Quarter int     `json:"quarter"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// CompanyMetric is a metric series for one company.
type CompanyMetric struct {
	StockID    string        `json:"stock_id"`
	MetricName string        `json:"metric_name"`
	Data       []MetricPoint `json:"data"`
}

// Concept lookups run through these keys in priority order; the English
// ones also match as substrings since the taxonomy suffixes concept
// names by statement variant.
var (
	netIncomeKeys = []string{
		"ProfitLossAttributableToOwnersOfParent",
		"ProfitLoss",
		"本期淨利歸屬於母公司業主",
		"本期淨利",
	}
	equityKeys = []string{
		"EquityAttributableToOwnersOfParent",
		"Equity",
		"歸屬於母公司業主之權益",
		"權益總計",
	}
)

// GetROESeries computes quarterly return on equity, walking backwards
// from the given period. Quarters whose filings are missing or lack the
// needed concepts are dropped from the series.
func (s *Service) GetROESeries(ctx context.Context, stockID string, endYear, endQuarter, quarters int) (*CompanyMetric, error) {
	type period struct{ year, quarter int }

	periods := make([]period, 0, quarters)
	y, q := endYear, endQuarter
	for i := 0; i < quarters; i++ {
		periods = append(periods, period{y, q})
		q--
		if q < 1 {
			q = 4
			y--
		}
	}
	// walk produced newest first, series reads oldest first
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}

	log.Printf("calculating ROE for %s over %d periods", stockID, len(periods))

	metric := &CompanyMetric{StockID: stockID, MetricName: "ROE"}
	for _, p := range periods {
		roe, ok := s.calculateROE(ctx, stockID, p.year, p.quarter)
		if !ok {
			continue
		}
		metric.Data = append(metric.Data, MetricPoint{
			Year:    p.year,
			Quarter: p.quarter,
			Value:   roe,
			Unit:    "%",
		})
	}
	return metric, nil
}

func (s *Service) calculateROE(ctx context.Context, stockID string, year, quarter int) (float64, bool) {
	incomeStmt, err := s.GetFlatStatement(ctx, stockID, year, quarter, statement.IncomeStatement, true)
	if err != nil {
		log.Printf("ROE %s %dQ%d: income statement unavailable: %v", stockID, year, quarter, err)
		return 0, false
	}

	balanceStmt, err := s.GetFlatStatement(ctx, stockID, year, quarter, statement.BalanceSheet, true)
	if err != nil {
		log.Printf("ROE %s %dQ%d: balance sheet unavailable: %v", stockID, year, quarter, err)
		return 0, false
	}

	netIncome := findValue(incomeStmt.Items, netIncomeKeys)
	equity := findValue(balanceStmt.Items, equityKeys)
	if netIncome == nil || equity == nil || equity.IsZero() {
		return 0, false
	}

	roe := netIncome.Div(*equity).Mul(decimal.NewFromInt(100)).Round(2)
	return roe.InexactFloat64(), true
}

// findValue searches a flat item list by the given keys in priority
// order: exact concept match, exact label match, then substring match on
// the concept for ASCII keys only, so Chinese labels never fuzz.
func findValue(items []*statement.FinancialItem, keys []string) *decimal.Decimal {
	byConcept := make(map[string]*decimal.Decimal)
	byLabel := make(map[string]*decimal.Decimal)
	for _, item := range items {
		if item.Value == nil {
			continue
		}
		if _, ok := byConcept[item.AccountCode]; !ok {
			byConcept[item.AccountCode] = item.Value
		}
		if _, ok := byLabel[item.AccountName]; !ok {
			byLabel[item.AccountName] = item.Value
		}
	}

	for _, key := range keys {
		if value, ok := byConcept[key]; ok {
			return value
		}
		if value, ok := byLabel[key]; ok {
			return value
		}

		if !isASCII(key) {
			continue
		}
		for _, item := range items {
			if item.Value != nil && strings.Contains(item.AccountCode, key) {
				return item.Value
			}
		}
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
