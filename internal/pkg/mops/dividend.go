package mops

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
)

// DividendRecord is one distribution row from ajax_t05st09_2, the
// endpoint that also covers quarterly payers like TSMC.
type DividendRecord struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"` // ROC calendar year, the period the dividend belongs to
	Quarter     int    `json:"quarter,omitempty"`

	BoardResolutionDate string `json:"board_resolution_date,omitempty"`

	CashDividend  *float64 `json:"cash_dividend"`  // TWD per share
	StockDividend *float64 `json:"stock_dividend"` // shares per share
	TotalDividend float64  `json:"total_dividend"`
}

// DividendResponse is the full query result for one company.
type DividendResponse struct {
	StockID     string           `json:"stock_id"`
	CompanyName string           `json:"company_name"`
	YearStart   int              `json:"year_start"`
	YearEnd     int              `json:"year_end"`
	Count       int              `json:"count"`
	Records     []DividendRecord `json:"records"`
}

// DividendSummary totals one year's distributions.
type DividendSummary struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"`

	TotalCashDividend  float64 `json:"total_cash_dividend"`
	TotalStockDividend float64 `json:"total_stock_dividend"`
	TotalDividend      float64 `json:"total_dividend"`

	QuarterlyDividends []DividendRecord `json:"quarterly_dividends"`
}

// GetDividends queries dividend distributions for a range of ROC years.
// queryType 1 keys on the board resolution year, 2 on the year the
// dividend belongs to.
func (c *Client) GetDividends(ctx context.Context, stockID string, yearStart, yearEnd, queryType int) (*DividendResponse, error) {
	if yearEnd == 0 {
		yearEnd = yearStart
	}
	if queryType == 0 {
		queryType = 2
	}

	form := url.Values{}
	form.Set("encodeURIComponent", "1")
	form.Set("step", "1")
	form.Set("firstin", "1")
	form.Set("off", "1")
	form.Set("isnew", "false")
	form.Set("co_id", stockID)
	form.Set("date1", fmt.Sprint(yearStart))
	form.Set("date2", fmt.Sprint(yearEnd))
	form.Set("qryType", fmt.Sprint(queryType))

	log.Printf("fetching dividends %s %d-%d", stockID, yearStart, yearEnd)

	tables, err := c.FetchTables(ctx, "ajax_t05st09_2", form)
	if err != nil {
		return nil, fmt.Errorf("fetch dividends for %s: %w", stockID, err)
	}

	companyName := companyNameFromTables(tables, stockID)
	records := parseDividendRecords(tables, stockID, companyName)

	return &DividendResponse{
		StockID:     stockID,
		CompanyName: companyName,
		YearStart:   yearStart,
		YearEnd:     yearEnd,
		Count:       len(records),
		Records:     records,
	}, nil
}

// GetAnnualDividendSummary totals one year's quarterly distributions.
func (c *Client) GetAnnualDividendSummary(ctx context.Context, stockID string, year int) (*DividendSummary, error) {
	resp, err := c.GetDividends(ctx, stockID, year, year, 0)
	if err != nil {
		return nil, err
	}

	var totalCash, totalStock float64
	for _, r := range resp.Records {
		if r.CashDividend != nil {
			totalCash += *r.CashDividend
		}
		if r.StockDividend != nil {
			totalStock += *r.StockDividend
		}
	}

	return &DividendSummary{
		StockID:            stockID,
		CompanyName:        resp.CompanyName,
		Year:               year,
		TotalCashDividend:  round2(totalCash),
		TotalStockDividend: round2(totalStock),
		TotalDividend:      round2(totalCash + totalStock),
		QuarterlyDividends: resp.Records,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// companyNameFromTables finds the header cell shaped like
// "2330台灣積體電路製造股份有限公司" and strips the code.
func companyNameFromTables(tables []Table, stockID string) string {
	for _, table := range tables {
		cell := table.Cell(0, 0)
		if strings.Contains(cell, stockID) {
			return strings.TrimSpace(strings.ReplaceAll(cell, stockID, ""))
		}
	}
	return ""
}

// parseDividendRecords reads the distribution table. Columns of note:
// 0 decision level, 1 period (e.g. "113年第2季"), 2 board resolution
// date, 6 cash dividend per share, 7 stock dividend per share.
func parseDividendRecords(tables []Table, stockID, companyName string) []DividendRecord {
	var records []DividendRecord

	for _, table := range tables {
		if len(table) < 2 || len(table[0]) < 3 {
			continue
		}
		if !table.Contains("股利所屬期間") && !table.Contains("現金股利") {
			continue
		}

		for _, row := range table {
			firstCol := strings.TrimSpace(row[0])
			if firstCol == "" || strings.Contains(firstCol, "股利") || strings.Contains(firstCol, "期間") {
				continue
			}

			var period string
			if len(row) > 1 {
				period = row[1]
			}
			year := rocYearFrom(period)
			if year == 0 {
				continue
			}

			record := DividendRecord{
				StockID:     stockID,
				CompanyName: companyName,
				Year:        year,
				Quarter:     quarterFromPeriod(period),
			}

			if len(row) > 2 && !isAbsent(strings.TrimSpace(row[2])) {
				record.BoardResolutionDate = strings.TrimSpace(row[2])
			}
			if len(row) > 6 {
				record.CashDividend = toFloat64Ptr(row[6])
			}
			if len(row) > 7 {
				record.StockDividend = toFloat64Ptr(row[7])
			}

			var total float64
			if record.CashDividend != nil {
				total += *record.CashDividend
			}
			if record.StockDividend != nil {
				total += *record.StockDividend
			}
			record.TotalDividend = total

			records = append(records, record)
		}
	}

	return records
}
