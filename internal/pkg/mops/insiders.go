package mops

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// SharePledging is one insider's pledging row: a director, supervisor
// or officer, possibly via spouse.
type SharePledging struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"` // ROC calendar year
	Month       int    `json:"month"`

	Title        string `json:"title"`
	Relationship string `json:"relationship"` // 本人 or 配偶
	Name         string `json:"name"`

	SharesAtElection *int64   `json:"shares_at_election"`
	CurrentShares    *int64   `json:"current_shares"`
	PledgedShares    *int64   `json:"pledged_shares"`
	PledgeRatio      *float64 `json:"pledge_ratio"` // %
}

// PledgingSummary aggregates pledging for the whole board.
type PledgingSummary struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`

	NonIndependentDirectorShares  *int64   `json:"non_independent_director_shares"`
	NonIndependentDirectorPledged *int64   `json:"non_independent_director_pledged"`
	NonIndependentDirectorRatio   *float64 `json:"non_independent_director_ratio"`

	IndependentDirectorShares  *int64   `json:"independent_director_shares"`
	IndependentDirectorPledged *int64   `json:"independent_director_pledged"`
	IndependentDirectorRatio   *float64 `json:"independent_director_ratio"`

	TotalShares      *int64   `json:"total_shares"`
	TotalPledged     *int64   `json:"total_pledged"`
	TotalPledgeRatio *float64 `json:"total_pledge_ratio"`
}

// PledgingResponse bundles the per-person details with the board-level
// summary.
type PledgingResponse struct {
	StockID     string           `json:"stock_id"`
	CompanyName string           `json:"company_name"`
	Year        int              `json:"year"`
	Month       int              `json:"month"`
	Summary     *PledgingSummary `json:"summary"`
	Details     []SharePledging  `json:"details"`
}

// GetSharePledging queries director and supervisor share pledging from
// ajax_stapap1 for one company and month.
func (c *Client) GetSharePledging(ctx context.Context, stockID string, year, month int, market string) (*PledgingResponse, error) {
	if market == "" {
		market = "sii"
	}

	form := url.Values{}
	form.Set("encodeURIComponent", "1")
	form.Set("step", "1")
	form.Set("firstin", "1")
	form.Set("off", "1")
	form.Set("TYPEK", market)
	form.Set("year", fmt.Sprint(year))
	form.Set("month", fmt.Sprintf("%02d", month))
	form.Set("co_id", stockID)

	log.Printf("fetching share pledging %s %d/%d", stockID, year, month)

	tables, err := c.FetchTables(ctx, "ajax_stapap1", form)
	if err != nil {
		return nil, fmt.Errorf("fetch pledging for %s: %w", stockID, err)
	}

	companyName := pledgingCompanyName(tables, stockID)

	return &PledgingResponse{
		StockID:     stockID,
		CompanyName: companyName,
		Year:        year,
		Month:       month,
		Summary:     parsePledgingSummary(tables, stockID, companyName, year, month),
		Details:     parsePledgingDetails(tables, stockID, companyName, year, month),
	}, nil
}

func pledgingCompanyName(tables []Table, stockID string) string {
	if len(tables) == 0 {
		return ""
	}
	cell := tables[0].Cell(0, 0)
	if strings.HasPrefix(cell, stockID) {
		return strings.TrimSpace(strings.TrimPrefix(cell, stockID))
	}
	return ""
}

func parsePledgingDetails(tables []Table, stockID, companyName string, year, month int) []SharePledging {
	var details []SharePledging

	for _, table := range tables {
		if len(table[0]) < 5 {
			continue
		}
		if !strings.Contains(table.Cell(0, 0), "職稱") && len(table) < 3 {
			continue
		}

		for _, row := range table {
			title := strings.TrimSpace(row[0])
			if title == "職稱" || strings.Contains(title, "持股") {
				continue
			}

			relationship := "本人"
			switch {
			case strings.Contains(title, "本人"):
				title = strings.ReplaceAll(title, "本人", "")
			case strings.Contains(title, "配偶"):
				relationship = "配偶"
				title = strings.ReplaceAll(title, "配偶", "")
			}

			var name string
			if len(row) > 1 {
				name = strings.TrimSpace(row[1])
			}
			if name == "" || name == "姓名" {
				continue
			}

			pledging := SharePledging{
				StockID:      stockID,
				CompanyName:  companyName,
				Year:         year,
				Month:        month,
				Title:        title,
				Relationship: relationship,
				Name:         name,
			}
			if len(row) > 2 {
				pledging.SharesAtElection = toInt64Ptr(row[2])
			}
			if len(row) > 3 {
				pledging.CurrentShares = toInt64Ptr(row[3])
			}
			if len(row) > 4 {
				pledging.PledgedShares = toInt64Ptr(row[4])
			}
			if len(row) > 5 {
				pledging.PledgeRatio = toFloat64Ptr(row[5])
			}

			details = append(details, pledging)
		}
	}

	return details
}

func parsePledgingSummary(tables []Table, stockID, companyName string, year, month int) *PledgingSummary {
	for _, table := range tables {
		if !table.Contains("全體董監持股合計") {
			continue
		}

		summary := &PledgingSummary{
			StockID:     stockID,
			CompanyName: companyName,
			Year:        year,
			Month:       month,
		}

		for _, row := range table {
			if len(row) < 2 {
				continue
			}
			label := row[0]

			// The 非獨立 labels contain the 獨立 ones as substrings, so
			// match them first.
			switch {
			case strings.Contains(label, "非獨立董事持股設質比例"):
				summary.NonIndependentDirectorRatio = toFloat64Ptr(row[1])
			case strings.Contains(label, "非獨立董事持股設質合計"):
				summary.NonIndependentDirectorPledged = toInt64Ptr(row[1])
			case strings.Contains(label, "非獨立董事持股合計"):
				summary.NonIndependentDirectorShares = toInt64Ptr(row[1])
			case strings.Contains(label, "獨立董事持股設質比例"):
				summary.IndependentDirectorRatio = toFloat64Ptr(row[1])
			case strings.Contains(label, "獨立董事持股設質合計"):
				summary.IndependentDirectorPledged = toInt64Ptr(row[1])
			case strings.Contains(label, "獨立董事持股合計"):
				summary.IndependentDirectorShares = toInt64Ptr(row[1])
			case strings.Contains(label, "全體董監持股設質比例"):
				summary.TotalPledgeRatio = toFloat64Ptr(row[1])
			case strings.Contains(label, "全體董監持股設質合計"):
				summary.TotalPledged = toInt64Ptr(row[1])
			case strings.Contains(label, "全體董監持股合計"):
				summary.TotalShares = toInt64Ptr(row[1])
			}
		}

		return summary
	}

	return nil
}
