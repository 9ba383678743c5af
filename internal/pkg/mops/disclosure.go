package mops

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
)

// FundsLending is one 資金貸放 row, either for the parent company or its
// subsidiaries as a group. Amounts are in thousands of TWD.
type FundsLending struct {
	Entity        string `json:"entity"` // 本公司 or 子公司
	HasBalance    bool   `json:"has_balance"`
	CurrentMonth  *int64 `json:"current_month"`
	PreviousMonth *int64 `json:"previous_month"`
	MaxLimit      *int64 `json:"max_limit"`
}

// EndorsementGuarantee is one 背書保證 row.
type EndorsementGuarantee struct {
	Entity             string `json:"entity"`
	HasBalance         bool   `json:"has_balance"`
	MonthlyChange      *int64 `json:"monthly_change"`
	AccumulatedBalance *int64 `json:"accumulated_balance"`
	MaxLimit           *int64 `json:"max_limit"`
}

// CrossCompanyGuarantee covers guarantees between the parent and its
// subsidiaries.
type CrossCompanyGuarantee struct {
	ParentToSubsidiary *int64 `json:"parent_to_subsidiary"`
	SubsidiaryToParent *int64 `json:"subsidiary_to_parent"`
}

// ChinaGuarantee is one 對大陸地區背書保證 row.
type ChinaGuarantee struct {
	Entity             string `json:"entity"`
	HasBalance         bool   `json:"has_balance"`
	MonthlyChange      *int64 `json:"monthly_change"`
	AccumulatedBalance *int64 `json:"accumulated_balance"`
}

// DisclosureResponse is the monthly lending and guarantee disclosure
// for one company.
type DisclosureResponse struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"` // ROC calendar year
	Month       int    `json:"month"`

	FundsLending         []FundsLending         `json:"funds_lending"`
	EndorsementGuarantee []EndorsementGuarantee `json:"endorsement_guarantee"`
	CrossCompany         *CrossCompanyGuarantee `json:"cross_company"`
	ChinaGuarantee       []ChinaGuarantee       `json:"china_guarantee"`
}

// The header reads like "本資料由　(上市公司) 鴻海　公司提供".
var reDisclosureCompany = regexp.MustCompile(`\)\s*(.+?)\s*公司`)

// GetDisclosure queries the monthly funds lending and endorsement
// guarantee disclosure from ajax_t05st11.
func (c *Client) GetDisclosure(ctx context.Context, stockID string, year, month int, market string) (*DisclosureResponse, error) {
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
	form.Set("month", fmt.Sprint(month))
	form.Set("co_id", stockID)

	log.Printf("fetching disclosure %s %d/%d", stockID, year, month)

	tables, err := c.FetchTables(ctx, "ajax_t05st11", form)
	if err != nil {
		return nil, fmt.Errorf("fetch disclosure for %s: %w", stockID, err)
	}

	resp := &DisclosureResponse{
		StockID:              stockID,
		CompanyName:          disclosureCompanyName(tables),
		Year:                 year,
		Month:                month,
		FundsLending:         parseFundsLending(tables),
		EndorsementGuarantee: parseEndorsement(tables),
		CrossCompany:         parseCrossCompany(tables),
		ChinaGuarantee:       parseChinaGuarantee(tables),
	}

	log.Printf("parsed disclosure for %s: %d lending, %d guarantee",
		stockID, len(resp.FundsLending), len(resp.EndorsementGuarantee))
	return resp, nil
}

func disclosureCompanyName(tables []Table) string {
	for _, table := range tables {
		cell := table.Cell(0, 0)
		if !strings.Contains(cell, "公司") {
			continue
		}
		if match := reDisclosureCompany.FindStringSubmatch(cell); match != nil {
			return match[1]
		}
	}
	return ""
}

func parseFundsLending(tables []Table) []FundsLending {
	var results []FundsLending

	for _, table := range tables {
		if !table.Contains("資金貸放餘額") {
			continue
		}

		for _, row := range table {
			firstCol := row[0]
			if !strings.Contains(firstCol, "資金貸放餘額") {
				continue
			}

			lending := FundsLending{
				Entity:     entityFrom(firstCol),
				HasBalance: strings.Contains(firstCol, "有"),
			}
			if len(row) > 1 {
				lending.CurrentMonth = toInt64Ptr(row[1])
			}
			if len(row) > 2 {
				lending.PreviousMonth = toInt64Ptr(row[2])
			}
			if len(row) > 3 {
				lending.MaxLimit = toInt64Ptr(row[3])
			}

			results = append(results, lending)
		}
	}

	return results
}

func parseEndorsement(tables []Table) []EndorsementGuarantee {
	var results []EndorsementGuarantee

	for _, table := range tables {
		if !table.Contains("背書保證資訊") || table.Contains("大陸") || table.Contains("子公司間") {
			continue
		}

		for _, row := range table {
			firstCol := row[0]
			if !strings.Contains(firstCol, "背書保證資訊") {
				continue
			}

			guarantee := EndorsementGuarantee{
				Entity:     entityFrom(firstCol),
				HasBalance: strings.Contains(firstCol, "有"),
			}
			if len(row) > 1 {
				guarantee.MonthlyChange = toInt64Ptr(row[1])
			}
			if len(row) > 2 {
				guarantee.AccumulatedBalance = toInt64Ptr(row[2])
			}
			if len(row) > 3 {
				guarantee.MaxLimit = toInt64Ptr(row[3])
			}

			results = append(results, guarantee)
		}
	}

	return results
}

func parseCrossCompany(tables []Table) *CrossCompanyGuarantee {
	for _, table := range tables {
		if !table.Contains("本公司與子公司間") {
			continue
		}

		var parentToSub, subToParent *int64
		for _, row := range table {
			if len(row) < 2 {
				continue
			}
			switch {
			case strings.Contains(row[0], "本公司對子公司"):
				parentToSub = toInt64Ptr(row[1])
			case strings.Contains(row[0], "子公司對本公司"):
				subToParent = toInt64Ptr(row[1])
			}
		}

		if parentToSub != nil || subToParent != nil {
			return &CrossCompanyGuarantee{
				ParentToSubsidiary: parentToSub,
				SubsidiaryToParent: subToParent,
			}
		}
	}

	return nil
}

func parseChinaGuarantee(tables []Table) []ChinaGuarantee {
	var results []ChinaGuarantee

	for _, table := range tables {
		if !table.Contains("對大陸地區") {
			continue
		}

		for _, row := range table {
			firstCol := row[0]
			if !strings.Contains(firstCol, "大陸地區") {
				continue
			}

			guarantee := ChinaGuarantee{
				Entity:     entityFrom(firstCol),
				HasBalance: strings.Contains(firstCol, "有"),
			}
			if len(row) > 1 {
				guarantee.MonthlyChange = toInt64Ptr(row[1])
			}
			if len(row) > 2 {
				guarantee.AccumulatedBalance = toInt64Ptr(row[2])
			}

			results = append(results, guarantee)
		}
	}

	return results
}

func entityFrom(text string) string {
	if strings.Contains(text, "本公司") {
		return "本公司"
	}
	return "子公司"
}
