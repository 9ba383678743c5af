// Package statement builds hierarchical, sign-correct financial
// statements from parsed XBRL packages. The presentation linkbase gives
// the hierarchy, the calculation linkbase gives the signs, and facts fill
// in the values.
package statement

import "github.com/shopspring/decimal"

// Report types and the XBRL role each one corresponds to.
const (
	BalanceSheet    = "balance_sheet"
	IncomeStatement = "income_statement"
	CashFlow        = "cash_flow"
	EquityStatement = "equity_statement"
)

// ReportRoles maps a report type to its statement role in the Taiwan
// IFRS taxonomy.
var ReportRoles = map[string]string{
	BalanceSheet:    "StatementOfFinancialPosition",
	IncomeStatement: "StatementOfComprehensiveIncome",
	CashFlow:        "StatementOfCashFlows",
	EquityStatement: "StatementOfChangesInEquity",
}

// IsValidReportType reports whether the given report type is one this
// system knows how to assemble.
func IsValidReportType(reportType string) bool {
	_, ok := ReportRoles[reportType]
	return ok
}

// FinancialItem is one line of a statement. Value is nil when the filing
// reported no figure or an unparseable one.
type FinancialItem struct {
	AccountCode   string           `json:"account_code"`
	AccountName   string           `json:"account_name"`
	AccountNameEn string           `json:"account_name_en,omitempty"`
	Value         *decimal.Decimal `json:"value"`
	Weight        float64          `json:"weight"`
	Level         int              `json:"level"`
	Children      []*FinancialItem `json:"children"`
}

// FinancialStatement is the assembled report.
type FinancialStatement struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name,omitempty"`

	Year    int `json:"year"` // ROC calendar year
	Quarter int `json:"quarter,omitempty"`

	ReportType string `json:"report_type"`

	// IsStandalone is true only when the Q4 figures were actually
	// derived by subtracting the Q3 cumulative values.
	IsStandalone bool `json:"is_standalone"`

	Items []*FinancialItem `json:"items"`

	Currency string `json:"currency"`
	Unit     string `json:"unit"`
}

// NewStatement returns an empty statement with Taiwan filing defaults.
func NewStatement(stockID string, year, quarter int, reportType string) *FinancialStatement {
	return &FinancialStatement{
		StockID:    stockID,
		Year:       year,
		Quarter:    quarter,
		ReportType: reportType,
		Currency:   "TWD",
		Unit:       "thousands",
	}
}
