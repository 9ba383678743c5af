package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// FinancialReport caches one parsed statement. FullData holds the
// hierarchical statement JSON so rebuilding does not re-download the
// filing; the flattened facts live in financial_facts for SQL queries.
type FinancialReport struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	StockID    string `gorm:"uniqueIndex:idx_report_period" json:"stock_id"`
	Year       int    `gorm:"uniqueIndex:idx_report_period" json:"year"` // ROC calendar year
	Quarter    int    `gorm:"uniqueIndex:idx_report_period" json:"quarter"`
	ReportType string `gorm:"uniqueIndex:idx_report_period" json:"report_type"`

	CompanyName  string `json:"company_name"`
	IsStandalone bool   `json:"is_standalone"`
	Currency     string `json:"currency"`
	Unit         string `json:"unit"`

	FullData json.RawMessage `gorm:"type:jsonb" json:"full_data"`

	Facts []FinancialFact `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinancialFact is one flattened statement line.
type FinancialFact struct {
	ID                uint `gorm:"primaryKey" json:"id"`
	FinancialReportID uint `gorm:"index" json:"financial_report_id"`

	Concept string `gorm:"index" json:"concept"`
	LabelZh string `json:"label_zh"`
	LabelEn string `json:"label_en"`

	Value  *decimal.Decimal `gorm:"type:numeric(20,4)" json:"value"`
	Weight float64          `json:"weight"`
	Level  int              `json:"level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
