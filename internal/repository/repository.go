// Package repository is the statement cache. Parsed statements are
// expensive to rebuild (a MOPS download plus a full parse), so every
// assembled report is stored as JSONB alongside its flattened facts.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mops/internal/models"
	"mops/internal/pkg/statement"
)

type ReportRepository struct {
	DB *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

// GetReport rebuilds a cached statement, or returns nil on a cache miss.
func (r *ReportRepository) GetReport(ctx context.Context, stockID string, year, quarter int, reportType string) (*statement.FinancialStatement, error) {
	var report models.FinancialReport
	err := r.DB.WithContext(ctx).
		Where("stock_id = ? AND year = ? AND quarter = ? AND report_type = ?", stockID, year, quarter, reportType).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: lookup report: %w", err)
	}

	var stmt statement.FinancialStatement
	if err := json.Unmarshal(report.FullData, &stmt); err != nil {
		return nil, fmt.Errorf("repository: decode cached report: %w", err)
	}
	return &stmt, nil
}

// SaveReport upserts the statement on its period key and replaces the
// flattened facts.
func (r *ReportRepository) SaveReport(ctx context.Context, stmt *statement.FinancialStatement) error {
	fullData, err := json.Marshal(stmt)
	if err != nil {
		return fmt.Errorf("repository: encode report: %w", err)
	}

	report := models.FinancialReport{
		StockID:      stmt.StockID,
		Year:         stmt.Year,
		Quarter:      stmt.Quarter,
		ReportType:   stmt.ReportType,
		CompanyName:  stmt.CompanyName,
		IsStandalone: stmt.IsStandalone,
		Currency:     stmt.Currency,
		Unit:         stmt.Unit,
		FullData:     fullData,
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "stock_id"}, {Name: "year"}, {Name: "quarter"}, {Name: "report_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"company_name", "is_standalone", "currency", "unit", "full_data", "updated_at",
			}),
		}).Create(&report).Error
		if err != nil {
			return fmt.Errorf("repository: upsert report: %w", err)
		}

		// The upsert path does not populate report.ID, fetch it back.
		var saved models.FinancialReport
		err = tx.Where("stock_id = ? AND year = ? AND quarter = ? AND report_type = ?",
			stmt.StockID, stmt.Year, stmt.Quarter, stmt.ReportType).First(&saved).Error
		if err != nil {
			return fmt.Errorf("repository: reload report: %w", err)
		}

		if err := tx.Where("financial_report_id = ?", saved.ID).Delete(&models.FinancialFact{}).Error; err != nil {
			return fmt.Errorf("repository: clear facts: %w", err)
		}

		facts := factsFromStatement(saved.ID, stmt)
		if len(facts) == 0 {
			return nil
		}
		if err := tx.Create(&facts).Error; err != nil {
			return fmt.Errorf("repository: insert facts: %w", err)
		}
		return nil
	})
}

// UpsertCompany records a company seen while fetching filings.
func (r *ReportRepository) UpsertCompany(ctx context.Context, stockID, name, market string) error {
	company := models.Company{
		StockID: stockID,
		Name:    name,
		Market:  market,
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "market", "updated_at"}),
	}).Create(&company).Error
	if err != nil {
		return fmt.Errorf("repository: upsert company: %w", err)
	}
	return nil
}

// Companies lists known companies, newest first.
func (r *ReportRepository) Companies(ctx context.Context, limit int) ([]models.Company, error) {
	var companies []models.Company
	err := r.DB.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&companies).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list companies: %w", err)
	}
	return companies, nil
}

func factsFromStatement(reportID uint, stmt *statement.FinancialStatement) []models.FinancialFact {
	flat := statement.Flatten(stmt.Items)
	facts := make([]models.FinancialFact, 0, len(flat))
	for _, item := range flat {
		facts = append(facts, models.FinancialFact{
			FinancialReportID: reportID,
			Concept:           item.AccountCode,
			LabelZh:           item.AccountName,
			LabelEn:           item.AccountNameEn,
			Value:             item.Value,
			Weight:            item.Weight,
			Level:             item.Level,
		})
	}
	return facts
}
