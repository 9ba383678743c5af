// Package financial orchestrates the whole pipeline: download a filing
// from MOPS, parse it, assemble the statement, difference Q4 income
// statements and cache the result.
package financial

import (
	"context"
	"fmt"
	"log"

	"mops/internal/pkg/mops"
	"mops/internal/pkg/numerics"
	"mops/internal/pkg/statement"
	"mops/internal/pkg/xbrl"
	"mops/internal/repository"
)

// Service wires the MOPS client, the filing parser and the statement
// cache. Repo may be nil when running without a database.
type Service struct {
	Client *mops.Client
	Parser *xbrl.Parser
	Repo   *repository.ReportRepository
}

func NewService(client *mops.Client, parser *xbrl.Parser, repo *repository.ReportRepository) *Service {
	return &Service{Client: client, Parser: parser, Repo: repo}
}

// GetFinancialStatement returns the hierarchical statement for one
// company and period. The year is ROC calendar; quarter 0 means the
// annual filing. Cache lookups and saves degrade to direct fetches, only
// the download and parse can fail the call.
func (s *Service) GetFinancialStatement(ctx context.Context, stockID string, year, quarter int, reportType string, useCache bool) (*statement.FinancialStatement, error) {
	if !statement.IsValidReportType(reportType) {
		return nil, fmt.Errorf("financial: unknown report type %q", reportType)
	}
	if quarter == 0 {
		quarter = 4
	}

	if useCache && s.Repo != nil {
		cached, err := s.Repo.GetReport(ctx, stockID, year, quarter, reportType)
		if err != nil {
			log.Printf("cache lookup failed, falling back to MOPS: %v", err)
		} else if cached != nil {
			log.Printf("cache hit for %s %dQ%d %s", stockID, year, quarter, reportType)
			return cached, nil
		}
	}

	log.Printf("cache miss for %s %dQ%d %s, fetching from MOPS", stockID, year, quarter, reportType)

	pkg, err := s.fetchPackage(ctx, stockID, year, quarter)
	if err != nil {
		return nil, err
	}

	stmt := statement.Assemble(pkg, reportType)

	if statement.NeedsStandalone(reportType, quarter) {
		s.differenceFourthQuarter(ctx, stmt, pkg, reportType)
	}

	if s.Repo != nil {
		if err := s.Repo.SaveReport(ctx, stmt); err != nil {
			log.Printf("failed to save to cache (non-fatal): %v", err)
		}
	}

	return stmt, nil
}

// GetFlatStatement is GetFinancialStatement with the tree flattened to a
// depth-first list.
func (s *Service) GetFlatStatement(ctx context.Context, stockID string, year, quarter int, reportType string, useCache bool) (*statement.FinancialStatement, error) {
	stmt, err := s.GetFinancialStatement(ctx, stockID, year, quarter, reportType, useCache)
	if err != nil {
		return nil, err
	}

	flat := *stmt
	flat.Items = statement.Flatten(stmt.Items)
	return &flat, nil
}

// differenceFourthQuarter replaces the annual cumulative figures with
// standalone Q4 values by subtracting the Q3 filing. When Q3 cannot be
// fetched the annual figures stay and IsStandalone stays false.
func (s *Service) differenceFourthQuarter(ctx context.Context, stmt *statement.FinancialStatement, annual *xbrl.Package, reportType string) {
	prior, err := s.fetchPackage(ctx, stmt.StockID, stmt.Year, 3)
	if err != nil {
		log.Printf("Q3 filing unavailable for %s %d, keeping annual figures: %v", stmt.StockID, stmt.Year, err)
		return
	}

	standalone := statement.SubtractCumulative(annual.FactValues(), prior.FactValues())
	differenced := statement.AssembleWithFacts(annual, reportType, standalone)
	stmt.Items = differenced.Items
	stmt.IsStandalone = true
}

func (s *Service) fetchPackage(ctx context.Context, stockID string, year, quarter int) (*xbrl.Package, error) {
	content, err := s.Client.DownloadXBRL(ctx, stockID, year, quarter, "")
	if err != nil {
		return nil, fmt.Errorf("financial: download %s %dQ%d: %w", stockID, year, quarter, err)
	}

	pkg, err := s.Parser.Parse(content, stockID, year, quarter)
	if err != nil {
		return nil, fmt.Errorf("financial: parse %s %dQ%d: %w", stockID, year, quarter, err)
	}
	return pkg, nil
}

// reportDate gives the period-end date of a ROC year and quarter.
func reportDate(year, quarter int) string {
	westernYear := year + 1911
	switch quarter {
	case 1:
		return fmt.Sprintf("%d-03-31", westernYear)
	case 2:
		return fmt.Sprintf("%d-06-30", westernYear)
	case 3:
		return fmt.Sprintf("%d-09-30", westernYear)
	default:
		return fmt.Sprintf("%d-12-31", westernYear)
	}
}

// SimplifiedItem is one line in the FinMind-style flat format.
type SimplifiedItem struct {
	Date       string   `json:"date"`
	StockID    string   `json:"stock_id"`
	Type       string   `json:"type"`
	Value      *float64 `json:"value"`
	OriginName string   `json:"origin_name"`
}

// SimplifiedStatement is the flat per-fact view of one filing.
type SimplifiedStatement struct {
	StockID       string           `json:"stock_id"`
	Year          int              `json:"year"` // ROC calendar year
	Quarter       int              `json:"quarter"`
	ReportDate    string           `json:"report_date"`
	StatementType string           `json:"statement_type"`
	Items         []SimplifiedItem `json:"items"`
}

// GetSimplifiedStatement downloads and parses the filing and returns
// every numeric fact as a dated flat row. Duplicate concepts keep the
// first occurrence; unparseable values are dropped.
func (s *Service) GetSimplifiedStatement(ctx context.Context, stockID string, year, quarter int, statementType string) (*SimplifiedStatement, error) {
	if quarter == 0 {
		quarter = 4
	}

	pkg, err := s.fetchPackage(ctx, stockID, year, quarter)
	if err != nil {
		return nil, err
	}

	date := reportDate(year, quarter)
	seen := make(map[string]bool)
	var items []SimplifiedItem

	for _, fact := range pkg.Facts {
		if seen[fact.Concept] {
			continue
		}

		parsed := numerics.ParseFinancialValue(fact.Value)
		if parsed == nil {
			continue
		}
		seen[fact.Concept] = true

		value := parsed.InexactFloat64()
		originName := fact.Concept
		if label, ok := pkg.Labels[fact.Concept]; ok && label != "" {
			originName = label
		}

		items = append(items, SimplifiedItem{
			Date:       date,
			StockID:    stockID,
			Type:       fact.Concept,
			Value:      &value,
			OriginName: originName,
		})
	}

	return &SimplifiedStatement{
		StockID:       stockID,
		Year:          year,
		Quarter:       quarter,
		ReportDate:    date,
		StatementType: statementType,
		Items:         items,
	}, nil
}
