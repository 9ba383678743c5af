package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"mops/internal/config"
	"mops/internal/pkg/financial"
	"mops/internal/pkg/mops"
	"mops/internal/pkg/statement"
	"mops/internal/pkg/taxonomy"
	"mops/internal/pkg/xbrl"
	"mops/internal/repository"
)

// TaskProcessor holds dependencies for our task handlers
type TaskProcessor struct {
	DB              *gorm.DB
	config          *config.Config
	service         *financial.Service
	taxonomyManager *taxonomy.Manager
}

// NewTaskProcessor creates a new TaskProcessor
func NewTaskProcessor(db *gorm.DB, config *config.Config) *TaskProcessor {
	client := mops.New(config.MOPSBaseURL)
	client.SetRateLimit(config.RateLimit)

	manager := taxonomy.NewManager(config.TaxonomyDir)

	parser := xbrl.NewParser()
	parser.Schemas = manager

	var repo *repository.ReportRepository
	if db != nil {
		repo = repository.NewReportRepository(db)
	}

	return &TaskProcessor{
		DB:              db,
		config:          config,
		service:         financial.NewService(client, parser, repo),
		taxonomyManager: manager,
	}
}

// HandleRefreshTaxonomiesTask re-scrapes the MOPS taxonomy list and
// downloads any packages published since the last run.
func (p *TaskProcessor) HandleRefreshTaxonomiesTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Refreshing taxonomies")

	downloaded, err := p.taxonomyManager.EnsureTaxonomies(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh taxonomies: %w", err)
	}

	if len(downloaded) > 0 {
		log.Printf("Downloaded %d new taxonomies: %v", len(downloaded), downloaded)
	} else {
		log.Println("All taxonomies are up to date")
	}

	return nil
}

// HandlePrefetchStatementTask warms the statement cache for one period.
// A malformed payload is dropped; a fetch failure retries.
func (p *TaskProcessor) HandlePrefetchStatementTask(ctx context.Context, t *asynq.Task) error {
	var payload PrefetchStatementPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	log.Printf("Prefetching statements for %+v", payload)

	reportTypes := []string{payload.ReportType}
	if payload.ReportType == "" {
		reportTypes = []string{
			statement.BalanceSheet,
			statement.IncomeStatement,
			statement.CashFlow,
			statement.EquityStatement,
		}
	}

	for _, reportType := range reportTypes {
		stmt, err := p.service.GetFinancialStatement(ctx, payload.StockID, payload.Year, payload.Quarter, reportType, true)
		if err != nil {
			return fmt.Errorf("failed to prefetch %s %dQ%d %s: %w",
				payload.StockID, payload.Year, payload.Quarter, reportType, err)
		}
		log.Printf("prefetched %s %dQ%d %s: %d items",
			payload.StockID, payload.Year, payload.Quarter, reportType, len(stmt.Items))
	}

	return nil
}

// GetService exposes the financial service, used by tests and the debug
// CLI paths that reuse the worker wiring.
func (p *TaskProcessor) GetService() *financial.Service {
	return p.service
}

// GetTaxonomyManager exposes the taxonomy manager for the same callers.
func (p *TaskProcessor) GetTaxonomyManager() *taxonomy.Manager {
	return p.taxonomyManager
}
