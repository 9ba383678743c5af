package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// This file defines the "types" and "payloads" for our async tasks.

// Task type names
const (
	TypeTaskRefreshTaxonomies = "task:refresh_taxonomies"
	TypeTaskPrefetchStatement = "task:prefetch_statement"
)

// NewRefreshTaxonomiesTask creates the periodic taxonomy refresh task.
// It carries no payload; the worker scrapes the full MOPS list each run.
func NewRefreshTaxonomiesTask() *asynq.Task {
	return asynq.NewTask(TypeTaskRefreshTaxonomies, nil)
}

// --- PrefetchStatement Task ---

// PrefetchStatementPayload identifies one statement to warm the cache
// for. Year is ROC calendar; an empty ReportType prefetches every type.
type PrefetchStatementPayload struct {
	StockID    string `json:"stock_id"`
	Year       int    `json:"year"`
	Quarter    int    `json:"quarter"`
	ReportType string `json:"report_type,omitempty"`
}

// NewPrefetchStatementTask creates a cache warm task for asynq
func NewPrefetchStatementTask(stockID string, year, quarter int, reportType string) (*asynq.Task, error) {
	payload := PrefetchStatementPayload{
		StockID:    stockID,
		Year:       year,
		Quarter:    quarter,
		ReportType: reportType,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeTaskPrefetchStatement, payloadBytes), nil
}
