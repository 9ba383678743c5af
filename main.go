// Command mops is a debug CLI: it downloads one filing from MOPS, parses
// it and prints the assembled statement as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mops/internal/config"
	"mops/internal/pkg/financial"
	"mops/internal/pkg/mops"
	"mops/internal/pkg/statement"
	"mops/internal/pkg/xbrl"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	stockID := flag.String("stock", "2330", "stock ID")
	year := flag.Int("year", 113, "ROC calendar year")
	quarter := flag.Int("quarter", 1, "quarter 1-4, 0 for the annual filing")
	reportType := flag.String("type", statement.IncomeStatement, "balance_sheet, income_statement, cash_flow or equity_statement")
	simplified := flag.Bool("simplified", false, "print the flat simplified view instead")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client := mops.New(cfg.MOPSBaseURL)
	client.SetRateLimit(cfg.RateLimit)

	service := financial.NewService(client, xbrl.NewParser(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var result any
	if *simplified {
		result, err = service.GetSimplifiedStatement(ctx, *stockID, *year, *quarter, *reportType)
	} else {
		result, err = service.GetFinancialStatement(ctx, *stockID, *year, *quarter, *reportType, false)
	}
	if err != nil {
		log.Fatalf("Failed to fetch statement: %v", err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode statement: %v", err)
	}

	fmt.Fprintln(os.Stdout, string(encoded))
}
