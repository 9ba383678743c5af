// Package numerics provides consistent parsing of financial value strings.
//
// MOPS filings format numbers with comma separators and mark empty cells
// with a dash (half-width or full-width). Values are parsed into exact
// decimals so statements in the hundreds of billions do not accumulate
// floating point error.
package numerics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseFinancialValue parses a raw financial value string into a Decimal.
//
// Handles comma separators ("1,234,567"), surrounding whitespace, empty
// strings and dash placeholders ("-", "—"), negatives and decimals.
// Returns nil when the string carries no numeric value.
func ParseFinancialValue(raw string) *decimal.Decimal {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if cleaned == "" || cleaned == "-" || cleaned == "—" {
		return nil
	}

	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &v
}

// IsNumericString reports whether the string would parse as a financial
// value. Cheap pre-check used by the standalone differ to decide whether
// a fact is numeric or text.
func IsNumericString(raw string) bool {
	return ParseFinancialValue(raw) != nil
}
