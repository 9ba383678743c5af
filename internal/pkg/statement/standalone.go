package statement

import "mops/internal/pkg/numerics"

// NeedsStandalone reports whether a statement's Q4 figures should be
// converted to single-quarter values by subtracting the Q3 cumulative
// filing. Only the income statement is differenced; equity-change and
// cash-flow statements are treated as cumulative by convention even
// though the mechanism is general.
func NeedsStandalone(reportType string, quarter int) bool {
	return reportType == IncomeStatement && quarter == 4
}

// SubtractCumulative derives standalone fourth-quarter fact values from
// the annual filing and the Q3 cumulative filing. Every numeric concept
// in the annual set becomes annual minus cumulative, with a concept
// missing from Q3 treated as zero. Text facts pass through unchanged.
func SubtractCumulative(annual, cumulative map[string]string) map[string]string {
	result := make(map[string]string, len(annual))

	for concept, raw := range annual {
		annualValue := numerics.ParseFinancialValue(raw)
		if annualValue == nil {
			result[concept] = raw
			continue
		}

		standalone := *annualValue
		if prior := numerics.ParseFinancialValue(cumulative[concept]); prior != nil {
			standalone = annualValue.Sub(*prior)
		}
		result[concept] = standalone.String()
	}

	return result
}
