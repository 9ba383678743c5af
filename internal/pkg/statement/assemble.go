package statement

import "mops/internal/pkg/xbrl"

// Assemble builds the statement straight from a parsed package.
func Assemble(pkg *xbrl.Package, reportType string) *FinancialStatement {
	return AssembleWithFacts(pkg, reportType, pkg.FactValues())
}

// AssembleWithFacts builds a statement from a package using an explicit
// concept→value lookup instead of the package's own facts. The Q4
// standalone path uses this to feed differenced values through the same
// hierarchy and weights.
func AssembleWithFacts(pkg *xbrl.Package, reportType string, factValues map[string]string) *FinancialStatement {
	stmt := NewStatement(pkg.StockID, pkg.Year, pkg.Quarter, reportType)
	weights := BuildWeightMap(pkg.CalculationArcs)
	stmt.Items = BuildTree(pkg.PresentationArcs, pkg.Labels, pkg.LabelsEn, factValues, weights)
	return stmt
}
