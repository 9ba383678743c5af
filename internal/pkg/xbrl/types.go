// Package xbrl parses Taiwan MOPS XBRL filings: ZIP packages containing a
// classic instance document plus linkbases, and inline-XBRL (iXBRL) HTML
// documents with embedded ix:nonFraction/ix:nonNumeric facts.
package xbrl

import "errors"

var (
	// ErrUnknownFormat is returned when the input is neither a ZIP
	// package nor an iXBRL HTML document.
	ErrUnknownFormat = errors.New("xbrl: unknown file format - expected ZIP or iXBRL HTML")

	// ErrNoInstanceDocument is returned when a ZIP package contains no
	// instance document to extract facts from.
	ErrNoInstanceDocument = errors.New("xbrl: no instance document found in ZIP")
)

// CalculationArc is one parent→child summation edge from a calculation
// linkbase. Weight +1.0 adds the child into the parent total, -1.0
// subtracts it.
type CalculationArc struct {
	FromConcept string  `json:"from_concept"`
	ToConcept   string  `json:"to_concept"`
	Weight      float64 `json:"weight"`
	Order       float64 `json:"order"`

	// WeightDefaulted marks arcs whose weight attribute was absent from
	// the source XML and silently defaulted to 1.0. Kept for diagnosing
	// malformed linkbases; the default itself is deliberate.
	WeightDefaulted bool `json:"-"`
}

// PresentationArc is one parent→child display edge from a presentation
// linkbase. Order defines sibling sequence.
type PresentationArc struct {
	FromConcept    string  `json:"from_concept"`
	ToConcept      string  `json:"to_concept"`
	Order          float64 `json:"order"`
	PreferredLabel string  `json:"preferred_label,omitempty"`
}

// Fact is a single reported value. Value keeps the raw string form; an
// unparseable value becomes an absent statement item downstream, never an
// error here.
type Fact struct {
	Concept    string `json:"concept"`
	Value      string `json:"value"`
	Unit       string `json:"unit,omitempty"`
	ContextRef string `json:"context_ref"`
	Decimals   *int   `json:"decimals,omitempty"`
}

// Context scopes a fact to a reporting entity and period. Either Instant
// or the PeriodStart/PeriodEnd pair is set.
type Context struct {
	ContextID   string `json:"context_id"`
	Entity      string `json:"entity"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
	Instant     string `json:"instant,omitempty"`
}

// Package is the result of parsing one filing: the three linkbases
// cross-referenced by concept, plus instance facts and contexts.
type Package struct {
	StockID string `json:"stock_id"`
	Year    int    `json:"year"` // ROC calendar year
	Quarter int    `json:"quarter"`

	CalculationArcs  map[string][]CalculationArc  `json:"calculation_arcs"`
	PresentationArcs map[string][]PresentationArc `json:"presentation_arcs"`

	Facts    []Fact             `json:"facts"`
	Contexts map[string]Context `json:"contexts"`

	Labels   map[string]string `json:"labels"`    // concept -> Chinese label
	LabelsEn map[string]string `json:"labels_en"` // concept -> English label
}

// NewPackage returns an empty package for the given filing identity.
func NewPackage(stockID string, year, quarter int) *Package {
	return &Package{
		StockID:          stockID,
		Year:             year,
		Quarter:          quarter,
		CalculationArcs:  make(map[string][]CalculationArc),
		PresentationArcs: make(map[string][]PresentationArc),
		Contexts:         make(map[string]Context),
		Labels:           make(map[string]string),
		LabelsEn:         make(map[string]string),
	}
}

// FactValues flattens the fact list into a concept→raw-value lookup.
// When a concept is reported in several contexts the last fact wins.
func (p *Package) FactValues() map[string]string {
	values := make(map[string]string, len(p.Facts))
	for _, fact := range p.Facts {
		values[fact.Concept] = fact.Value
	}
	return values
}
