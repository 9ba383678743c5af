package statement_test

import (
	"mops/internal/pkg/statement"
	"mops/internal/pkg/xbrl"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func arc(from, to string, order float64) xbrl.PresentationArc {
	return xbrl.PresentationArc{FromConcept: from, ToConcept: to, Order: order}
}

var _ = Describe("BuildWeightMap", func() {
	It("records the signed weight per child concept", func() {
		arcs := map[string][]xbrl.CalculationArc{
			"GrossProfit": {
				{FromConcept: "GrossProfit", ToConcept: "Revenue", Weight: 1.0},
				{FromConcept: "GrossProfit", ToConcept: "CostOfSales", Weight: -1.0},
			},
		}

		weights := statement.BuildWeightMap(arcs)
		Expect(weights).To(HaveKeyWithValue("Revenue", 1.0))
		Expect(weights).To(HaveKeyWithValue("CostOfSales", -1.0))
	})
})

var _ = Describe("BuildTree", func() {
	labelsZh := map[string]string{
		"Assets":        "資產總額",
		"CurrentAssets": "流動資產",
	}
	labelsEn := map[string]string{
		"Assets": "Total assets",
	}

	It("detects roots as sources that are never targets", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "Assets", 1), arc("Statement", "Liabilities", 2)},
			"Assets":    {arc("Assets", "CurrentAssets", 1)},
		}

		items := statement.BuildTree(arcs, nil, nil, nil, nil)
		Expect(items).To(HaveLen(1))
		Expect(items[0].AccountCode).To(Equal("Statement"))
		Expect(items[0].Level).To(Equal(0))
	})

	It("orders siblings by arc order and sets child levels", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "Liabilities", 2), arc("Statement", "Assets", 1)},
		}

		items := statement.BuildTree(arcs, nil, nil, nil, nil)
		children := items[0].Children
		Expect(children).To(HaveLen(2))
		Expect(children[0].AccountCode).To(Equal("Assets"))
		Expect(children[1].AccountCode).To(Equal("Liabilities"))
		Expect(children[0].Level).To(Equal(1))
	})

	It("resolves labels and falls back to the concept name", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Assets": {arc("Assets", "CurrentAssets", 1)},
		}

		items := statement.BuildTree(arcs, labelsZh, labelsEn, nil, nil)
		Expect(items[0].AccountName).To(Equal("資產總額"))
		Expect(items[0].AccountNameEn).To(Equal("Total assets"))

		child := items[0].Children[0]
		Expect(child.AccountName).To(Equal("流動資產"))
		Expect(child.AccountNameEn).To(BeEmpty())
	})

	It("parses fact values into exact decimals and leaves missing ones absent", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Assets": {arc("Assets", "CurrentAssets", 1), arc("Assets", "NonCurrentAssets", 2)},
		}
		facts := map[string]string{
			"Assets":        "2,706,286,837",
			"CurrentAssets": "—",
		}

		items := statement.BuildTree(arcs, nil, nil, facts, nil)
		Expect(items[0].Value).NotTo(BeNil())
		Expect(items[0].Value.Equal(decimal.NewFromInt(2706286837))).To(BeTrue())
		Expect(items[0].Children[0].Value).To(BeNil())
		Expect(items[0].Children[1].Value).To(BeNil())
	})

	It("applies calculation weights and defaults unknown concepts to +1.0", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"GrossProfit": {arc("GrossProfit", "Revenue", 1), arc("GrossProfit", "CostOfSales", 2)},
		}
		weights := map[string]float64{"CostOfSales": -1.0}

		items := statement.BuildTree(arcs, nil, nil, nil, weights)
		Expect(items[0].Weight).To(Equal(1.0))
		Expect(items[0].Children[0].Weight).To(Equal(1.0))
		Expect(items[0].Children[1].Weight).To(Equal(-1.0))
	})

	It("terminates when every concept sits inside a cycle", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"A": {arc("A", "B", 1)},
			"B": {arc("B", "A", 1)},
		}

		// Both concepts are arc targets, so there is no root to hang the
		// tree from; the build ends with nothing rather than recursing.
		items := statement.BuildTree(arcs, nil, nil, nil, nil)
		Expect(items).To(BeEmpty())
	})

	It("breaks cycles below the root without duplicating a concept in a branch", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "A", 1)},
			"A":         {arc("A", "B", 1)},
			"B":         {arc("B", "A", 1)},
		}

		items := statement.BuildTree(arcs, nil, nil, nil, nil)
		Expect(items).To(HaveLen(1))
		a := items[0].Children[0]
		Expect(a.AccountCode).To(Equal("A"))
		Expect(a.Children).To(HaveLen(1))
		Expect(a.Children[0].AccountCode).To(Equal("B"))
		Expect(a.Children[0].Children).To(BeEmpty())
	})

	It("places a shared subtree under whichever parent is reached first", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "First", 1), arc("Statement", "Second", 2)},
			"First":     {arc("First", "Shared", 1)},
			"Second":    {arc("Second", "Shared", 1)},
		}

		items := statement.BuildTree(arcs, nil, nil, nil, nil)
		children := items[0].Children
		Expect(children[0].Children).To(HaveLen(1))
		Expect(children[1].Children).To(BeEmpty())
	})

	It("falls back to a flat sorted list when no presentation arcs exist", func() {
		facts := map[string]string{
			"B": "2",
			"A": "1",
		}

		items := statement.BuildTree(nil, nil, nil, facts, nil)
		Expect(items).To(HaveLen(2))
		Expect(items[0].AccountCode).To(Equal("A"))
		Expect(items[1].AccountCode).To(Equal("B"))
		Expect(items[0].Level).To(Equal(0))
		Expect(items[0].Weight).To(Equal(1.0))
	})
})

var _ = Describe("Flatten", func() {
	It("walks depth-first and drops children", func() {
		arcs := map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "Assets", 1), arc("Statement", "Liabilities", 2)},
			"Assets":    {arc("Assets", "CurrentAssets", 1)},
		}

		tree := statement.BuildTree(arcs, nil, nil, nil, nil)
		flat := statement.Flatten(tree)

		codes := make([]string, len(flat))
		for i, item := range flat {
			codes[i] = item.AccountCode
		}
		Expect(codes).To(Equal([]string{"Statement", "Assets", "CurrentAssets", "Liabilities"}))

		for _, item := range flat {
			Expect(item.Children).To(BeEmpty())
		}
		// The tree itself keeps its children.
		Expect(tree[0].Children).To(HaveLen(2))
	})
})

var _ = Describe("Assemble", func() {
	It("honors the accounting identity end to end", func() {
		pkg := xbrl.NewPackage("2330", 113, 3)
		pkg.PresentationArcs = map[string][]xbrl.PresentationArc{
			"Statement": {arc("Statement", "Assets", 1), arc("Statement", "LiabilitiesAndEquity", 2)},
			"LiabilitiesAndEquity": {
				arc("LiabilitiesAndEquity", "Liabilities", 1),
				arc("LiabilitiesAndEquity", "Equity", 2),
			},
		}
		pkg.CalculationArcs = map[string][]xbrl.CalculationArc{
			"LiabilitiesAndEquity": {
				{FromConcept: "LiabilitiesAndEquity", ToConcept: "Liabilities", Weight: 1.0},
				{FromConcept: "LiabilitiesAndEquity", ToConcept: "Equity", Weight: 1.0},
			},
		}
		pkg.Facts = []xbrl.Fact{
			{Concept: "Assets", Value: "5,982,920,629"},
			{Concept: "Liabilities", Value: "2,184,219,324"},
			{Concept: "Equity", Value: "3,798,701,305"},
		}

		stmt := statement.Assemble(pkg, statement.BalanceSheet)
		Expect(stmt.StockID).To(Equal("2330"))
		Expect(stmt.Currency).To(Equal("TWD"))
		Expect(stmt.IsStandalone).To(BeFalse())

		flat := statement.Flatten(stmt.Items)
		values := map[string]decimal.Decimal{}
		for _, item := range flat {
			if item.Value != nil {
				values[item.AccountCode] = *item.Value
			}
		}

		sum := values["Liabilities"].Add(values["Equity"])
		Expect(values["Assets"].Equal(sum)).To(BeTrue())
	})
})
