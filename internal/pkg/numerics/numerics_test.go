package numerics_test

import (
	"mops/internal/pkg/numerics"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ParseFinancialValue", func() {
	It("strips thousands separators", func() {
		v := numerics.ParseFinancialValue("1,234,567")
		Expect(v).NotTo(BeNil())
		Expect(v.Equal(decimal.NewFromInt(1234567))).To(BeTrue())
	})

	It("parses negative decimal values", func() {
		v := numerics.ParseFinancialValue("-1,234.56")
		Expect(v).NotTo(BeNil())
		Expect(v.String()).To(Equal("-1234.56"))
	})

	It("trims surrounding whitespace", func() {
		v := numerics.ParseFinancialValue("  42 ")
		Expect(v).NotTo(BeNil())
		Expect(v.Equal(decimal.NewFromInt(42))).To(BeTrue())
	})

	It("treats empty and dash placeholders as absent, not zero", func() {
		Expect(numerics.ParseFinancialValue("")).To(BeNil())
		Expect(numerics.ParseFinancialValue("-")).To(BeNil())
		Expect(numerics.ParseFinancialValue("—")).To(BeNil())
		Expect(numerics.ParseFinancialValue("   ")).To(BeNil())
	})

	It("returns absent for text", func() {
		Expect(numerics.ParseFinancialValue("不適用")).To(BeNil())
		Expect(numerics.ParseFinancialValue("N/A")).To(BeNil())
	})

	It("keeps exact precision for statement-scale values", func() {
		v := numerics.ParseFinancialValue("2,706,286,837,000")
		Expect(v).NotTo(BeNil())
		Expect(v.String()).To(Equal("2706286837000"))
	})
})

var _ = Describe("IsNumericString", func() {
	It("accepts formatted numbers", func() {
		Expect(numerics.IsNumericString("1,000")).To(BeTrue())
		Expect(numerics.IsNumericString("-3.14")).To(BeTrue())
	})

	It("rejects placeholders and prose", func() {
		Expect(numerics.IsNumericString("-")).To(BeFalse())
		Expect(numerics.IsNumericString("現金及約當現金")).To(BeFalse())
	})
})
