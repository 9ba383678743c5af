package financial_test

import (
	"context"
	"fmt"

	"mops/internal/pkg/financial"
	"mops/internal/pkg/mops"
	"mops/internal/pkg/statement"
	"mops/internal/pkg/xbrl"
	"mops/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Annual filing: cumulative figures for the full year.
const annualFiling = `<!DOCTYPE html>
<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<table>
  <tr><td>營業收入</td><td><ix:nonFraction name="tifrs:Revenue" contextRef="YTD" unitRef="TWD">2,161,736,841</ix:nonFraction></td></tr>
  <tr><td>本期淨利</td><td><ix:nonFraction name="tifrs:ProfitLoss" contextRef="YTD" unitRef="TWD">1,000,000</ix:nonFraction></td></tr>
</table>
</body>
</html>`

// Q3 filing: cumulative figures through the third quarter.
const thirdQuarterFiling = `<!DOCTYPE html>
<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<table>
  <tr><td>營業收入</td><td><ix:nonFraction name="tifrs:Revenue" contextRef="YTD" unitRef="TWD">1,536,331,569</ix:nonFraction></td></tr>
  <tr><td>本期淨利</td><td><ix:nonFraction name="tifrs:ProfitLoss" contextRef="YTD" unitRef="TWD">700,000</ix:nonFraction></td></tr>
</table>
</body>
</html>`

const quarterlyFiling = `<!DOCTYPE html>
<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<table>
  <tr><td>本期淨利歸屬於母公司業主</td><td><ix:nonFraction name="tifrs:ProfitLossAttributableToOwnersOfParent" contextRef="YTD" unitRef="TWD">100,000</ix:nonFraction></td></tr>
  <tr><td>歸屬於母公司業主之權益</td><td><ix:nonFraction name="tifrs:EquityAttributableToOwnersOfParent" contextRef="AsOf" unitRef="TWD">1,000,000</ix:nonFraction></td></tr>
</table>
</body>
</html>`

func downloadPath(stockID string, rocYear, quarter int) string {
	return fmt.Sprintf(
		"/server-java/FileDownLoad?functionName=t164sb01&step=9&co_id=%s&year=%d&season=%d&report_id=C",
		stockID, rocYear+1911, quarter,
	)
}

func mockFiling(stockID string, rocYear, quarter int, body string) {
	testhelpers.New("https://mopsov.twse.com.tw").
		Get(downloadPath(stockID, rocYear, quarter)).
		Reply(200).
		BodyString(body)
}

var _ = Describe("Service", func() {
	var service *financial.Service
	var ctx context.Context

	BeforeEach(func() {
		testhelpers.Activate()

		client := mops.New("")
		client.UseDefaultClient()
		client.SetRateLimit(1000)

		service = financial.NewService(client, xbrl.NewParser(), nil)
		ctx = context.Background()
	})

	AfterEach(func() {
		testhelpers.Deactivate()
	})

	Describe("GetFinancialStatement", func() {
		It("rejects unknown report types", func() {
			_, err := service.GetFinancialStatement(ctx, "2330", 113, 1, "profit_sheet", false)
			Expect(err).To(MatchError(ContainSubstring("unknown report type")))
		})

		It("downloads, parses and assembles a quarterly statement", func() {
			mockFiling("2330", 113, 3, annualFiling)

			stmt, err := service.GetFinancialStatement(ctx, "2330", 113, 3, statement.IncomeStatement, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(testhelpers.IsDone()).To(BeTrue())

			Expect(stmt.StockID).To(Equal("2330"))
			Expect(stmt.Year).To(Equal(113))
			Expect(stmt.Quarter).To(Equal(3))
			Expect(stmt.IsStandalone).To(BeFalse())
			Expect(stmt.Currency).To(Equal("TWD"))

			flat := statement.Flatten(stmt.Items)
			values := map[string]string{}
			for _, item := range flat {
				if item.Value != nil {
					values[item.AccountCode] = item.Value.String()
				}
			}
			Expect(values["Revenue"]).To(Equal("2161736841"))
			Expect(values["ProfitLoss"]).To(Equal("1000000"))
		})

		It("differences Q4 income statements against the Q3 cumulative", func() {
			mockFiling("2330", 113, 4, annualFiling)
			mockFiling("2330", 113, 3, thirdQuarterFiling)

			stmt, err := service.GetFinancialStatement(ctx, "2330", 113, 4, statement.IncomeStatement, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(testhelpers.IsDone()).To(BeTrue())

			Expect(stmt.IsStandalone).To(BeTrue())

			values := map[string]string{}
			for _, item := range statement.Flatten(stmt.Items) {
				if item.Value != nil {
					values[item.AccountCode] = item.Value.String()
				}
			}
			Expect(values["Revenue"]).To(Equal("625405272"))
			Expect(values["ProfitLoss"]).To(Equal("300000"))
		})

		It("keeps annual figures when the Q3 filing is unavailable", func() {
			mockFiling("2330", 113, 4, annualFiling)
			testhelpers.New("https://mopsov.twse.com.tw").
				Get(downloadPath("2330", 113, 3)).
				Reply(404).
				BodyString("not found")

			stmt, err := service.GetFinancialStatement(ctx, "2330", 113, 4, statement.IncomeStatement, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(stmt.IsStandalone).To(BeFalse())

			values := map[string]string{}
			for _, item := range statement.Flatten(stmt.Items) {
				if item.Value != nil {
					values[item.AccountCode] = item.Value.String()
				}
			}
			Expect(values["Revenue"]).To(Equal("2161736841"))
		})

		It("leaves balance sheets undifferenced at Q4", func() {
			mockFiling("2330", 113, 4, annualFiling)

			stmt, err := service.GetFinancialStatement(ctx, "2330", 113, 4, statement.BalanceSheet, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt.IsStandalone).To(BeFalse())
		})

		It("surfaces the download failure", func() {
			testhelpers.New("https://mopsov.twse.com.tw").
				Get(downloadPath("9999", 113, 1)).
				Reply(404).
				BodyString("not found")

			_, err := service.GetFinancialStatement(ctx, "9999", 113, 1, statement.BalanceSheet, false)
			Expect(err).To(MatchError(mops.ErrDataNotFound))
		})
	})

	Describe("GetFlatStatement", func() {
		It("returns the statement with children flattened away", func() {
			mockFiling("2330", 113, 3, annualFiling)

			stmt, err := service.GetFlatStatement(ctx, "2330", 113, 3, statement.IncomeStatement, false)
			Expect(err).NotTo(HaveOccurred())

			for _, item := range stmt.Items {
				Expect(item.Children).To(BeEmpty())
			}
		})
	})

	Describe("GetSimplifiedStatement", func() {
		It("returns dated flat rows for every numeric fact", func() {
			mockFiling("2330", 113, 3, annualFiling)

			simplified, err := service.GetSimplifiedStatement(ctx, "2330", 113, 3, statement.IncomeStatement)
			Expect(err).NotTo(HaveOccurred())

			Expect(simplified.ReportDate).To(Equal("2024-09-30"))
			Expect(simplified.Items).To(HaveLen(2))

			revenue := simplified.Items[0]
			Expect(revenue.Type).To(Equal("Revenue"))
			Expect(revenue.Date).To(Equal("2024-09-30"))
			Expect(*revenue.Value).To(BeNumerically("==", 2161736841))
			Expect(revenue.OriginName).To(Equal("營業收入"))
		})

		It("defaults to the annual filing date", func() {
			mockFiling("2330", 112, 4, annualFiling)

			simplified, err := service.GetSimplifiedStatement(ctx, "2330", 112, 0, statement.IncomeStatement)
			Expect(err).NotTo(HaveOccurred())
			Expect(simplified.Quarter).To(Equal(4))
			Expect(simplified.ReportDate).To(Equal("2023-12-31"))
		})
	})

	Describe("GetROESeries", func() {
		It("computes quarterly ROE walking back from the given period", func() {
			// two periods, each needing the income statement and the
			// balance sheet from the same filing
			for i := 0; i < 2; i++ {
				mockFiling("2330", 113, 2, quarterlyFiling)
			}
			for i := 0; i < 2; i++ {
				mockFiling("2330", 113, 3, quarterlyFiling)
			}

			metric, err := service.GetROESeries(ctx, "2330", 113, 3, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(metric.MetricName).To(Equal("ROE"))
			Expect(metric.Data).To(HaveLen(2))

			Expect(metric.Data[0].Year).To(Equal(113))
			Expect(metric.Data[0].Quarter).To(Equal(2))
			Expect(metric.Data[0].Value).To(BeNumerically("~", 10.0, 0.001))
			Expect(metric.Data[0].Unit).To(Equal("%"))

			Expect(metric.Data[1].Quarter).To(Equal(3))
		})

		It("drops periods whose filings are missing", func() {
			for i := 0; i < 2; i++ {
				mockFiling("2330", 113, 3, quarterlyFiling)
			}
			testhelpers.New("https://mopsov.twse.com.tw").
				Get(downloadPath("2330", 113, 2)).
				Reply(404).
				BodyString("not found")

			metric, err := service.GetROESeries(ctx, "2330", 113, 3, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(metric.Data).To(HaveLen(1))
			Expect(metric.Data[0].Quarter).To(Equal(3))
		})
	})
})
