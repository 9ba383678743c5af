package xbrl_test

import (
	"archive/zip"
	"bytes"
	"errors"

	"mops/internal/pkg/xbrl"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const instanceDocument = `<?xml version="1.0" encoding="UTF-8"?>
<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance" xmlns:tifrs="http://www.xbrl.org/tifrs">
  <xbrli:context id="AsOf2020Q2">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:instant>2020-06-30</xbrli:instant>
    </xbrli:period>
  </xbrli:context>
  <xbrli:context id="YTD2020Q2">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:startDate>2020-01-01</xbrli:startDate>
      <xbrli:endDate>2020-06-30</xbrli:endDate>
    </xbrli:period>
  </xbrli:context>
  <tifrs:Assets contextRef="AsOf2020Q2" unitRef="TWD" decimals="0">2706286837</tifrs:Assets>
  <tifrs:Revenue contextRef="YTD2020Q2" unitRef="TWD" decimals="0">621130799</tifrs:Revenue>
</xbrli:xbrl>`

const calculationLinkbase = `<?xml version="1.0" encoding="UTF-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:calculationLink>
    <link:calculationArc xlink:from="Assets" xlink:to="CurrentAssets" weight="1.0" order="1.0"/>
  </link:calculationLink>
</link:linkbase>`

const presentationLinkbase = `<?xml version="1.0" encoding="UTF-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:presentationLink>
    <link:presentationArc xlink:from="Statement" xlink:to="Assets" order="1.0"/>
  </link:presentationLink>
</link:linkbase>`

const labelLinkbase = `<?xml version="1.0" encoding="UTF-8"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:labelLink>
    <link:label xlink:label="Assets" xml:lang="zh-TW">資產總額</link:label>
    <link:label xlink:label="Assets" xml:lang="en">Total assets</link:label>
  </link:labelLink>
</link:linkbase>`

const inlineDocument = `<!DOCTYPE html>
<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<div style="display:none">
  <ix:header>
    <ix:resources>
      <xbrli:context id="AsOf2020Q2">
        <xbrli:entity><xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier></xbrli:entity>
        <xbrli:period><xbrli:instant>2020-06-30</xbrli:instant></xbrli:period>
      </xbrli:context>
    </ix:resources>
  </ix:header>
</div>
<span><ix:nonNumeric name="tifrs:CompanyName" contextRef="AsOf2020Q2">台灣積體電路製造股份有限公司</ix:nonNumeric></span>
<table>
  <tr>
    <td>現金及約當現金　　Cash and cash equivalents</td>
    <td><ix:nonFraction name="tifrs-bsci-ci:Cash" contextRef="AsOf2020Q2" unitRef="TWD" decimals="0">455,399,315</ix:nonFraction></td>
  </tr>
  <tr>
    <td>資產總額</td>
    <td><ix:nonFraction name="tifrs-bsci-ci:Assets" contextRef="AsOf2020Q2" unitRef="TWD" decimals="0">2,706,286,837</ix:nonFraction></td>
  </tr>
</table>
</body>
</html>`

func buildZip(files map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(w.Close()).NotTo(HaveOccurred())
	return buf.Bytes()
}

type stubEngine struct {
	extraction *xbrl.Extraction
	err        error
}

func (s *stubEngine) Extract(path string) (*xbrl.Extraction, error) {
	return s.extraction, s.err
}

var _ = Describe("Parser", func() {
	var parser *xbrl.Parser

	BeforeEach(func() {
		parser = xbrl.NewParser()
	})

	Describe("format detection", func() {
		It("rejects content that is neither ZIP nor inline XBRL", func() {
			_, err := parser.Parse([]byte("<html><body>plain page</body></html>"), "2330", 109, 2)
			Expect(err).To(MatchError(xbrl.ErrUnknownFormat))
		})

		It("routes PK-signed content to the archive path", func() {
			content := buildZip(map[string]string{"tifrs-ci-cr-2020.xml": instanceDocument})
			pkg, err := parser.Parse(content, "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(pkg.Facts).NotTo(BeEmpty())
		})

		It("routes ix:nonFraction markers to the inline path", func() {
			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(pkg.Facts).NotTo(BeEmpty())
		})
	})

	Describe("ZIP packages", func() {
		It("parses the instance document and all three linkbases", func() {
			content := buildZip(map[string]string{
				"tifrs-ci-cr-2020.xml":     instanceDocument,
				"tifrs-ci-cr-2020_cal.xml": calculationLinkbase,
				"tifrs-ci-cr-2020_pre.xml": presentationLinkbase,
				"tifrs-ci-cr-2020_lab.xml": labelLinkbase,
			})

			pkg, err := parser.Parse(content, "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(pkg.StockID).To(Equal("2330"))
			Expect(pkg.Year).To(Equal(109))
			Expect(pkg.Quarter).To(Equal(2))

			Expect(pkg.Facts).To(HaveLen(2))
			Expect(pkg.Facts[0].Concept).To(Equal("Assets"))
			Expect(pkg.Facts[0].Value).To(Equal("2706286837"))
			Expect(pkg.Facts[0].ContextRef).To(Equal("AsOf2020Q2"))

			Expect(pkg.Contexts).To(HaveLen(2))
			Expect(pkg.Contexts["AsOf2020Q2"].Entity).To(Equal("2330"))
			Expect(pkg.Contexts["AsOf2020Q2"].Instant).To(Equal("2020-06-30"))
			Expect(pkg.Contexts["YTD2020Q2"].PeriodStart).To(Equal("2020-01-01"))
			Expect(pkg.Contexts["YTD2020Q2"].PeriodEnd).To(Equal("2020-06-30"))

			Expect(pkg.CalculationArcs["Assets"]).To(HaveLen(1))
			Expect(pkg.PresentationArcs["Statement"]).To(HaveLen(1))
			Expect(pkg.Labels).To(HaveKeyWithValue("Assets", "資產總額"))
			Expect(pkg.LabelsEn).To(HaveKeyWithValue("Assets", "Total assets"))
		})

		It("fails when the archive holds no instance document", func() {
			content := buildZip(map[string]string{
				"tifrs-ci-cr-2020_cal.xml": calculationLinkbase,
			})

			_, err := parser.Parse(content, "2330", 109, 2)
			Expect(err).To(MatchError(xbrl.ErrNoInstanceDocument))
		})

		It("treats one malformed linkbase as empty and keeps the rest", func() {
			content := buildZip(map[string]string{
				"tifrs-ci-cr-2020.xml":     instanceDocument,
				"tifrs-ci-cr-2020_cal.xml": "<link:linkbase><broken",
				"tifrs-ci-cr-2020_pre.xml": presentationLinkbase,
			})

			pkg, err := parser.Parse(content, "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(pkg.CalculationArcs).To(BeEmpty())
			Expect(pkg.PresentationArcs["Statement"]).To(HaveLen(1))
			Expect(pkg.Facts).To(HaveLen(2))
		})
	})

	Describe("inline XBRL documents", func() {
		It("extracts numeric facts with commas stripped", func() {
			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())

			var cash *xbrl.Fact
			for i := range pkg.Facts {
				if pkg.Facts[i].Concept == "Cash" {
					cash = &pkg.Facts[i]
				}
			}
			Expect(cash).NotTo(BeNil())
			Expect(cash.Value).To(Equal("455399315"))
			Expect(cash.Unit).To(Equal("TWD"))
			Expect(cash.ContextRef).To(Equal("AsOf2020Q2"))
		})

		It("extracts text facts verbatim", func() {
			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())

			values := pkg.FactValues()
			Expect(values).To(HaveKeyWithValue("CompanyName", "台灣積體電路製造股份有限公司"))
		})

		It("recovers contexts from the inline header", func() {
			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(pkg.Contexts).To(HaveKey("AsOf2020Q2"))
			Expect(pkg.Contexts["AsOf2020Q2"].Entity).To(Equal("2330"))
			Expect(pkg.Contexts["AsOf2020Q2"].Instant).To(Equal("2020-06-30"))
		})

		It("recovers bilingual labels from the rendered table rows", func() {
			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(pkg.Labels).To(HaveKeyWithValue("Cash", "現金及約當現金"))
			Expect(pkg.LabelsEn).To(HaveKeyWithValue("Cash", "Cash and cash equivalents"))
			Expect(pkg.Labels).To(HaveKeyWithValue("Assets", "資產總額"))
		})
	})

	Describe("engine fallback", func() {
		It("uses the engine's extraction when it succeeds", func() {
			parser.Engine = &stubEngine{extraction: &xbrl.Extraction{
				Facts: []xbrl.Fact{{Concept: "Assets", Value: "100", ContextRef: "c1"}},
				CalculationArcs: map[string][]xbrl.CalculationArc{
					"Assets": {{FromConcept: "Assets", ToConcept: "CurrentAssets", Weight: 1.0}},
				},
			}}

			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(pkg.Facts).To(HaveLen(1))
			Expect(pkg.Facts[0].Value).To(Equal("100"))
			Expect(pkg.CalculationArcs).To(HaveKey("Assets"))
		})

		It("falls back to native extraction when the engine fails", func() {
			parser.Engine = &stubEngine{err: errors.New("taxonomy unavailable")}

			pkg, err := parser.Parse([]byte(inlineDocument), "2330", 109, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(pkg.FactValues()).To(HaveKey("Cash"))
		})
	})
})
