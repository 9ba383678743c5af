package taxonomy_test

import (
	"context"
	"os"
	"path/filepath"

	"mops/internal/pkg/taxonomy"
	"mops/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const listPage = `<html><body><table>
<tr><td>2020年第2季起財報適用 tifrs-20200630.zip</td></tr>
<tr><td>2019年第1季至2020年第1季財報適用 tifrs-20190331.zip</td></tr>
<tr><td>2018年第3季財報適用 tifrs-20180930.zip</td></tr>
</table></body></html>`

var _ = Describe("Manager", func() {
	var manager *taxonomy.Manager
	var dir string
	var ctx context.Context

	BeforeEach(func() {
		testhelpers.Activate()

		var err error
		dir, err = os.MkdirTemp("", "taxonomy-test")
		Expect(err).NotTo(HaveOccurred())

		manager = taxonomy.NewManager(dir)
		manager.UseDefaultClient()
		ctx = context.Background()
	})

	AfterEach(func() {
		testhelpers.Deactivate()
		os.RemoveAll(dir)
	})

	mockListPage := func(body string) {
		testhelpers.New("https://mopsov.twse.com.tw").
			Get("/mops/web/t203sb03").
			Reply(200).
			BodyString(body)
	}

	Describe("Taxonomies", func() {
		It("parses ongoing, ranged and single-quarter entries", func() {
			mockListPage(listPage)

			taxonomies := manager.Taxonomies(ctx)
			Expect(testhelpers.IsDone()).To(BeTrue())
			Expect(taxonomies).To(HaveLen(3))

			ongoing := taxonomies[0]
			Expect(ongoing.Filename).To(Equal("tifrs-20200630.zip"))
			Expect(ongoing.IsOngoing).To(BeTrue())
			Expect(ongoing.StartYear).To(Equal(2020))
			Expect(ongoing.StartQuarter).To(Equal(2))
			Expect(ongoing.Type).To(Equal("tifrs"))

			ranged := taxonomies[1]
			Expect(ranged.Filename).To(Equal("tifrs-20190331.zip"))
			Expect(ranged.IsOngoing).To(BeFalse())
			Expect(ranged.StartYear).To(Equal(2019))
			Expect(ranged.EndYear).To(Equal(2020))
			Expect(ranged.EndQuarter).To(Equal(1))

			single := taxonomies[2]
			Expect(single.Filename).To(Equal("tifrs-20180930.zip"))
			Expect(single.StartYear).To(Equal(2018))
			Expect(single.EndYear).To(Equal(2018))
			Expect(single.EndQuarter).To(Equal(3))
		})

		It("falls back to the known package list when the page is down", func() {
			testhelpers.New("https://mopsov.twse.com.tw").
				Get("/mops/web/t203sb03").
				Reply(500).
				BodyString("maintenance")

			taxonomies := manager.Taxonomies(ctx)
			Expect(taxonomies).To(HaveLen(8))
			Expect(taxonomies[0].Filename).To(Equal("tifrs-20200630.zip"))
			Expect(taxonomies[0].IsOngoing).To(BeTrue())
			Expect(taxonomies[7].Filename).To(Equal("tifrs-20130331.zip"))
		})
	})

	Describe("ForPeriod", func() {
		BeforeEach(func() {
			mockListPage(listPage)
		})

		It("picks the ongoing package for current periods", func() {
			info := manager.ForPeriod(ctx, 2024, 1)
			Expect(info).NotTo(BeNil())
			Expect(info.Filename).To(Equal("tifrs-20200630.zip"))
		})

		It("picks a ranged package inside its window", func() {
			info := manager.ForPeriod(ctx, 2019, 3)
			Expect(info).NotTo(BeNil())
			Expect(info.Filename).To(Equal("tifrs-20190331.zip"))
		})

		It("honors the window boundaries", func() {
			info := manager.ForPeriod(ctx, 2020, 1)
			Expect(info).NotTo(BeNil())
			Expect(info.Filename).To(Equal("tifrs-20190331.zip"))

			info = manager.ForPeriod(ctx, 2020, 2)
			Expect(info.Filename).To(Equal("tifrs-20200630.zip"))
		})

		It("returns nil for periods before any package", func() {
			Expect(manager.ForPeriod(ctx, 2010, 1)).To(BeNil())
		})
	})

	Describe("EnsureTaxonomies", func() {
		It("downloads, extracts and maps missing packages", func() {
			mockListPage(`<html><body>2020年第2季起財報適用 tifrs-20200630.zip</body></html>`)

			zipDocument, err := testhelpers.CreateMockZipArchive(map[string]string{
				"tifrs-ci/tifrs-ci-cr-2020-06-30.xsd": `<xsd:schema></xsd:schema>`,
			})
			Expect(err).NotTo(HaveOccurred())

			testhelpers.New("https://mopsov.twse.com.tw").
				Get("/nas/taxonomy/tifrs-20200630.zip").
				Reply(200).
				Body(zipDocument)

			downloaded, err := manager.EnsureTaxonomies(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(testhelpers.IsDone()).To(BeTrue())
			Expect(downloaded).To(Equal([]string{"tifrs-20200630.zip"}))

			mappings := manager.SchemaMappings()
			Expect(mappings).To(HaveKey("tifrs-ci-cr-2020-06-30.xsd"))
			Expect(mappings["tifrs-ci-cr-2020-06-30.xsd"]).To(BeAnExistingFile())
		})

		It("skips packages already on disk", func() {
			mockListPage(`<html><body>2020年第2季起財報適用 tifrs-20200630.zip</body></html>`)

			zipDocument, err := testhelpers.CreateMockZipArchive(map[string]string{
				"tifrs-ci-cr-2020-06-30.xsd": `<xsd:schema></xsd:schema>`,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, "tifrs-20200630.zip"), zipDocument, 0o644)).To(Succeed())

			downloaded, err := manager.EnsureTaxonomies(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(downloaded).To(BeEmpty())
			Expect(manager.SchemaMappings()).To(HaveKey("tifrs-ci-cr-2020-06-30.xsd"))
		})
	})

	Describe("LocalSchemaPath", func() {
		It("walks the directory for schemas outside the mappings", func() {
			nested := filepath.Join(dir, "tifrs-20200630", "BSCI")
			Expect(os.MkdirAll(nested, 0o755)).To(Succeed())
			schemaPath := filepath.Join(nested, "tifrs-bsci-2020-06-30.xsd")
			Expect(os.WriteFile(schemaPath, []byte("<xsd:schema/>"), 0o644)).To(Succeed())

			path, ok := manager.LocalSchemaPath("tifrs-bsci-2020-06-30.xsd")
			Expect(ok).To(BeTrue())
			Expect(path).To(Equal(schemaPath))
		})

		It("reports missing schemas", func() {
			_, ok := manager.LocalSchemaPath("tifrs-ci-cr-1999-01-01.xsd")
			Expect(ok).To(BeFalse())
		})
	})
})
