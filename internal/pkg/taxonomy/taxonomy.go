// Package taxonomy downloads and manages the Taiwan IFRS taxonomy
// packages published on MOPS. Filings reference taxonomy schemas by bare
// filename, so each package is kept extracted on disk and mapped from
// schema name to local path.
package taxonomy

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	listPageURL     = "https://mopsov.twse.com.tw/mops/web/t203sb03"
	downloadBaseURL = "https://mopsov.twse.com.tw/nas/taxonomy/"

	defaultDir     = "taxonomy"
	defaultTimeout = 60 * time.Second
)

// TaxonomyInfo describes one taxonomy package and the reporting periods
// it applies to. Years are western calendar.
type TaxonomyInfo struct {
	Filename     string `json:"filename"`
	Description  string `json:"description"`
	Type         string `json:"type"` // tifrs or tw-gaap
	StartYear    int    `json:"start_year"`
	StartQuarter int    `json:"start_quarter"`
	EndYear      int    `json:"end_year,omitempty"`
	EndQuarter   int    `json:"end_quarter,omitempty"`
	IsOngoing    bool   `json:"is_ongoing"`
}

// The MOPS page lists packages as free text, in three shapes:
// "2020年第2季起財報適用" (ongoing), "2019年第1季至2020年第1季財報適用"
// (range) and "2011年第3季財報適用" (single quarter).
var (
	reOngoing = regexp.MustCompile(`(\d{4})年第(\d)季起財報適用\s*(tifrs-\d+\.zip|tw-gaap-[\d-]+\.zip)`)
	reRange   = regexp.MustCompile(`(\d{4})年第(\d)季至(\d{4})年第(\d)季?財報適用\s*(tifrs-\d+\.zip|tw-gaap-[\d-]+\.zip)`)
	reSingle  = regexp.MustCompile(`(\d{4})年第(\d)季財報適用\s*(tifrs-\d+\.zip|tw-gaap-[\d-]+\.zip)`)

	reZipDate = regexp.MustCompile(`tifrs-(\d{4})(\d{2})(\d{2})\.zip`)
)

// Manager keeps the taxonomy directory populated and answers which
// package covers a reporting period. Safe for concurrent use.
type Manager struct {
	dir    string
	client *http.Client

	mu             sync.RWMutex
	taxonomies     []TaxonomyInfo
	schemaMappings map[string]string
}

// NewManager returns a manager rooted at dir; pass "" for ./taxonomy.
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = defaultDir
	}
	return &Manager{
		dir:            dir,
		client:         &http.Client{Timeout: defaultTimeout},
		schemaMappings: make(map[string]string),
	}
}

// UseDefaultClient switches to http.DefaultClient so tests can install a
// mock transport.
func (m *Manager) UseDefaultClient() {
	m.client = http.DefaultClient
}

// Dir exposes the taxonomy directory root.
func (m *Manager) Dir() string {
	return m.dir
}

// EnsureTaxonomies scrapes the MOPS list, downloads and extracts any
// missing packages and rebuilds the schema mappings. Returns the
// filenames downloaded this run.
func (m *Manager) EnsureTaxonomies(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("taxonomy: create dir: %w", err)
	}

	taxonomies := m.scrapeList(ctx)

	var downloaded []string
	for _, taxonomy := range taxonomies {
		zipPath := filepath.Join(m.dir, taxonomy.Filename)
		extractDir := filepath.Join(m.dir, strings.TrimSuffix(taxonomy.Filename, ".zip"))

		if _, err := os.Stat(zipPath); os.IsNotExist(err) {
			log.Printf("downloading taxonomy %s", taxonomy.Filename)
			if err := m.download(ctx, taxonomy.Filename, zipPath); err != nil {
				log.Printf("taxonomy download failed for %s: %v", taxonomy.Filename, err)
				continue
			}
			downloaded = append(downloaded, taxonomy.Filename)
		}

		if _, err := os.Stat(extractDir); os.IsNotExist(err) {
			if _, zipErr := os.Stat(zipPath); zipErr == nil {
				log.Printf("extracting taxonomy %s", taxonomy.Filename)
				if err := extractArchive(zipPath, extractDir); err != nil {
					log.Printf("taxonomy extract failed for %s: %v", taxonomy.Filename, err)
				}
			}
		}
	}

	mappings := m.buildSchemaMappings(taxonomies)

	m.mu.Lock()
	m.taxonomies = taxonomies
	m.schemaMappings = mappings
	m.mu.Unlock()

	return downloaded, nil
}

// Taxonomies returns the known package list, scraping it first when the
// manager has never refreshed.
func (m *Manager) Taxonomies(ctx context.Context) []TaxonomyInfo {
	m.mu.RLock()
	cached := m.taxonomies
	m.mu.RUnlock()
	if len(cached) > 0 {
		return cached
	}

	taxonomies := m.scrapeList(ctx)
	m.mu.Lock()
	m.taxonomies = taxonomies
	m.mu.Unlock()
	return taxonomies
}

// ForPeriod returns the taxonomy covering one reporting period, western
// year. The list is ordered newest first and the first match wins.
func (m *Manager) ForPeriod(ctx context.Context, year, quarter int) *TaxonomyInfo {
	for _, taxonomy := range m.Taxonomies(ctx) {
		if taxonomy.IsOngoing {
			if year > taxonomy.StartYear || (year == taxonomy.StartYear && quarter >= taxonomy.StartQuarter) {
				t := taxonomy
				return &t
			}
			continue
		}

		start := taxonomy.StartYear*10 + taxonomy.StartQuarter
		endYear, endQuarter := taxonomy.EndYear, taxonomy.EndQuarter
		if endYear == 0 {
			endYear = taxonomy.StartYear
		}
		if endQuarter == 0 {
			endQuarter = taxonomy.StartQuarter
		}
		end := endYear*10 + endQuarter
		period := year*10 + quarter

		if start <= period && period <= end {
			t := taxonomy
			return &t
		}
	}
	return nil
}

// SchemaMappings returns schema filename to local path for every
// extracted package, the shape the filing parser consumes.
func (m *Manager) SchemaMappings() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mappings := make(map[string]string, len(m.schemaMappings))
	for name, path := range m.schemaMappings {
		mappings[name] = path
	}
	return mappings
}

// LocalSchemaPath resolves one schema reference, falling back to a
// directory walk for schemas outside the precomputed mappings.
func (m *Manager) LocalSchemaPath(schemaRef string) (string, bool) {
	m.mu.RLock()
	path, ok := m.schemaMappings[schemaRef]
	m.mu.RUnlock()
	if ok {
		return path, true
	}

	found := findFile(m.dir, schemaRef)
	if found == "" {
		return "", false
	}

	m.mu.Lock()
	m.schemaMappings[schemaRef] = found
	m.mu.Unlock()
	return found, true
}

// scrapeList reads the MOPS taxonomy page. Any failure falls back to the
// known historical package list, which covers filings back to 2013.
func (m *Manager) scrapeList(ctx context.Context) []TaxonomyInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listPageURL, nil)
	if err != nil {
		return fallbackList()
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := m.client.Do(req)
	if err != nil {
		log.Printf("taxonomy list scrape failed: %v", err)
		return fallbackList()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("taxonomy list scrape failed: HTTP %d", resp.StatusCode)
		return fallbackList()
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Printf("taxonomy list parse failed: %v", err)
		return fallbackList()
	}

	taxonomies := parseListText(doc.Text())
	if len(taxonomies) == 0 {
		log.Printf("taxonomy list page held no packages, using fallback")
		return fallbackList()
	}

	log.Printf("found %d taxonomies on MOPS", len(taxonomies))
	return taxonomies
}

// parseListText matches the three period shapes in order. Range entries
// also match the single-quarter pattern on their end period, so the
// earlier patterns claim each filename first.
func parseListText(text string) []TaxonomyInfo {
	var taxonomies []TaxonomyInfo
	seen := make(map[string]bool)

	add := func(t TaxonomyInfo) {
		if seen[t.Filename] {
			return
		}
		seen[t.Filename] = true
		taxonomies = append(taxonomies, t)
	}

	for _, match := range reOngoing.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(match[1])
		quarter, _ := strconv.Atoi(match[2])
		add(TaxonomyInfo{
			Filename:     match[3],
			Description:  fmt.Sprintf("%d年第%d季起財報適用", year, quarter),
			Type:         taxonomyType(match[3]),
			StartYear:    year,
			StartQuarter: quarter,
			IsOngoing:    true,
		})
	}

	for _, match := range reRange.FindAllStringSubmatch(text, -1) {
		startYear, _ := strconv.Atoi(match[1])
		startQuarter, _ := strconv.Atoi(match[2])
		endYear, _ := strconv.Atoi(match[3])
		endQuarter, err := strconv.Atoi(match[4])
		if err != nil {
			endQuarter = 4
		}
		add(TaxonomyInfo{
			Filename:     match[5],
			Description:  fmt.Sprintf("%d年第%d季至%d年第%d季財報適用", startYear, startQuarter, endYear, endQuarter),
			Type:         taxonomyType(match[5]),
			StartYear:    startYear,
			StartQuarter: startQuarter,
			EndYear:      endYear,
			EndQuarter:   endQuarter,
		})
	}

	for _, match := range reSingle.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(match[1])
		quarter, _ := strconv.Atoi(match[2])
		add(TaxonomyInfo{
			Filename:     match[3],
			Description:  fmt.Sprintf("%d年第%d季財報適用", year, quarter),
			Type:         taxonomyType(match[3]),
			StartYear:    year,
			StartQuarter: quarter,
			EndYear:      year,
			EndQuarter:   quarter,
		})
	}

	return taxonomies
}

func taxonomyType(filename string) string {
	if strings.HasPrefix(filename, "tifrs") {
		return "tifrs"
	}
	return "tw-gaap"
}

// fallbackList covers every TIFRS package MOPS has published, newest
// first so ForPeriod prefers current packages.
func fallbackList() []TaxonomyInfo {
	entries := []struct {
		filename                 string
		startYear, startQuarter  int
		endYear, endQuarter      int
		ongoing                  bool
	}{
		{"tifrs-20200630.zip", 2020, 2, 0, 0, true},
		{"tifrs-20190331.zip", 2019, 1, 2020, 1, false},
		{"tifrs-20180930.zip", 2018, 3, 2018, 4, false},
		{"tifrs-20180331.zip", 2018, 1, 2018, 2, false},
		{"tifrs-20170331.zip", 2017, 1, 2017, 4, false},
		{"tifrs-20150331.zip", 2015, 1, 2016, 4, false},
		{"tifrs-20140331.zip", 2014, 1, 2014, 4, false},
		{"tifrs-20130331.zip", 2013, 1, 2013, 4, false},
	}

	taxonomies := make([]TaxonomyInfo, 0, len(entries))
	for _, e := range entries {
		taxonomies = append(taxonomies, TaxonomyInfo{
			Filename:     e.filename,
			Type:         "tifrs",
			StartYear:    e.startYear,
			StartQuarter: e.startQuarter,
			EndYear:      e.endYear,
			EndQuarter:   e.endQuarter,
			IsOngoing:    e.ongoing,
		})
	}
	return taxonomies
}

func (m *Manager) download(ctx context.Context, filename, zipPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadBaseURL+filename, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("taxonomy: HTTP %d downloading %s", resp.StatusCode, filename)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return err
	}

	log.Printf("downloaded %s (%.1f KB)", filename, float64(written)/1024)
	return nil
}

func extractArchive(zipPath, extractDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		target := filepath.Join(extractDir, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(extractDir)+string(os.PathSeparator)) {
			return fmt.Errorf("taxonomy: archive entry escapes extract dir: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		src, err := file.Open()
		if err != nil {
			return err
		}

		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return err
		}

		_, err = io.Copy(dst, src)
		dst.Close()
		src.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

// buildSchemaMappings derives the entry-point schema name of each TIFRS
// package (tifrs-20200630.zip holds tifrs-ci-cr-2020-06-30.xsd) and
// locates it inside the extracted tree.
func (m *Manager) buildSchemaMappings(taxonomies []TaxonomyInfo) map[string]string {
	mappings := make(map[string]string)

	for _, taxonomy := range taxonomies {
		if taxonomy.Type != "tifrs" {
			continue
		}

		match := reZipDate.FindStringSubmatch(taxonomy.Filename)
		if match == nil {
			continue
		}
		schemaName := fmt.Sprintf("tifrs-ci-cr-%s-%s-%s.xsd", match[1], match[2], match[3])

		extractDir := filepath.Join(m.dir, strings.TrimSuffix(taxonomy.Filename, ".zip"))
		if _, err := os.Stat(extractDir); err != nil {
			continue
		}

		if path := findFile(extractDir, schemaName); path != "" {
			mappings[schemaName] = path
		}
	}

	log.Printf("generated %d schema mappings", len(mappings))
	return mappings
}

func findFile(root, name string) string {
	var found string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
