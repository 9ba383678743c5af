package xbrl

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Engine is an optional high-fidelity XBRL processor. When present it is
// tried first; any failure falls back to the lightweight extractors, so
// its absence or breakage is never a parse failure.
type Engine interface {
	// Extract loads the instance document at path, resolving whatever
	// schema references it can, and returns the full extraction.
	Extract(path string) (*Extraction, error)
}

// Extraction is the engine's output, shaped identically to what the
// lightweight extractors produce so the rest of the pipeline is
// backend-agnostic.
type Extraction struct {
	CalculationArcs  map[string][]CalculationArc
	PresentationArcs map[string][]PresentationArc
	Facts            []Fact
	Contexts         map[string]Context
	Labels           map[string]string
	LabelsEn         map[string]string
}

// SchemaProvider maps a filing's relative schema reference to a local
// taxonomy path, letting the engine resolve concepts offline.
type SchemaProvider interface {
	SchemaMappings() map[string]string
}

// Parser turns raw filing bytes into a Package. It is stateless and safe
// for concurrent use; both fields are optional.
type Parser struct {
	Engine  Engine
	Schemas SchemaProvider
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse auto-detects the filing format and dispatches. ZIP packages hold
// a classic instance document plus linkbases; post-2019 MOPS filings are
// a single iXBRL HTML document.
func (p *Parser) Parse(content []byte, stockID string, year, quarter int) (*Package, error) {
	switch {
	case len(content) >= 2 && content[0] == 'P' && content[1] == 'K':
		return p.parseZip(content, stockID, year, quarter)
	case bytes.Contains(content, []byte("ix:nonFraction")) || bytes.Contains(content, []byte("ix:nonNumeric")):
		return p.parseInline(content, stockID, year, quarter)
	default:
		return nil, ErrUnknownFormat
	}
}

func (p *Parser) parseZip(content []byte, stockID string, year, quarter int) (*Package, error) {
	files, err := extractZip(content)
	if err != nil {
		return nil, fmt.Errorf("xbrl: extract zip: %w", err)
	}

	instanceFile := findInstanceFile(files)
	if instanceFile == "" {
		return nil, ErrNoInstanceDocument
	}

	pkg := NewPackage(stockID, year, quarter)

	if p.Engine != nil {
		if extraction, err := p.engineExtractZip(files, instanceFile); err == nil {
			pkg.apply(extraction)
			return pkg, nil
		} else {
			log.Printf("xbrl engine failed for %s %d Q%d, falling back to native parsing: %v", stockID, year, quarter, err)
		}
	}

	for filename, data := range files {
		lower := strings.ToLower(filename)
		if !strings.HasSuffix(lower, ".xml") {
			continue
		}
		switch {
		case strings.Contains(lower, "_cal"):
			arcs, err := ParseCalculationLinkbase(data)
			if err != nil {
				log.Printf("skipping malformed calculation linkbase %s: %v", filename, err)
				continue
			}
			pkg.CalculationArcs = arcs
		case strings.Contains(lower, "_pre"):
			arcs, err := ParsePresentationLinkbase(data)
			if err != nil {
				log.Printf("skipping malformed presentation linkbase %s: %v", filename, err)
				continue
			}
			pkg.PresentationArcs = arcs
		case strings.Contains(lower, "_lab"):
			zh, en, err := ParseLabelLinkbase(data)
			if err != nil {
				log.Printf("skipping malformed label linkbase %s: %v", filename, err)
				continue
			}
			for k, v := range zh {
				pkg.Labels[k] = v
			}
			for k, v := range en {
				pkg.LabelsEn[k] = v
			}
		}
	}

	instance := files[instanceFile]
	facts, err := ParseInstanceFacts(instance)
	if err != nil {
		return nil, err
	}
	contexts, err := ParseInstanceContexts(instance)
	if err != nil {
		return nil, err
	}
	pkg.Facts = facts
	pkg.Contexts = contexts

	return pkg, nil
}

func (p *Parser) parseInline(content []byte, stockID string, year, quarter int) (*Package, error) {
	pkg := NewPackage(stockID, year, quarter)

	if p.Engine != nil {
		if extraction, err := p.engineExtractInline(content); err == nil {
			pkg.apply(extraction)
			return pkg, nil
		} else {
			log.Printf("xbrl engine failed for inline filing %s %d Q%d, falling back to native parsing: %v", stockID, year, quarter, err)
		}
	}

	facts, err := ParseInlineFacts(content)
	if err != nil {
		return nil, err
	}
	contexts, err := ParseInlineContexts(content)
	if err != nil {
		return nil, err
	}
	pkg.Facts = facts
	pkg.Contexts = contexts

	// No linkbase is reachable on this path, so labels come from the
	// rendered table rows instead.
	zh, en, err := ExtractLabelsFromHTML(content)
	if err != nil {
		log.Printf("label recovery failed for %s %d Q%d: %v", stockID, year, quarter, err)
	}
	pkg.Labels = zh
	pkg.LabelsEn = en

	return pkg, nil
}

// engineExtractZip materializes the package contents into a temp
// directory so the engine can follow relative references between the
// instance document and its linkbases.
func (p *Parser) engineExtractZip(files map[string][]byte, instanceFile string) (*Extraction, error) {
	tmpdir, err := os.MkdirTemp("", "xbrl-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	for filename, data := range files {
		path := filepath.Join(tmpdir, filepath.Clean(filename))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
	}

	return p.Engine.Extract(filepath.Join(tmpdir, filepath.Clean(instanceFile)))
}

func (p *Parser) engineExtractInline(content []byte) (*Extraction, error) {
	if p.Schemas != nil {
		content = ReplaceSchemaRefs(content, p.Schemas.SchemaMappings())
	}

	tmp, err := os.CreateTemp("", "ixbrl-*.html")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return p.Engine.Extract(tmp.Name())
}

func (p *Package) apply(e *Extraction) {
	if e.CalculationArcs != nil {
		p.CalculationArcs = e.CalculationArcs
	}
	if e.PresentationArcs != nil {
		p.PresentationArcs = e.PresentationArcs
	}
	p.Facts = e.Facts
	if e.Contexts != nil {
		p.Contexts = e.Contexts
	}
	if e.Labels != nil {
		p.Labels = e.Labels
	}
	if e.LabelsEn != nil {
		p.LabelsEn = e.LabelsEn
	}
}

// extractZip reads every file in the archive into memory. MOPS packages
// are a handful of XML files well under a few megabytes.
func extractZip(content []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		files[f.Name] = data
	}

	return files, nil
}

// findInstanceFile picks the instance document out of the package: an
// iXBRL .htm/.html if present, otherwise the one .xml that is not a
// linkbase or schema. Names are scanned in sorted order so the pick is
// deterministic.
func findInstanceFile(files map[string][]byte) string {
	names := make([]string, 0, len(files))
	for filename := range files {
		names = append(names, filename)
	}
	sort.Strings(names)

	var xmlCandidate string
	for _, filename := range names {
		lower := strings.ToLower(filename)
		if strings.HasSuffix(lower, ".htm") || strings.HasSuffix(lower, ".html") {
			return filename
		}
		if xmlCandidate == "" && strings.HasSuffix(lower, ".xml") && !isAncillaryFile(lower) {
			xmlCandidate = filename
		}
	}

	return xmlCandidate
}

func isAncillaryFile(lower string) bool {
	for _, marker := range []string{"_cal", "_pre", "_lab", "_def", "_ref", ".xsd"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
