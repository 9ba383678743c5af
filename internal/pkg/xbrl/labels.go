package xbrl

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// ExtractLabelsFromHTML recovers bilingual labels from the rendered iXBRL
// table. Taiwan IFRS filings render each figure in a table row whose first
// text cell carries the Chinese and English labels separated by a
// full-width double space, e.g. "現金及約當現金　　Cash and cash equivalents".
// Used when no label linkbase is resolvable for an inline filing.
func ExtractLabelsFromHTML(content []byte) (map[string]string, map[string]string, error) {
	labelsZh := make(map[string]string)
	labelsEn := make(map[string]string)

	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return labelsZh, labelsEn, fmt.Errorf("label recovery: %w", err)
	}

	traverse(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !strings.Contains(strings.ToLower(n.Data), "nonfraction") {
			return
		}

		name := nodeAttr(n, "name")
		if name == "" {
			return
		}
		concept := conceptFromName(name)

		if _, ok := labelsZh[concept]; ok {
			return
		}

		row := ancestorRow(n)
		if row == nil {
			return
		}

		text := firstLabelText(row)
		if text == "" {
			return
		}

		zh, en := splitBilingual(text)
		if zh != "" {
			labelsZh[concept] = zh
		}
		if en != "" {
			labelsEn[concept] = en
		}
	})

	return labelsZh, labelsEn, nil
}

// ancestorRow walks up at most 15 levels looking for the enclosing table
// row.
func ancestorRow(n *html.Node) *html.Node {
	parent := n.Parent
	for i := 0; i < 15 && parent != nil; i++ {
		if parent.Type == html.ElementNode && strings.Contains(strings.ToLower(parent.Data), "tr") {
			return parent
		}
		parent = parent.Parent
	}
	return nil
}

// firstLabelText returns the text of the row's first cell that is not
// purely numeric. Cells holding only the figure itself are skipped.
func firstLabelText(row *html.Node) string {
	var found string

	traverse(row, func(cell *html.Node) {
		if found != "" || cell.Type != html.ElementNode {
			return
		}
		tag := strings.ToLower(cell.Data)
		if !strings.Contains(tag, "td") && !strings.Contains(tag, "th") {
			return
		}

		text := nodeText(cell)
		if text == "" || isPureNumber(text) {
			return
		}
		found = text
	})

	return found
}

func isPureNumber(text string) bool {
	cleaned := strings.NewReplacer(",", "", "-", "", ".", "", " ", "").Replace(text)
	if cleaned == "" {
		return false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitBilingual separates "中文標籤　　English label" into its two parts,
// preferring the full-width double space Taiwan IFRS filings use, then two
// ASCII spaces. A single unsplit label is classified by CJK content.
func splitBilingual(text string) (zh, en string) {
	parts := strings.SplitN(text, "　　", 2)
	if len(parts) < 2 {
		parts = strings.SplitN(text, "  ", 2)
	}

	if len(parts) >= 2 {
		zh = strings.TrimSpace(parts[0])
		en = truncateLabel(strings.TrimSpace(parts[1]))
		return zh, en
	}

	if containsCJK(text) {
		return truncateLabel(text), ""
	}
	return "", truncateLabel(text)
}

func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func truncateLabel(text string) string {
	runes := []rune(text)
	if len(runes) > 100 {
		return string(runes[:100])
	}
	return text
}

// ReplaceSchemaRefs rewrites the filing's relative schemaRef to a file://
// URI pointing at the locally extracted taxonomy, so an engine loading the
// document resolves concepts against the local schema instead of trying
// the network. Only the first mapping present in both the document and the
// filesystem is applied. Any failure leaves the content untouched.
func ReplaceSchemaRefs(content []byte, schemaMappings map[string]string) []byte {
	doc := string(content)

	for relative, localPath := range schemaMappings {
		if _, err := os.Stat(localPath); err != nil {
			continue
		}

		oldRef := fmt.Sprintf("xlink:href=%q", relative)
		if !strings.Contains(doc, oldRef) {
			continue
		}

		newRef := fmt.Sprintf("xlink:href=\"file://%s\"", localPath)
		doc = strings.ReplaceAll(doc, oldRef, newRef)
		log.Printf("replaced schema ref %s -> %s", relative, localPath)
		break
	}

	return []byte(doc)
}
