package xbrl

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Inline XBRL (iXBRL) embeds facts in HTML as ix:nonFraction and
// ix:nonNumeric elements. Real MOPS filings are not well-formed XML, so
// extraction goes through the lenient HTML parser, which lower-cases tag
// and attribute names and may mangle namespace prefixes. All matching
// below is therefore case-insensitive substring matching on local names.

// ParseInlineFacts extracts numeric and text facts from an iXBRL HTML
// document.
func ParseInlineFacts(content []byte) ([]Fact, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("inline document: %w", err)
	}

	var facts []Fact

	traverse(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}

		tag := strings.ToLower(n.Data)
		switch {
		case strings.Contains(tag, "nonfraction"):
			name := nodeAttr(n, "name")
			if name == "" {
				return
			}

			value := strings.ReplaceAll(nodeText(n), ",", "")

			facts = append(facts, Fact{
				Concept:    conceptFromName(name),
				Value:      value,
				Unit:       nodeAttr(n, "unitref"),
				ContextRef: nodeAttr(n, "contextref"),
				Decimals:   parseDecimals(nodeAttr(n, "decimals")),
			})

		case strings.Contains(tag, "nonnumeric"):
			name := nodeAttr(n, "name")
			if name == "" {
				return
			}

			facts = append(facts, Fact{
				Concept:    conceptFromName(name),
				Value:      nodeText(n),
				ContextRef: nodeAttr(n, "contextref"),
			})
		}
	})

	return facts, nil
}

// ParseInlineContexts recovers contexts from the ix:header resources.
// Tag names are matched by substring to survive whatever the HTML
// normalization did to the xbrli: prefix.
func ParseInlineContexts(content []byte) (map[string]Context, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("inline contexts: %w", err)
	}

	contexts := make(map[string]Context)

	traverse(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !strings.Contains(strings.ToLower(n.Data), "context") {
			return
		}

		ctxID := nodeAttr(n, "id")
		if ctxID == "" {
			return
		}

		ctx := Context{ContextID: ctxID}

		traverse(n, func(child *html.Node) {
			if child.Type != html.ElementNode {
				return
			}
			tag := strings.ToLower(child.Data)
			switch {
			case strings.Contains(tag, "identifier") && ctx.Entity == "":
				ctx.Entity = strings.TrimSpace(nodeText(child))
			case strings.Contains(tag, "instant"):
				ctx.Instant = strings.TrimSpace(nodeText(child))
			case strings.Contains(tag, "startdate"):
				ctx.PeriodStart = strings.TrimSpace(nodeText(child))
			case strings.Contains(tag, "enddate"):
				ctx.PeriodEnd = strings.TrimSpace(nodeText(child))
			}
		})

		contexts[ctxID] = ctx
	})

	return contexts, nil
}

// conceptFromName strips the namespace prefix from an ix name attribute,
// "tifrs-bsci-ci:Assets" -> "Assets".
func conceptFromName(name string) string {
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// traverse applies fn to n and all its descendants in document order.
func traverse(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverse(c, fn)
	}
}

// nodeAttr returns the attribute value by (lower-cased) key.
func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}

// nodeText concatenates all text content under n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	traverse(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(b.String())
}
