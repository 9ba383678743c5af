package xbrl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Classic XBRL instance documents report each fact as a namespaced
// element carrying a contextRef attribute; the concept is the element's
// local tag name. Contexts live in xbrli:context elements.

// ParseInstanceFacts walks the instance document and collects every
// element bearing a contextRef attribute as a fact.
func ParseInstanceFacts(content []byte) ([]Fact, error) {
	var facts []Fact

	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = passthroughCharset

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("instance document: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		contextRef := attrValue(elem.Attr, "contextRef")
		if contextRef == "" {
			continue
		}

		var value string
		if err := decoder.DecodeElement(&value, &elem); err != nil {
			continue
		}

		facts = append(facts, Fact{
			Concept:    elem.Name.Local,
			Value:      strings.TrimSpace(value),
			Unit:       attrValue(elem.Attr, "unitRef"),
			ContextRef: contextRef,
			Decimals:   parseDecimals(attrValue(elem.Attr, "decimals")),
		})
	}

	return facts, nil
}

type instanceContext struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier string `xml:"identifier"`
	} `xml:"entity"`
	Period struct {
		Instant   string `xml:"instant"`
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"period"`
}

// ParseInstanceContexts extracts every context element into a lookup by
// context id. Facts referencing an unknown context still come through;
// context resolution is best-effort.
func ParseInstanceContexts(content []byte) (map[string]Context, error) {
	contexts := make(map[string]Context)

	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = passthroughCharset

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("instance contexts: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok || elem.Name.Local != "context" {
			continue
		}

		var ctx instanceContext
		if err := decoder.DecodeElement(&ctx, &elem); err != nil {
			continue
		}

		contexts[ctx.ID] = Context{
			ContextID:   ctx.ID,
			Entity:      strings.TrimSpace(ctx.Entity.Identifier),
			PeriodStart: ctx.Period.StartDate,
			PeriodEnd:   ctx.Period.EndDate,
			Instant:     ctx.Period.Instant,
		}
	}

	return contexts, nil
}

// parseDecimals parses the decimals attribute, ignoring the XBRL "INF"
// marker and anything non-integer.
func parseDecimals(raw string) *int {
	if raw == "" || raw == "INF" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
