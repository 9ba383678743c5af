package xbrl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
)

// Linkbase parsing. Each parser walks one linkbase's XML token stream and
// groups arcs by their parent concept. A syntax error anywhere in the
// stream makes that single linkbase empty; the caller logs the error and
// keeps going with the rest of the filing.

// ParseCalculationLinkbase extracts every calculationArc grouped by its
// xlink:from concept. A missing weight attribute defaults to 1.0 and the
// arc is flagged WeightDefaulted; a missing order defaults to 0.0.
func ParseCalculationLinkbase(content []byte) (map[string][]CalculationArc, error) {
	result := make(map[string][]CalculationArc)

	err := walkElements(content, func(elem xml.StartElement) {
		if elem.Name.Local != "calculationArc" {
			return
		}

		from := attrValue(elem.Attr, "from")
		if from == "" {
			return
		}

		weight := 1.0
		defaulted := true
		if raw := attrValue(elem.Attr, "weight"); raw != "" {
			if w, err := strconv.ParseFloat(raw, 64); err == nil {
				weight = w
				defaulted = false
			}
		}
		if defaulted {
			log.Printf("calculation arc %s -> %s has no weight attribute, defaulting to 1.0", from, attrValue(elem.Attr, "to"))
		}

		result[from] = append(result[from], CalculationArc{
			FromConcept:     from,
			ToConcept:       attrValue(elem.Attr, "to"),
			Weight:          weight,
			Order:           attrFloat(elem.Attr, "order", 0.0),
			WeightDefaulted: defaulted,
		})
	})
	if err != nil {
		return make(map[string][]CalculationArc), fmt.Errorf("calculation linkbase: %w", err)
	}

	return result, nil
}

// ParsePresentationLinkbase extracts every presentationArc grouped by its
// xlink:from concept, carrying the optional preferredLabel role.
func ParsePresentationLinkbase(content []byte) (map[string][]PresentationArc, error) {
	result := make(map[string][]PresentationArc)

	err := walkElements(content, func(elem xml.StartElement) {
		if elem.Name.Local != "presentationArc" {
			return
		}

		from := attrValue(elem.Attr, "from")
		if from == "" {
			return
		}

		result[from] = append(result[from], PresentationArc{
			FromConcept:    from,
			ToConcept:      attrValue(elem.Attr, "to"),
			Order:          attrFloat(elem.Attr, "order", 0.0),
			PreferredLabel: attrValue(elem.Attr, "preferredLabel"),
		})
	})
	if err != nil {
		return make(map[string][]PresentationArc), fmt.Errorf("presentation linkbase: %w", err)
	}

	return result, nil
}

// ParseLabelLinkbase extracts bilingual labels keyed by the label
// element's xlink:label anchor. The anchor is used as-is without
// resolving the loc/labelArc indirection; Taiwan IFRS linkbases reuse
// the concept name as the anchor so the shortcut holds there, and the
// rendered-HTML fallback covers inline filings where it does not.
func ParseLabelLinkbase(content []byte) (map[string]string, map[string]string, error) {
	labelsZh := make(map[string]string)
	labelsEn := make(map[string]string)

	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = passthroughCharset

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return make(map[string]string), make(map[string]string), fmt.Errorf("label linkbase: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok || elem.Name.Local != "label" {
			continue
		}

		lang := strings.ToLower(attrValue(elem.Attr, "lang"))
		anchor := attrValue(elem.Attr, "label")

		var text string
		if err := decoder.DecodeElement(&text, &elem); err != nil {
			continue
		}

		switch {
		case strings.Contains(lang, "zh") || strings.Contains(lang, "tw"):
			labelsZh[anchor] = text
		case strings.Contains(lang, "en"):
			labelsEn[anchor] = text
		}
	}

	return labelsZh, labelsEn, nil
}

// walkElements feeds every StartElement in the document to fn.
func walkElements(content []byte, fn func(xml.StartElement)) error {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = passthroughCharset

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if elem, ok := token.(xml.StartElement); ok {
			fn(elem)
		}
	}
}

// passthroughCharset treats any declared charset as UTF-8. MOPS files
// declare ascii or big5 wrappers around content that is already UTF-8.
func passthroughCharset(charset string, input io.Reader) (io.Reader, error) {
	return input, nil
}

// attrValue returns the attribute with the given local name, so
// xlink:from matches "from" regardless of prefix binding.
func attrValue(attrs []xml.Attr, name string) string {
	for _, attr := range attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func attrFloat(attrs []xml.Attr, name string, fallback float64) float64 {
	raw := attrValue(attrs, name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
