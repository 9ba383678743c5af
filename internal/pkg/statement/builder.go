package statement

import (
	"log"
	"sort"

	"mops/internal/pkg/numerics"
	"mops/internal/pkg/xbrl"
)

// maxDepth caps tree recursion against linkbase malformations the cycle
// guard does not catch. Levels beyond it are silently truncated.
const maxDepth = 20

// BuildWeightMap flattens the calculation arcs into a child concept →
// weight lookup. When a child is a target of multiple parents the last
// arc wins; Taiwan IFRS summation sets do not overlap for the statements
// this system targets.
func BuildWeightMap(calculationArcs map[string][]xbrl.CalculationArc) map[string]float64 {
	weights := make(map[string]float64)
	for _, arcs := range calculationArcs {
		for _, arc := range arcs {
			weights[arc.ToConcept] = arc.Weight
		}
	}
	return weights
}

// treeBuilder carries the shared inputs and the single visited set
// threaded through the whole recursive build.
type treeBuilder struct {
	arcs       map[string][]xbrl.PresentationArc
	labelsZh   map[string]string
	labelsEn   map[string]string
	factValues map[string]string
	weights    map[string]float64
	visited    map[string]bool
}

// BuildTree assembles the ordered FinancialItem forest from presentation
// arcs, the weight map, fact values and labels. With no presentation
// hierarchy at all it degrades to a flat, sorted list of every concept
// that has a value.
func BuildTree(
	presentationArcs map[string][]xbrl.PresentationArc,
	labelsZh, labelsEn map[string]string,
	factValues map[string]string,
	weights map[string]float64,
) []*FinancialItem {
	if len(presentationArcs) == 0 {
		log.Printf("no presentation arcs found, falling back to flat fact list")
		return flatItems(factValues, labelsZh, labelsEn)
	}

	b := &treeBuilder{
		arcs:       presentationArcs,
		labelsZh:   labelsZh,
		labelsEn:   labelsEn,
		factValues: factValues,
		weights:    weights,
		visited:    make(map[string]bool),
	}

	return b.build(b.rootConcepts(), 0)
}

// rootConcepts are arc sources never used as a target, sorted for
// determinism since no order is defined between unrelated subtrees.
func (b *treeBuilder) rootConcepts() []string {
	targets := make(map[string]bool)
	for _, arcs := range b.arcs {
		for _, arc := range arcs {
			targets[arc.ToConcept] = true
		}
	}

	var roots []string
	for source := range b.arcs {
		if !targets[source] {
			roots = append(roots, source)
		}
	}
	sort.Strings(roots)
	return roots
}

func (b *treeBuilder) build(concepts []string, level int) []*FinancialItem {
	if level > maxDepth {
		return nil
	}

	var items []*FinancialItem
	for _, concept := range concepts {
		if b.visited[concept] {
			continue
		}
		b.visited[concept] = true

		items = append(items, &FinancialItem{
			AccountCode:   concept,
			AccountName:   labelOrConcept(b.labelsZh, concept),
			AccountNameEn: b.labelsEn[concept],
			Value:         numerics.ParseFinancialValue(b.factValues[concept]),
			Weight:        b.weight(concept),
			Level:         level,
			Children:      b.build(b.childConcepts(concept), level+1),
		})
	}
	return items
}

// childConcepts returns the parent's arc targets ordered by arc order.
func (b *treeBuilder) childConcepts(parent string) []string {
	arcs := make([]xbrl.PresentationArc, len(b.arcs[parent]))
	copy(arcs, b.arcs[parent])
	sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].Order < arcs[j].Order })

	concepts := make([]string, len(arcs))
	for i, arc := range arcs {
		concepts[i] = arc.ToConcept
	}
	return concepts
}

// weight defaults to +1.0: items never appearing as a calculation target
// are additive by convention.
func (b *treeBuilder) weight(concept string) float64 {
	if w, ok := b.weights[concept]; ok {
		return w
	}
	return 1.0
}

func flatItems(factValues map[string]string, labelsZh, labelsEn map[string]string) []*FinancialItem {
	concepts := make([]string, 0, len(factValues))
	for concept := range factValues {
		concepts = append(concepts, concept)
	}
	sort.Strings(concepts)

	items := make([]*FinancialItem, 0, len(concepts))
	for _, concept := range concepts {
		items = append(items, &FinancialItem{
			AccountCode:   concept,
			AccountName:   labelOrConcept(labelsZh, concept),
			AccountNameEn: labelsEn[concept],
			Value:         numerics.ParseFinancialValue(factValues[concept]),
			Weight:        1.0,
			Level:         0,
			Children:      []*FinancialItem{},
		})
	}
	return items
}

func labelOrConcept(labels map[string]string, concept string) string {
	if label, ok := labels[concept]; ok && label != "" {
		return label
	}
	return concept
}

// Flatten walks the tree depth-first and returns every item as a copy
// with its children dropped, for callers that want a table view.
func Flatten(items []*FinancialItem) []*FinancialItem {
	var result []*FinancialItem
	var walk func([]*FinancialItem)
	walk = func(items []*FinancialItem) {
		for _, item := range items {
			flat := *item
			flat.Children = []*FinancialItem{}
			result = append(result, &flat)
			walk(item.Children)
		}
	}
	walk(items)
	return result
}
