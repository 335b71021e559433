package domain

// SortGap is the gap between successive integer sort keys, leaving
// room for later insertions without renumbering the whole sibling set.
const SortGap = 100000

// SortRelative computes new sort keys placing target among siblings, after
// the sibling with id afterID (or first when afterID is ""). It returns one
// patch per document whose sort key must change, target included. Siblings
// are taken in their current sort order.
func SortRelative(target *Document, siblings []*Document, afterID string) []map[string]any {
	ordered := make([]*Document, 0, len(siblings)+1)
	var anchorIdx = -1
	for _, sib := range siblings {
		if sib.ID() == target.ID() {
			continue
		}
		ordered = append(ordered, sib)
		if sib.ID() == afterID {
			anchorIdx = len(ordered) - 1
		}
	}

	// splice the target in after its anchor
	insertAt := 0
	if anchorIdx >= 0 {
		insertAt = anchorIdx + 1
	}
	ordered = append(ordered[:insertAt], append([]*Document{target}, ordered[insertAt:]...)...)

	// try to fit the target between its neighbors without touching them
	if fit := fitBetween(ordered, insertAt); fit != nil {
		return []map[string]any{{"_id": target.ID(), "sort": *fit}}
	}

	// renumber the whole set with fresh gaps
	patches := make([]map[string]any, 0, len(ordered))
	for i, doc := range ordered {
		want := float64((i + 1) * SortGap)
		if sortValue(doc) == want && doc.ID() != target.ID() {
			continue
		}
		patches = append(patches, map[string]any{"_id": doc.ID(), "sort": want})
	}
	return patches
}

func fitBetween(ordered []*Document, idx int) *float64 {
	var lo, hi float64
	hasLo, hasHi := idx > 0, idx < len(ordered)-1
	if hasLo {
		lo = sortValue(ordered[idx-1])
	}
	if hasHi {
		hi = sortValue(ordered[idx+1])
	}
	switch {
	case !hasLo && !hasHi:
		v := float64(SortGap)
		return &v
	case !hasLo:
		v := hi - SortGap
		return &v
	case !hasHi:
		v := lo + SortGap
		return &v
	case hi-lo > 1:
		v := lo + float64(int((hi-lo)/2))
		return &v
	default:
		return nil
	}
}

func sortValue(doc *Document) float64 {
	if v, ok := doc.Get("sort"); ok {
		if n, ok := toFloat(v); ok {
			return n
		}
	}
	return 0
}
