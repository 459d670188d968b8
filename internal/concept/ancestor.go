package concept

// AncestorPair is one row of the hierarchy table.
type AncestorPair struct {
	AncestorID   int64 `json:"ancestor_concept_id"`
	DescendantID int64 `json:"descendant_concept_id"`
}

// AncestorMap maps a descendant concept to the ancestors its events roll up
// to. A concept without an entry has no roll-up.
type AncestorMap map[int64][]int64

// NewAncestorMap keys every pair by its descendant. Ancestors keep the order
// in which they first appear; repeated pairs are ignored.
func NewAncestorMap(pairs []AncestorPair) AncestorMap {
	m := make(AncestorMap)
	seen := make(map[AncestorPair]struct{}, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		m[p.DescendantID] = append(m[p.DescendantID], p.AncestorID)
	}
	return m
}

func (m AncestorMap) Ancestors(id int64) ([]int64, bool) {
	ancestors, ok := m[id]
	return ancestors, ok
}

// Pairs flattens the map back into hierarchy rows. Row order is unspecified.
func (m AncestorMap) Pairs() []AncestorPair {
	n := 0
	for _, a := range m {
		n += len(a)
	}
	pairs := make([]AncestorPair, 0, n)
	for descendant, ancestors := range m {
		for _, ancestor := range ancestors {
			pairs = append(pairs, AncestorPair{AncestorID: ancestor, DescendantID: descendant})
		}
	}
	return pairs
}
