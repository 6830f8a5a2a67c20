package pipeline

import (
	"errors"
	"sort"
	"strings"

	"promaster/internal"
	"promaster/internal/config"
	"promaster/internal/util"
)

const maxSupplierCandidates = 5

// ErrSupplierUnresolved fails a purchase order group whose supplier text
// matched no supplier contact at or above the threshold.
var ErrSupplierUnresolved = errors.New("supplier unresolved")

// SupplierMatcher scores supplier text against the supplier contacts. It is
// read-only after construction.
type SupplierMatcher struct {
	threshold float64
	suppliers []internal.Supplier
	keys      []string
}

func NewSupplierMatcher(suppliers []internal.Supplier, threshold float64) *SupplierMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = config.DefaultSupplierThreshold
	}
	m := &SupplierMatcher{threshold: threshold}
	for _, s := range suppliers {
		key := util.NormalizeSupplier(s.Name)
		if key == "" || s.ID <= 0 {
			continue
		}
		m.suppliers = append(m.suppliers, s)
		m.keys = append(m.keys, key)
	}
	return m
}

// Match accepts the best-scoring supplier when its score reaches the
// threshold. Ties keep the supplier listed first.
func (m *SupplierMatcher) Match(name string) internal.SupplierMatch {
	result := internal.SupplierMatch{Query: name}
	query := util.NormalizeSupplier(name)
	if query == "" || len(m.suppliers) == 0 {
		return result
	}

	scored := make([]internal.SupplierCandidate, 0, len(m.suppliers))
	for i, s := range m.suppliers {
		scored = append(scored, internal.SupplierCandidate{ID: s.ID, Name: s.Name, JobTitle: s.JobTitle, Score: util.Similarity(query, m.keys[i])})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > maxSupplierCandidates {
		scored = scored[:maxSupplierCandidates]
	}

	best := scored[0]
	result.Candidates = scored
	result.Confidence = best.Score
	if best.Score < m.threshold {
		return result
	}
	id := best.ID
	result.SupplierID = &id
	result.SupplierName = best.Name
	result.Abbreviation = abbreviation(best)
	return result
}

// abbreviation is the contact's jobTitle identifier when set, else the
// first four letters of its normalized name.
func abbreviation(c internal.SupplierCandidate) string {
	if id := strings.ToUpper(strings.TrimSpace(c.JobTitle)); id != "" {
		return id
	}
	return util.Abbreviation(c.Name)
}
