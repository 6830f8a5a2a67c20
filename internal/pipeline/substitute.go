package pipeline

import (
	"strings"

	"promaster/internal"
	"promaster/internal/util"
)

// SubstitutionTable maps a normalized ordered code to its approved
// replacement. Identity rules are dropped and the first rule for a code wins.
type SubstitutionTable struct {
	normalizer util.CodeNormalizer
	rules      map[string]internal.SubstitutionRule
}

func NewSubstitutionTable(rules []internal.SubstitutionRule, normalizer util.CodeNormalizer) *SubstitutionTable {
	t := &SubstitutionTable{normalizer: normalizer, rules: make(map[string]internal.SubstitutionRule, len(rules))}
	for _, r := range rules {
		from, to := normalizer.Key(r.From), normalizer.Key(r.To)
		if from == "" || to == "" || from == to {
			continue
		}
		if _, ok := t.rules[from]; ok {
			continue
		}
		t.rules[from] = internal.SubstitutionRule{From: strings.TrimSpace(r.From), To: strings.TrimSpace(r.To)}
	}
	return t
}

func (t *SubstitutionTable) Lookup(code string) (internal.SubstitutionRule, bool) {
	r, ok := t.rules[t.normalizer.Key(code)]
	return r, ok
}

func (t *SubstitutionTable) Len() int { return len(t.rules) }

// SubstitutionCandidate is a swap the operator may accept for one order.
type SubstitutionCandidate struct {
	OrderRef   string `json:"orderRef"`
	Code       string `json:"code"`
	Substitute string `json:"substitute"`
}

// Candidates lists each (order, code) pair that has a rule, in first-seen
// order.
func Candidates(lines []internal.OrderLine, table *SubstitutionTable) []SubstitutionCandidate {
	seen := map[string]struct{}{}
	var out []SubstitutionCandidate
	for _, line := range lines {
		rule, ok := table.Lookup(line.RawItemCode)
		if !ok {
			continue
		}
		key := line.OrderRef + "\x00" + table.normalizer.Key(line.RawItemCode)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, SubstitutionCandidate{OrderRef: line.OrderRef, Code: line.RawItemCode, Substitute: rule.To})
	}
	return out
}

// SwapDecider answers whether the operator accepted a swap.
type SwapDecider interface {
	SwapDecision(orderRef, code string) internal.Decision
}

// ApplySubstitutions swaps the resolved code of every line whose raw code
// has a rule the operator accepted. The table is consulted with the raw
// code only, so a replacement is never itself replaced.
func ApplySubstitutions(lines []internal.OrderLine, table *SubstitutionTable, decisions SwapDecider) []internal.AppliedSubstitution {
	var applied []internal.AppliedSubstitution
	for i := range lines {
		line := &lines[i]
		rule, ok := table.Lookup(line.RawItemCode)
		if !ok {
			continue
		}
		if decisions == nil || decisions.SwapDecision(line.OrderRef, line.RawItemCode) != internal.DecisionSwap {
			continue
		}
		if line.Substitute(rule.To) {
			applied = append(applied, internal.AppliedSubstitution{OrderRef: line.OrderRef, From: line.RawItemCode, To: rule.To})
		}
	}
	return applied
}
