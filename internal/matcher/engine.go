package matcher

import (
	"errors"

	"dupcheck/internal/domain"
)

// Tier pairs a key with the rule reported when that key matches.
type Tier struct {
	Key  domain.KeyID
	Rule domain.MatchRule
}

// tiers is the match cascade, strictest first. The first tier whose key is
// present in the reference set decides the result.
var tiers = []Tier{
	{Key: domain.Key4, Rule: domain.RuleDateAmountSupplierNumber},
	{Key: domain.Key1, Rule: domain.RuleDateAmountSupplier},
	{Key: domain.Key2, Rule: domain.RuleNumberAmountSupplier},
	{Key: domain.Key3, Rule: domain.RuleNumberDateSupplier},
}

// Tiers returns a copy of the cascade in evaluation order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// ReferenceIndex holds one key set per tier over a keyed reference set.
// It is read-only once built.
type ReferenceIndex struct {
	sets    [domain.KeyCount]map[string][]int
	size    int
	skipped int
}

// NewReferenceIndex indexes refs by every key. Several reference rows may
// share a key; all of their positions are kept. Records without keys are
// skipped and counted.
func NewReferenceIndex(refs []domain.InvoiceRecord) *ReferenceIndex {
	ix := &ReferenceIndex{}
	for k := range ix.sets {
		ix.sets[k] = make(map[string][]int, len(refs))
	}
	for pos := range refs {
		keys := refs[pos].Keys
		if keys.IsZero() {
			ix.skipped++
			continue
		}
		for k := range ix.sets {
			ix.sets[k][keys[k]] = append(ix.sets[k][keys[k]], pos)
		}
		ix.size++
	}
	return ix
}

// Len is the number of indexed reference records.
func (ix *ReferenceIndex) Len() int { return ix.size }

// Skipped is the number of reference records ignored for lacking keys.
func (ix *ReferenceIndex) Skipped() int { return ix.skipped }

// Contains reports whether any reference record has key value v for id.
func (ix *ReferenceIndex) Contains(id domain.KeyID, v string) bool {
	_, ok := ix.sets[id][v]
	return ok
}

// ErrUnkeyed is returned when a candidate reaches the engine without keys.
var ErrUnkeyed = errors.New("candidate has no keys")

// Match classifies one keyed candidate. It walks the cascade and stops at
// the first tier whose key is present among the reference keys.
func (ix *ReferenceIndex) Match(keys domain.Keys) (domain.MatchResult, error) {
	if keys.IsZero() {
		return domain.MatchResult{}, ErrUnkeyed
	}
	for _, t := range tiers {
		if rows, ok := ix.sets[t.Key][keys.Get(t.Key)]; ok {
			return domain.MatchResult{
				IsDuplicate:   true,
				Rule:          t.Rule,
				ReferenceRows: append([]int(nil), rows...),
			}, nil
		}
	}
	return domain.MatchResult{Rule: domain.RuleUnique}, nil
}

// MatchAll classifies every candidate in order.
func (ix *ReferenceIndex) MatchAll(candidates []domain.InvoiceRecord) ([]domain.CandidateResult, error) {
	out := make([]domain.CandidateResult, 0, len(candidates))
	for i := range candidates {
		res, err := ix.Match(candidates[i].Keys)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.CandidateResult{Record: candidates[i], Result: res})
	}
	return out, nil
}
