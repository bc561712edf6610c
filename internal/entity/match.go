package domain

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// MatchCutoff is the minimum similarity ratio for an approximate match.
const MatchCutoff = 0.6

// Find resolves a free-text product query: exact key first (trimmed,
// case-insensitive), then the single closest key whose similarity ratio is at
// least MatchCutoff. Equal scores keep the earliest key in catalog order.
func (c *Catalog) Find(query string) (Product, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if p, ok := c.products[q]; ok {
		return p, true
	}
	key, ok := closestMatch(q, c.keys, MatchCutoff)
	if !ok {
		return Product{}, false
	}
	return c.products[key], true
}

func closestMatch(word string, candidates []string, cutoff float64) (string, bool) {
	m := difflib.NewMatcher(nil, nil)
	m.SetSeq2(runes(word))

	best, bestScore := "", -1.0
	for _, cand := range candidates {
		m.SetSeq1(runes(cand))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		score := m.Ratio()
		if score >= cutoff && score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best, bestScore >= cutoff
}

func runes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
