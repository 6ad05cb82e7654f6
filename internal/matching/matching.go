// Package matching scores element descriptions against a caller's target text.
package matching

import (
	"sort"
	"strings"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// Score tiers.
const (
	ExactScore     = 1.0
	SubstringScore = 0.9
	TokenWeight    = 0.7

	// AcceptScore is the bar FilterAndRank keeps candidates above.
	AcceptScore = 0.5
)

var tokenSeparators = strings.NewReplacer(".", " ", "_", " ")

// Score rates how well description matches target, case-insensitively, in [0, 1].
func Score(description, target string) float64 {
	desc := strings.ToLower(description)
	tgt := strings.ToLower(target)

	if desc == tgt {
		return ExactScore
	}
	if tgt != "" && strings.Contains(desc, tgt) {
		return SubstringScore
	}

	tokens := strings.Fields(tokenSeparators.Replace(tgt))
	if len(tokens) == 0 {
		return 0
	}

	matched := 0
	for _, tok := range tokens {
		if strings.Contains(desc, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens)) * TokenWeight
}

// Scored pairs an element with its score against the target.
type Scored struct {
	Element element.UIElement
	Score   float64
}

// Rank scores every candidate and sorts them best first. Ties keep input order.
func Rank(candidates []element.UIElement, target string) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Element: c, Score: Score(c.Description, target)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// FilterAndRank keeps candidates scoring above AcceptScore, best first. When none
// clears the bar the single best candidate is returned, so the result is never empty
// for non-empty input.
func FilterAndRank(candidates []element.UIElement, target string) []element.UIElement {
	if len(candidates) == 0 {
		return nil
	}

	scored := Rank(candidates, target)
	kept := make([]element.UIElement, 0, len(scored))
	for _, s := range scored {
		if s.Score > AcceptScore {
			kept = append(kept, s.Element)
		}
	}
	if len(kept) == 0 {
		return []element.UIElement{scored[0].Element}
	}
	return kept
}

// Best returns the highest-scoring candidate; the first one wins ties.
func Best(candidates []element.UIElement, target string) (element.UIElement, bool) {
	if len(candidates) == 0 {
		return element.UIElement{}, false
	}
	return Rank(candidates, target)[0].Element, true
}
