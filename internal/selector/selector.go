// Package selector turns a pool of catalog items into one correct answer and
// three distractors for a round.
package selector

import (
	"fmt"
	"math/rand"
	"strings"

	"songquiz/internal/domain"
)

// Popularity tiers
const (
	HighPopularity = 70
	MidPopularity  = 40

	// SimilarPopularity is the largest popularity gap at which a distractor
	// counts as similar to the correct item.
	SimilarPopularity = 15

	// Distractors is the number of wrong options per round
	Distractors = domain.OptionsPerRound - 1
)

// Tier weights for choosing the correct item. The remainder goes to the low tier.
const (
	highTierWeight = 0.2
	midTierWeight  = 0.6
)

// Selection is the outcome of one Select call
type Selection struct {
	Correct     domain.CatalogItem
	Distractors []domain.CatalogItem

	// Relaxed is set when the distinct artist/name rule could not be met and
	// distractors were filled from the remaining pool.
	Relaxed bool
}

// Items returns the correct item followed by the distractors
func (s Selection) Items() []domain.CatalogItem {
	return append([]domain.CatalogItem{s.Correct}, s.Distractors...)
}

// Selector picks question candidates. It is safe for concurrent use.
type Selector struct {
	recent *Recent
}

// New creates a selector. recent may be nil to disable anti-repetition.
func New(recent *Recent) *Selector {
	return &Selector{recent: recent}
}

// Select picks one correct item and three distractors from pool. It fails with
// domain.ErrNotEnoughItems when the pool holds fewer than four distinct items.
func (s *Selector) Select(pool []domain.CatalogItem) (Selection, error) {
	items := uniqueByID(pool)
	if len(items) < domain.OptionsPerRound {
		return Selection{}, fmt.Errorf("%w: have %d, need %d", domain.ErrNotEnoughItems, len(items), domain.OptionsPerRound)
	}

	if s.recent != nil {
		if unused := s.recent.Unused(items); len(unused) >= domain.OptionsPerRound {
			items = unused
		}
	}

	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})

	correctIdx := pickCorrect(items)
	correct := items[correctIdx]

	rest := make([]domain.CatalogItem, 0, len(items)-1)
	rest = append(rest, items[:correctIdx]...)
	rest = append(rest, items[correctIdx+1:]...)

	distractors, relaxed := pickDistractors(correct, orderCandidates(correct, rest))
	if len(distractors) < Distractors {
		return Selection{}, fmt.Errorf("%w: only %d distractors available", domain.ErrNotEnoughItems, len(distractors))
	}

	if s.recent != nil {
		s.recent.Mark(correct.ID)
	}

	return Selection{
		Correct:     correct,
		Distractors: distractors,
		Relaxed:     relaxed,
	}, nil
}

// tierOf buckets an item by popularity
func tierOf(item domain.CatalogItem) int {
	switch {
	case item.Popularity >= HighPopularity:
		return 2
	case item.Popularity >= MidPopularity:
		return 1
	default:
		return 0
	}
}

// pickCorrect samples a tier by weight and returns the index of the first
// shuffled item in it. An empty tier falls back to the first item overall.
func pickCorrect(items []domain.CatalogItem) int {
	want := 0
	switch r := rand.Float64(); {
	case r < highTierWeight:
		want = 2
	case r < highTierWeight+midTierWeight:
		want = 1
	}

	for i, item := range items {
		if tierOf(item) == want {
			return i
		}
	}
	return 0
}

// orderCandidates alternates items of similar and dissimilar popularity to the
// correct item, so the greedy pass sees a mix of both.
func orderCandidates(correct domain.CatalogItem, rest []domain.CatalogItem) []domain.CatalogItem {
	var similar, dissimilar []domain.CatalogItem
	for _, item := range rest {
		if abs(item.Popularity-correct.Popularity) <= SimilarPopularity {
			similar = append(similar, item)
		} else {
			dissimilar = append(dissimilar, item)
		}
	}

	ordered := make([]domain.CatalogItem, 0, len(rest))
	for i := 0; i < len(similar) || i < len(dissimilar); i++ {
		if i < len(similar) {
			ordered = append(ordered, similar[i])
		}
		if i < len(dissimilar) {
			ordered = append(ordered, dissimilar[i])
		}
	}
	return ordered
}

// pickDistractors greedily takes candidates whose artist and name differ from
// everything already chosen, then relaxes the rule to fill any missing slots.
func pickDistractors(correct domain.CatalogItem, candidates []domain.CatalogItem) ([]domain.CatalogItem, bool) {
	artists := map[string]bool{normalize(correct.Artist): true}
	names := map[string]bool{normalize(correct.Name): true}
	chosen := make(map[string]bool, Distractors)

	picked := make([]domain.CatalogItem, 0, Distractors)
	for _, item := range candidates {
		if len(picked) == Distractors {
			break
		}
		artist, name := normalize(item.Artist), normalize(item.Name)
		if artists[artist] || names[name] {
			continue
		}
		artists[artist] = true
		names[name] = true
		chosen[item.ID] = true
		picked = append(picked, item)
	}

	if len(picked) == Distractors {
		return picked, false
	}

	for _, item := range candidates {
		if len(picked) == Distractors {
			break
		}
		if chosen[item.ID] {
			continue
		}
		chosen[item.ID] = true
		picked = append(picked, item)
	}
	return picked, true
}

func uniqueByID(pool []domain.CatalogItem) []domain.CatalogItem {
	seen := make(map[string]bool, len(pool))
	items := make([]domain.CatalogItem, 0, len(pool))
	for _, item := range pool {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
