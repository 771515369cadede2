// Package ranking orders queue candidates. Items with more votes come first,
// equal votes fall back to submission order and then to the item id so that
// the order is total and independent of how the store iterated its rows.
package ranking

import (
	"cmp"

	"golang.org/x/exp/slices"

	"github.com/marcus-crane/crowdqueue/models"
)

// Compare returns a negative number when a ranks ahead of b.
func Compare(a, b models.Item) int {
	if a.Votes != b.Votes {
		return cmp.Compare(b.Votes, a.Votes)
	}
	if a.CreatedAt != b.CreatedAt {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort returns a ranked copy of items. The input is left untouched.
func Sort(items []models.Item) []models.Item {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Head returns the item that would be promoted next.
func Head(items []models.Item) (models.Item, bool) {
	if len(items) == 0 {
		return models.Item{}, false
	}
	return slices.MinFunc(items, Compare), true
}
