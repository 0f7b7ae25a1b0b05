// Package catalog describes the content catalogs that supply item totals
// and item-to-domain assignments for mastery reporting.
//
// Catalog labels are raw upstream strings ("People", "Domain II: Process",
// "Business Environment (8%)"). They are normalised by the caller through a
// domain.DomainSet, never here.
package catalog

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a catalog source cannot be read.
var ErrUnavailable = errors.New("catalog unavailable")

// Item is one catalog entry with its raw domain label.
type Item struct {
	ID     string
	Domain string
}

// Catalog is a read-only view over the items of one pool.
type Catalog interface {
	// DomainTotals returns the number of items per raw domain label.
	DomainTotals(ctx context.Context) (map[string]int, error)

	// ItemDomains returns the raw domain label of every item, keyed by item ID.
	ItemDomains(ctx context.Context) (map[string]string, error)
}

// Totals counts items per raw domain label.
func Totals(items []Item) map[string]int {
	totals := make(map[string]int)
	for _, it := range items {
		totals[it.Domain]++
	}
	return totals
}

// Index maps item IDs to raw domain labels. Later duplicates win.
func Index(items []Item) map[string]string {
	index := make(map[string]string, len(items))
	for _, it := range items {
		index[it.ID] = it.Domain
	}
	return index
}
