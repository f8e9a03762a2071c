// Package index builds per-attribute inverted indexes over a catalogue:
// (attribute, value) maps to the posting list of pages holding that value on
// at least one text region. Lookups cost O(matching pages) instead of a full
// catalogue scan.
package index

import (
	"sort"
	"sync"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
)

// AttributeIndex is the per-collection lookup structure. It is built once
// after load and is safe for concurrent reads.
type AttributeIndex struct {
	mu        sync.RWMutex
	index     map[string]map[string]PostingList
	pageCount int
}

// Build indexes every text region of every record in cat. Page-crop regions
// are skipped: they carry no filterable attributes.
func Build(cat *catalogue.Catalogue) *AttributeIndex {
	ix := &AttributeIndex{
		index:     make(map[string]map[string]PostingList),
		pageCount: cat.Len(),
	}
	for _, attr := range catalogue.Attributes() {
		ix.index[attr] = make(map[string]PostingList)
	}
	for _, rec := range cat.Records() {
		posted := make(map[string]map[string]bool)
		for _, region := range rec.TextRegions() {
			for _, attr := range catalogue.Attributes() {
				value := region.Value(attr)
				if value == "" {
					continue
				}
				if posted[attr] == nil {
					posted[attr] = make(map[string]bool)
				}
				if posted[attr][value] {
					continue
				}
				posted[attr][value] = true
				ix.index[attr][value] = append(ix.index[attr][value], Posting{
					Ordinal: rec.Ordinal,
					PageID:  rec.ID,
				})
			}
		}
	}
	// Records are visited in catalogue order, so each posting list is
	// already sorted by ordinal.
	return ix
}

// Lookup returns the posting list for (attribute, value), or nil.
func (ix *AttributeIndex) Lookup(attribute, value string) PostingList {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	values, ok := ix.index[attribute]
	if !ok {
		return nil
	}
	return values[value]
}

// LookupAny unions the posting lists of several accepted values for one
// attribute, keeping ordinal order and dropping duplicates.
func (ix *AttributeIndex) LookupAny(attribute string, values []string) PostingList {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byValue, ok := ix.index[attribute]
	if !ok {
		return nil
	}
	seen := make(map[int]bool)
	var merged PostingList
	for _, v := range values {
		for _, p := range byValue[v] {
			if !seen[p.Ordinal] {
				seen[p.Ordinal] = true
				merged = append(merged, p)
			}
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Ordinal < merged[j].Ordinal
	})
	return merged
}

// Values returns the indexed values for one attribute, sorted.
func (ix *AttributeIndex) Values(attribute string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byValue, ok := ix.index[attribute]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byValue))
	for v := range byValue {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// PageCount returns the number of pages the index was built over.
func (ix *AttributeIndex) PageCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.pageCount
}
