package catalogue

import (
	"sort"

	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

// Catalogue is the ordered, immutable set of page records for one document
// collection. It is built once at load time and safely readable from
// concurrent query evaluations without locking.
type Catalogue struct {
	name    string
	records []*PageRecord
	byID    map[string]*PageRecord
	// vocab maps attribute name to the sorted set of observed values.
	vocab map[string][]string
}

func newCatalogue(name string, records []*PageRecord) *Catalogue {
	c := &Catalogue{
		name:    name,
		records: records,
		byID:    make(map[string]*PageRecord, len(records)),
		vocab:   make(map[string][]string),
	}
	seen := map[string]map[string]bool{
		AttrImplement:   {},
		AttrOrientation: {},
		AttrColour:      {},
	}
	for _, rec := range records {
		c.byID[rec.ID] = rec
		for _, region := range rec.TextRegions() {
			for _, attr := range Attributes() {
				if v := region.Value(attr); v != "" {
					seen[attr][v] = true
				}
			}
		}
	}
	for attr, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		c.vocab[attr] = list
	}
	// Colours are always validated against the folded master list, not the
	// observed values.
	c.vocab[AttrColour] = ColourVocabulary()
	return c
}

// Name returns the collection name.
func (c *Catalogue) Name() string {
	return c.name
}

// Len returns the number of page records.
func (c *Catalogue) Len() int {
	return len(c.records)
}

// Records returns all page records in catalogue order. Callers must not
// mutate the returned slice.
func (c *Catalogue) Records() []*PageRecord {
	return c.records
}

// Get returns the record with the given page ID.
func (c *Catalogue) Get(pageID string) (*PageRecord, error) {
	rec, ok := c.byID[pageID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrPageNotFound, 404, "page %q not in collection %q", pageID, c.name)
	}
	return rec, nil
}

// Vocabulary returns the accepted value set per attribute. For implement and
// orientation these are the observed catalogue values; for colour it is the
// fixed classifier vocabulary.
func (c *Catalogue) Vocabulary() map[string][]string {
	out := make(map[string][]string, len(c.vocab))
	for attr, values := range c.vocab {
		out[attr] = append([]string(nil), values...)
	}
	return out
}
