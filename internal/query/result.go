package query

import "github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"

// PageHit is one matching page together with the regions that satisfied
// every filter jointly.
type PageHit struct {
	PageID    string             `json:"page_id"`
	FileName  string             `json:"file_name"`
	Ordinal   int                `json:"ordinal"`
	ImagePath string             `json:"image_path,omitempty"`
	Regions   []catalogue.Region `json:"regions,omitempty"`
}

// Result is the full, unpaginated outcome of evaluating a plan. Pages are
// in catalogue order, each page at most once.
type Result struct {
	Collection string    `json:"collection"`
	TotalHits  int       `json:"total_hits"`
	Pages      []PageHit `json:"pages"`
	// CandidateCounts records the posting-list size per criterion before
	// intersection, mainly for the analytics pipeline.
	CandidateCounts map[string]int `json:"candidate_counts,omitempty"`
}

// Slice returns the pages in the half-open window [offset, offset+limit),
// clamped to the result. limit <= 0 means no limit.
func (r *Result) Slice(offset, limit int) []PageHit {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(r.Pages) {
		return nil
	}
	end := len(r.Pages)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return r.Pages[offset:end]
}
