package index

// Posting locates one page inside a collection: its identifier plus its
// ordinal position, so result sets can be projected back into catalogue
// order without touching the records.
type Posting struct {
	Ordinal int
	PageID  string
}

// PostingList is a set of postings sorted by ordinal (catalogue order).
type PostingList []Posting
