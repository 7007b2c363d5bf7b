package db

// SearchQuery is the input for a paged FT.SEARCH.
type SearchQuery struct {
	IndexName string
	Query     string
	Offset    int
	Limit     int
	// ReturnFields limits the returned attributes; empty returns the whole document.
	ReturnFields []string
	// SortBy orders results by a sortable field, ascending.
	SortBy string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}
