package crawler

import (
	"strconv"
	"time"
)

// Record is the metadata kept for one document identifier that resolved to a
// downloadable file. Records are replaced wholesale, never patched.
type Record struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	DiscoveredAt time.Time `json:"discovered_at"`
	SourceURL    string    `json:"source_url"`
}

// Classification is the outcome of fetching a single document identifier.
// Body is only populated when Found is true.
type Classification struct {
	ID         int64
	URL        string
	Found      bool
	Filename   string
	Body       []byte
	StatusCode int
	Duration   time.Duration
}

// LookupResult is returned by an on-demand single identifier lookup.
type LookupResult struct {
	Found  bool   `json:"found"`
	Record Record `json:"record"`
	Size   int    `json:"size"`
}

// Locator builds the canonical retrieval URL for id from the base URL template.
func Locator(baseURL string, id int64) string {
	return baseURL + strconv.FormatInt(id, 10)
}
