// Package search finds videos by caption, music, or author. Meilisearch is
// used when configured and healthy; otherwise a substring scan over the
// stored catalog answers the query.
package search

// VideoRecord is the data we index per video.
type VideoRecord struct {
	ID       int64  `json:"id"`
	Caption  string `json:"caption"`
	Music    string `json:"music"`
	Username string `json:"username"`
}

// Searcher can index the catalog and resolve a text query to matching
// video IDs.
type Searcher interface {
	IndexVideos(records []VideoRecord) error
	Search(text string, limit int) ([]int64, error)
	Healthy() bool
}
