package search

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Service is the facade that tries the backing Searcher first and falls
// back to a substring scan over the catalog the caller supplies.
type Service struct {
	searcher Searcher
}

// NewService creates a search service. searcher may be nil when no search
// backend is configured; every query then takes the scan path.
func NewService(searcher Searcher) *Service {
	return &Service{searcher: searcher}
}

// IndexVideos pushes the catalog to the search backend (fire-and-forget).
func (s *Service) IndexVideos(records []VideoRecord) {
	if s.searcher == nil || !s.searcher.Healthy() {
		return
	}
	go func() {
		if err := s.searcher.IndexVideos(records); err != nil {
			log.Warn().Err(err).Msg("search: index videos")
		}
	}()
}

// Search returns the IDs of catalog videos matching text. The catalog is
// passed in so the fallback never needs its own storage handle.
func (s *Service) Search(text string, catalog []VideoRecord) []int64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return []int64{}
	}

	if s.searcher != nil && s.searcher.Healthy() {
		ids, err := s.searcher.Search(text, len(catalog))
		if err == nil {
			return keepKnown(ids, catalog)
		}
		log.Warn().Err(err).Msg("search: backend error, falling back to scan")
	}

	return scan(text, catalog)
}

func scan(text string, catalog []VideoRecord) []int64 {
	needle := strings.ToLower(text)
	ids := make([]int64, 0)
	for _, r := range catalog {
		haystack := strings.ToLower(r.Caption + " " + r.Music + " " + r.Username)
		if strings.Contains(haystack, needle) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// keepKnown drops hits for videos no longer in the catalog (stale index).
func keepKnown(ids []int64, catalog []VideoRecord) []int64 {
	known := make(map[int64]bool, len(catalog))
	for _, r := range catalog {
		known[r.ID] = true
	}
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
