package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadmatch/internal/inventory"
	"leadmatch/internal/logging"
	"leadmatch/internal/model"
)

// MatchService keeps the inventory snapshot fresh and ranks it
type MatchService struct {
	cache  *inventory.Cache
	ranker *Ranker
}

// NewMatchService creates a new match service
func NewMatchService(cache *inventory.Cache, ranker *Ranker) *MatchService {
	return &MatchService{
		cache:  cache,
		ranker: ranker,
	}
}

// Match returns ranked units for the requirements. A failed refresh falls back
// to whatever is cached; an error is returned only when there is nothing
// cached at all.
func (s *MatchService) Match(ctx context.Context, req model.RequirementSet, maxResults, offset int) ([]model.Match, error) {
	startTime := time.Now()

	if err := s.cache.Refresh(ctx, false); err != nil {
		log.Printf("⚠️  Inventory refresh failed, using cached snapshot: %v", err)
		if s.cache.Snapshot() == nil {
			return nil, fmt.Errorf("no inventory snapshot: %w", err)
		}
	}

	matches := s.ranker.Rank(s.cache.Snapshot(), req, maxResults, offset)
	logging.Debugf("🎯 %d matches (offset %d) in %v", len(matches), offset, time.Since(startTime))
	return matches, nil
}

// Refresh forces or requests an inventory reload
func (s *MatchService) Refresh(ctx context.Context, force bool) error {
	return s.cache.Refresh(ctx, force)
}

// Status reports the snapshot cache state
func (s *MatchService) Status() inventory.Status {
	return s.cache.Status()
}
