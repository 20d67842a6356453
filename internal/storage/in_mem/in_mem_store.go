package in_mem

import (
	"context"
	"sort"
	"sync"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/pkg/utils"
)

// InMemStore keeps both collections in maps behind one RWMutex. Useful for
// tests and local development where the file backend's durability is noise.
type InMemStore struct {
	mu          sync.RWMutex
	stories     map[string]domain.Story
	order       []string
	newsletters map[string]domain.Newsletter
}

var _ storage.Store = (*InMemStore)(nil)

func NewInMemStore() *InMemStore {
	return &InMemStore{
		stories:     make(map[string]domain.Story),
		newsletters: make(map[string]domain.Newsletter),
	}
}

func (s *InMemStore) Append(ctx context.Context, stories []domain.Story) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, story := range stories {
		if _, ok := s.stories[story.ID]; ok {
			continue
		}
		s.stories[story.ID] = story
		s.order = append(s.order, story.ID)
		written++
	}
	return written, nil
}

func (s *InMemStore) List(ctx context.Context, f storage.Filter) ([]domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Story
	for _, id := range s.order {
		story := s.stories[id]
		if f.Matches(story) {
			out = append(out, story)
		}
	}
	return out, nil
}

func (s *InMemStore) Get(ctx context.Context, id string) (domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	story, ok := s.stories[id]
	if !ok {
		return domain.Story{}, apperr.NewNotFound("story", id)
	}
	return story, nil
}

func (s *InMemStore) Update(ctx context.Context, id string, u storage.UpdateStory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	story, ok := s.stories[id]
	if !ok {
		return apperr.NewNotFound("story", id)
	}
	if u.IsCanonical != nil {
		story.IsCanonical = *u.IsCanonical
	}
	if u.SimilarStories != nil {
		story.SimilarStories = u.SimilarStories
	}
	if u.Score != nil {
		story.Score = u.Score
	}
	s.stories[id] = story
	return nil
}

func (s *InMemStore) Stats(ctx context.Context) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := storage.Stats{
		ScoreBuckets: map[string]int{
			storage.Bucket90Plus: 0,
			storage.Bucket80s:    0,
			storage.Bucket70s:    0,
			storage.Bucket60s:    0,
			storage.BucketBelow:  0,
		},
		SourceCounts:     map[string]int{},
		TotalNewsletters: len(s.newsletters),
	}

	scoreSum := 0
	scored := 0
	for _, story := range s.stories {
		stats.TotalStories++
		domainKey := story.SourceDomain
		if domainKey == "" {
			domainKey = "unknown"
		}
		stats.SourceCounts[domainKey]++
		if story.Score != nil {
			stats.ScoreBuckets[storage.BucketFor(*story.Score)]++
			scoreSum += *story.Score
			scored++
		} else {
			stats.ScoreBuckets[storage.BucketBelow]++
		}
	}
	if scored > 0 {
		stats.AverageScore = utils.RoundDecimal(float64(scoreSum)/float64(scored), 2)
	}
	return stats, nil
}

func (s *InMemStore) SaveNewsletter(ctx context.Context, n domain.Newsletter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.Metadata.ID = n.ID
	n.Metadata.StoryCount = len(n.Metadata.StoriesUsed)
	s.newsletters[n.ID] = n
	return nil
}

func (s *InMemStore) GetNewsletter(ctx context.Context, id string) (domain.Newsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.newsletters[id]
	if !ok {
		return domain.Newsletter{}, apperr.NewNotFound("newsletter", id)
	}
	return n, nil
}

func (s *InMemStore) ListNewsletters(ctx context.Context) ([]domain.NewsletterMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.NewsletterMetadata, 0, len(s.newsletters))
	for _, n := range s.newsletters {
		out = append(out, n.Metadata)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}
