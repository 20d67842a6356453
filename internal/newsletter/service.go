package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/pkg/utils"
)

const (
	defaultMinScore   = 60
	defaultMaxStories = 10
)

// Writer renders a newsletter body from a set of scored stories.
type Writer interface {
	Render(ctx context.Context, stories []domain.Story, instructions string) (string, error)
}

// Request describes one newsletter generation. StoryIDs, when set, selects
// stories explicitly; otherwise stories in [DateFrom, DateTo] with at least
// MinScore are used, best-scored first, capped at MaxStories.
type Request struct {
	DateFrom     time.Time `json:"date_from"`
	DateTo       time.Time `json:"date_to"`
	StoryIDs     []string  `json:"story_ids,omitempty"`
	MinScore     int       `json:"min_score,omitempty"`
	MaxStories   int       `json:"max_stories,omitempty"`
	Instructions string    `json:"editorial_instructions,omitempty"`
}

// Service generates newsletter artifacts and reads them back.
type Service struct {
	store  storage.Store
	writer Writer
	now    func() time.Time
}

func NewService(store storage.Store, writer Writer) *Service {
	return &Service{
		store:  store,
		writer: writer,
		now:    time.Now,
	}
}

// Generate selects stories for the request, renders the body, and persists
// the artifact. Generating again for the same start date replaces the
// previous newsletter.
func (s *Service) Generate(ctx context.Context, req Request) (domain.Newsletter, error) {
	if req.MinScore == 0 {
		req.MinScore = defaultMinScore
	}
	if req.MaxStories == 0 {
		req.MaxStories = defaultMaxStories
	}

	stories, err := s.selectStories(ctx, req)
	if err != nil {
		return domain.Newsletter{}, err
	}
	if len(stories) == 0 {
		return domain.Newsletter{}, apperr.NewValidation(
			fmt.Sprintf("no stories with score >= %d between %s and %s",
				req.MinScore,
				req.DateFrom.Format("2006-01-02"),
				req.DateTo.Format("2006-01-02")))
	}

	body, err := s.writer.Render(ctx, stories, req.Instructions)
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("rendering newsletter: %w", err)
	}

	ids := make([]string, 0, len(stories))
	for _, st := range stories {
		ids = append(ids, st.ID)
	}

	n := domain.Newsletter{
		ID:      domain.NewsletterID(req.DateFrom),
		Content: body,
		Metadata: domain.NewsletterMetadata{
			ID:           domain.NewsletterID(req.DateFrom),
			GeneratedAt:  s.now(),
			StoriesUsed:  ids,
			StoryCount:   len(ids),
			DateFrom:     req.DateFrom,
			DateTo:       req.DateTo,
			MinScore:     req.MinScore,
			Instructions: req.Instructions,
		},
	}

	if err := s.store.SaveNewsletter(ctx, n); err != nil {
		return domain.Newsletter{}, fmt.Errorf("saving newsletter: %w", err)
	}

	slog.Info("Generated newsletter", "id", n.ID, "stories", len(ids))
	return n, nil
}

// ScoreStats summarizes the scores of the stories behind a newsletter.
type ScoreStats struct {
	Average float64 `json:"average"`
	Maximum int     `json:"maximum"`
	Minimum int     `json:"minimum"`
}

// Analytics describes how one newsletter was composed.
type Analytics struct {
	NewsletterID string                  `json:"newsletter_id"`
	StoryCount   int                     `json:"story_count"`
	ScoreStats   ScoreStats              `json:"score_stats"`
	Sources      map[string]int          `json:"source_distribution"`
	Tags         map[domain.StoryTag]int `json:"tag_distribution"`
	GeneratedAt  time.Time               `json:"generated_date"`
	DateFrom     time.Time               `json:"date_from"`
	DateTo       time.Time               `json:"date_to"`
}

func (s *Service) Get(ctx context.Context, id string) (domain.Newsletter, error) {
	return s.store.GetNewsletter(ctx, id)
}

// Stories resolves a newsletter's stories_used ids to full records. Stories
// deleted since generation are skipped.
func (s *Service) Stories(ctx context.Context, id string) ([]domain.Story, error) {
	n, err := s.store.GetNewsletter(ctx, id)
	if err != nil {
		return nil, err
	}

	stories := make([]domain.Story, 0, len(n.Metadata.StoriesUsed))
	for _, storyID := range n.Metadata.StoriesUsed {
		story, err := s.store.Get(ctx, storyID)
		if err != nil {
			var nf *apperr.NotFoundError
			if errors.As(err, &nf) {
				slog.Warn("Newsletter references missing story", "newsletter_id", id, "story_id", storyID)
				continue
			}
			return nil, err
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// Analytics computes score, source, and tag distributions over the stories
// a newsletter used.
func (s *Service) Analytics(ctx context.Context, id string) (Analytics, error) {
	n, err := s.store.GetNewsletter(ctx, id)
	if err != nil {
		return Analytics{}, err
	}
	stories, err := s.Stories(ctx, id)
	if err != nil {
		return Analytics{}, err
	}

	a := Analytics{
		NewsletterID: id,
		StoryCount:   len(stories),
		Sources:      map[string]int{},
		Tags:         map[domain.StoryTag]int{},
		GeneratedAt:  n.Metadata.GeneratedAt,
		DateFrom:     n.Metadata.DateFrom,
		DateTo:       n.Metadata.DateTo,
	}
	if len(stories) == 0 {
		return a, nil
	}

	sum := 0
	a.ScoreStats.Minimum = stories[0].ScoreValue()
	for _, st := range stories {
		score := st.ScoreValue()
		sum += score
		if score > a.ScoreStats.Maximum {
			a.ScoreStats.Maximum = score
		}
		if score < a.ScoreStats.Minimum {
			a.ScoreStats.Minimum = score
		}
		a.Sources[st.SourceName]++
		for _, tag := range st.Tags {
			a.Tags[tag]++
		}
	}
	a.ScoreStats.Average = utils.RoundDecimal(float64(sum)/float64(len(stories)), 1)
	return a, nil
}

func (s *Service) List(ctx context.Context) ([]domain.NewsletterMetadata, error) {
	return s.store.ListNewsletters(ctx)
}

func (s *Service) selectStories(ctx context.Context, req Request) ([]domain.Story, error) {
	if len(req.StoryIDs) > 0 {
		stories := make([]domain.Story, 0, len(req.StoryIDs))
		for _, id := range req.StoryIDs {
			story, err := s.store.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			stories = append(stories, story)
		}
		return stories, nil
	}

	minScore := req.MinScore
	stories, err := s.store.List(ctx, storage.Filter{
		MinScore:      &minScore,
		PublishedFrom: req.DateFrom,
		PublishedTo:   req.DateTo,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].ScoreValue() > stories[j].ScoreValue()
	})
	if len(stories) > req.MaxStories {
		stories = stories[:req.MaxStories]
	}
	return stories, nil
}
