package storage

import (
	"context"
	"time"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

// Filter narrows List results. Zero values mean "no constraint". Date bounds
// are inclusive. List results carry no order; callers that need the
// best-scored subset sort and cap themselves.
type Filter struct {
	MinScore      *int
	SourceDomain  string
	PublishedFrom time.Time
	PublishedTo   time.Time
}

// UpdateStory carries the mutable fields of a persisted story. Only the
// dedup pass and manual corrections go through Update; normal ingestion is
// append-only.
type UpdateStory struct {
	IsCanonical    *bool
	SimilarStories []string
	Score          *int
}

// StoryStore is the record store contract. Append never overwrites: a story
// whose id already exists is silently skipped, which is what makes repeated
// pipeline runs idempotent.
type StoryStore interface {
	Append(ctx context.Context, stories []domain.Story) (int, error)
	List(ctx context.Context, f Filter) ([]domain.Story, error)
	Get(ctx context.Context, id string) (domain.Story, error)
	Update(ctx context.Context, id string, u UpdateStory) error
	Stats(ctx context.Context) (Stats, error)
}

// NewsletterStore persists generated newsletter artifacts keyed by id.
// Saving an existing id replaces the prior artifact.
type NewsletterStore interface {
	SaveNewsletter(ctx context.Context, n domain.Newsletter) error
	GetNewsletter(ctx context.Context, id string) (domain.Newsletter, error)
	ListNewsletters(ctx context.Context) ([]domain.NewsletterMetadata, error)
}

// Store combines both persisted collections behind one backend.
type Store interface {
	StoryStore
	NewsletterStore
}

// Stats summarizes the story collection.
type Stats struct {
	TotalStories     int            `json:"total_stories"`
	TotalNewsletters int            `json:"total_newsletters"`
	ScoreBuckets     map[string]int `json:"score_distribution"`
	SourceCounts     map[string]int `json:"source_distribution"`
	AverageScore     float64        `json:"average_score"`
}

// Score bucket labels, highest first.
const (
	Bucket90Plus = "90-100"
	Bucket80s    = "80-89"
	Bucket70s    = "70-79"
	Bucket60s    = "60-69"
	BucketBelow  = "0-59"
)

// BucketFor maps an overall score to its histogram bucket.
func BucketFor(score int) string {
	switch {
	case score >= 90:
		return Bucket90Plus
	case score >= 80:
		return Bucket80s
	case score >= 70:
		return Bucket70s
	case score >= 60:
		return Bucket60s
	default:
		return BucketBelow
	}
}

// Matches reports whether a story passes the filter predicates.
func (f Filter) Matches(s domain.Story) bool {
	if f.MinScore != nil && s.ScoreValue() < *f.MinScore {
		return false
	}
	if f.SourceDomain != "" && s.SourceDomain != f.SourceDomain {
		return false
	}
	if !f.PublishedFrom.IsZero() && s.PublishedAt.Before(f.PublishedFrom) {
		return false
	}
	if !f.PublishedTo.IsZero() && s.PublishedAt.After(f.PublishedTo) {
		return false
	}
	return true
}

type Type string

const (
	File  Type = "file"
	PG    Type = "pg"
	InMem Type = "in_mem"
)

type StorerError string

const (
	ErrUnsupportedStorer StorerError = "unsupported storer type: %s"
)

func (e StorerError) Error() string {
	return string(e)
}
