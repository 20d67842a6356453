package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/pkg/utils"
)

// Store is the Postgres backend. The full story document is kept as jsonb
// alongside the filterable columns, so reads round-trip every field without
// a column per AI-derived value.
type Store struct {
	db *ConnectionPool
}

var _ storage.Store = (*Store)(nil)

func NewStore(pool *ConnectionPool) (*Store, error) {
	return &Store{db: pool}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		source_domain TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		score INT,
		doc JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stories_published_at ON stories (published_at);
	CREATE INDEX IF NOT EXISTS idx_stories_source_domain ON stories (source_domain);

	CREATE TABLE IF NOT EXISTS newsletters (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		metadata JSONB NOT NULL
	);
	`
	if _, err := s.db.GetConn().Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, stories []domain.Story) (int, error) {
	if len(stories) == 0 {
		return 0, nil
	}

	tx, err := s.db.GetConn().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const cmd = `
		INSERT INTO stories (id, source_domain, published_at, score, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING;
	`

	written := 0
	for _, story := range stories {
		doc, err := json.Marshal(story)
		if err != nil {
			return 0, fmt.Errorf("marshal story %s: %w", story.ID, err)
		}
		tag, err := tx.Exec(ctx, cmd, story.ID, story.SourceDomain, story.PublishedAt, story.Score, doc)
		if err != nil {
			return 0, fmt.Errorf("insert story %s: %w", story.ID, err)
		}
		written += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append tx: %w", err)
	}
	return written, nil
}

func (s *Store) List(ctx context.Context, f storage.Filter) ([]domain.Story, error) {
	query := `SELECT doc FROM stories WHERE 1=1`
	var args []any

	if f.MinScore != nil {
		args = append(args, *f.MinScore)
		query += fmt.Sprintf(" AND COALESCE(score, 0) >= $%d", len(args))
	}
	if f.SourceDomain != "" {
		args = append(args, f.SourceDomain)
		query += fmt.Sprintf(" AND source_domain = $%d", len(args))
	}
	if !f.PublishedFrom.IsZero() {
		args = append(args, f.PublishedFrom)
		query += fmt.Sprintf(" AND published_at >= $%d", len(args))
	}
	if !f.PublishedTo.IsZero() {
		args = append(args, f.PublishedTo)
		query += fmt.Sprintf(" AND published_at <= $%d", len(args))
	}
	rows, err := s.db.GetConn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var out []domain.Story
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan story row: %w", err)
		}
		var story domain.Story
		if err := json.Unmarshal(doc, &story); err != nil {
			return nil, fmt.Errorf("unmarshal story doc: %w", err)
		}
		out = append(out, story)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (domain.Story, error) {
	var doc []byte
	err := s.db.GetConn().QueryRow(ctx, `SELECT doc FROM stories WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Story{}, apperr.NewNotFound("story", id)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("get story %s: %w", id, err)
	}

	var story domain.Story
	if err := json.Unmarshal(doc, &story); err != nil {
		return domain.Story{}, fmt.Errorf("unmarshal story doc: %w", err)
	}
	return story, nil
}

func (s *Store) Update(ctx context.Context, id string, u storage.UpdateStory) error {
	story, err := s.Get(ctx, id)
	if err != nil {
		return err
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

	doc, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("marshal story %s: %w", id, err)
	}

	tag, err := s.db.GetConn().Exec(ctx,
		`UPDATE stories SET score = $2, doc = $3 WHERE id = $1`,
		id, story.Score, doc,
	)
	if err != nil {
		return fmt.Errorf("update story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewNotFound("story", id)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	stats := storage.Stats{
		ScoreBuckets: map[string]int{
			storage.Bucket90Plus: 0,
			storage.Bucket80s:    0,
			storage.Bucket70s:    0,
			storage.Bucket60s:    0,
			storage.BucketBelow:  0,
		},
		SourceCounts: map[string]int{},
	}

	rows, err := s.db.GetConn().Query(ctx, `SELECT source_domain, score FROM stories`)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	scoreSum := 0
	scored := 0
	for rows.Next() {
		var sourceDomain string
		var score *int
		if err := rows.Scan(&sourceDomain, &score); err != nil {
			return storage.Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		stats.TotalStories++
		if sourceDomain == "" {
			sourceDomain = "unknown"
		}
		stats.SourceCounts[sourceDomain]++
		if score != nil {
			stats.ScoreBuckets[storage.BucketFor(*score)]++
			scoreSum += *score
			scored++
		} else {
			stats.ScoreBuckets[storage.BucketBelow]++
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Stats{}, err
	}
	if scored > 0 {
		stats.AverageScore = utils.RoundDecimal(float64(scoreSum)/float64(scored), 2)
	}

	var newsletters int
	if err := s.db.GetConn().QueryRow(ctx, `SELECT COUNT(*) FROM newsletters`).Scan(&newsletters); err != nil {
		return storage.Stats{}, fmt.Errorf("count newsletters: %w", err)
	}
	stats.TotalNewsletters = newsletters

	return stats, nil
}

func (s *Store) SaveNewsletter(ctx context.Context, n domain.Newsletter) error {
	meta := n.Metadata
	meta.ID = n.ID
	meta.StoryCount = len(meta.StoriesUsed)

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal newsletter metadata %s: %w", n.ID, err)
	}

	const cmd = `
		INSERT INTO newsletters (id, content, generated_at, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    generated_at = EXCLUDED.generated_at,
		    metadata = EXCLUDED.metadata;
	`
	if _, err := s.db.GetConn().Exec(ctx, cmd, n.ID, n.Content, meta.GeneratedAt, raw); err != nil {
		return fmt.Errorf("save newsletter %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) GetNewsletter(ctx context.Context, id string) (domain.Newsletter, error) {
	var content string
	var raw []byte
	err := s.db.GetConn().QueryRow(ctx,
		`SELECT content, metadata FROM newsletters WHERE id = $1`, id,
	).Scan(&content, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Newsletter{}, apperr.NewNotFound("newsletter", id)
	}
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("get newsletter %s: %w", id, err)
	}

	var meta domain.NewsletterMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.Newsletter{}, fmt.Errorf("unmarshal newsletter metadata %s: %w", id, err)
	}
	return domain.Newsletter{ID: id, Content: content, Metadata: meta}, nil
}

func (s *Store) ListNewsletters(ctx context.Context) ([]domain.NewsletterMetadata, error) {
	rows, err := s.db.GetConn().Query(ctx, `SELECT metadata FROM newsletters`)
	if err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	defer rows.Close()

	var out []domain.NewsletterMetadata
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan newsletter row: %w", err)
		}
		var meta domain.NewsletterMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal newsletter metadata: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}
