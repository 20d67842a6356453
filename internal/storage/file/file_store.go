package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/pkg/utils"
)

const (
	storiesFileName   = "stories.jsonl"
	newslettersSubdir = "newsletters"
	lockFileName      = ".stories.lock"

	// Story lines carry full article content, so the scanner buffer has to
	// be far larger than bufio's 64K default.
	maxLineBytes = 16 << 20
)

// FileStore persists stories as one JSON object per line in an append-only
// file, and newsletters as a markdown body plus JSON metadata pair. Every
// operation takes the process RWMutex (read-shared, write-exclusive) and an
// advisory file lock for the duration of a single scan or write, never
// longer.
type FileStore struct {
	dataDir        string
	storiesPath    string
	newslettersDir string

	mu   sync.RWMutex
	flck *flock.Flock
}

var _ storage.Store = (*FileStore)(nil)

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	newslettersDir := filepath.Join(dataDir, newslettersSubdir)
	if err := os.MkdirAll(newslettersDir, 0o755); err != nil {
		return nil, fmt.Errorf("create newsletters dir: %w", err)
	}

	storiesPath := filepath.Join(dataDir, storiesFileName)
	f, err := os.OpenFile(storiesPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create stories file: %w", err)
	}
	_ = f.Close()

	return &FileStore{
		dataDir:        dataDir,
		storiesPath:    storiesPath,
		newslettersDir: newslettersDir,
		flck:           flock.New(filepath.Join(dataDir, lockFileName)),
	}, nil
}

// Append writes the stories whose ids are not yet present and returns how
// many it actually wrote. Each story is serialized to a single line and the
// whole batch is flushed with one write, so a reader never sees a story with
// only some of its fields.
func (s *FileStore) Append(ctx context.Context, stories []domain.Story) (int, error) {
	if len(stories) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flck.Lock(); err != nil {
		return 0, fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer func() { _ = s.flck.Unlock() }()

	existing, err := s.readIDs()
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	written := 0
	for _, story := range stories {
		if _, ok := existing[story.ID]; ok {
			continue
		}
		line, err := json.Marshal(story)
		if err != nil {
			return 0, fmt.Errorf("marshal story %s: %w", story.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		existing[story.ID] = struct{}{}
		written++
	}

	if written == 0 {
		slog.Info("No new stories to save")
		return 0, nil
	}

	f, err := os.OpenFile(s.storiesPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open stories file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("append stories: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync stories file: %w", err)
	}

	slog.Info("Saved new stories", "written", written, "skipped", len(stories)-written)
	return written, nil
}

// List returns a complete snapshot of the stories that pass the filter. The
// shared lock guarantees the snapshot reflects every append committed before
// the call started and none of a concurrent in-flight one.
func (s *FileStore) List(ctx context.Context, f storage.Filter) ([]domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.flck.RLock(); err != nil {
		return nil, fmt.Errorf("acquire shared lock: %w", err)
	}
	defer func() { _ = s.flck.Unlock() }()

	var out []domain.Story
	err := s.scan(func(story domain.Story) bool {
		if f.Matches(story) {
			out = append(out, story)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (domain.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.flck.RLock(); err != nil {
		return domain.Story{}, fmt.Errorf("acquire shared lock: %w", err)
	}
	defer func() { _ = s.flck.Unlock() }()

	var found *domain.Story
	err := s.scan(func(story domain.Story) bool {
		if story.ID == id {
			found = &story
			return false
		}
		return true
	})
	if err != nil {
		return domain.Story{}, err
	}
	if found == nil {
		return domain.Story{}, apperr.NewNotFound("story", id)
	}
	return *found, nil
}

// Update rewrites the whole collection through a temp file and swaps it in
// with a rename, so a crash mid-rewrite leaves the prior file intact.
func (s *FileStore) Update(ctx context.Context, id string, u storage.UpdateStory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flck.Lock(); err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer func() { _ = s.flck.Unlock() }()

	var all []domain.Story
	updated := false
	err := s.scan(func(story domain.Story) bool {
		if story.ID == id {
			applyUpdate(&story, u)
			updated = true
		}
		all = append(all, story)
		return true
	})
	if err != nil {
		return err
	}
	if !updated {
		return apperr.NewNotFound("story", id)
	}

	if err := s.rewrite(all); err != nil {
		return err
	}
	slog.Info("Updated story", "id", id)
	return nil
}

func (s *FileStore) Stats(ctx context.Context) (storage.Stats, error) {
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

	s.mu.RLock()
	if err := s.flck.RLock(); err != nil {
		s.mu.RUnlock()
		return storage.Stats{}, fmt.Errorf("acquire shared lock: %w", err)
	}

	scoreSum := 0
	scored := 0
	err := s.scan(func(story domain.Story) bool {
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
		return true
	})
	_ = s.flck.Unlock()
	s.mu.RUnlock()
	if err != nil {
		return storage.Stats{}, err
	}

	if scored > 0 {
		stats.AverageScore = utils.RoundDecimal(float64(scoreSum)/float64(scored), 2)
	}

	newsletters, err := s.ListNewsletters(ctx)
	if err != nil {
		return storage.Stats{}, err
	}
	stats.TotalNewsletters = len(newsletters)

	return stats, nil
}

// SaveNewsletter stores the rendered body and its metadata sidecar. Writing
// an existing id replaces both files, last writer wins.
func (s *FileStore) SaveNewsletter(ctx context.Context, n domain.Newsletter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mdPath := filepath.Join(s.newslettersDir, n.ID+".md")
	if err := os.WriteFile(mdPath, []byte(n.Content), 0o644); err != nil {
		return fmt.Errorf("write newsletter body %s: %w", n.ID, err)
	}

	meta := n.Metadata
	meta.ID = n.ID
	meta.StoryCount = len(meta.StoriesUsed)
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal newsletter metadata %s: %w", n.ID, err)
	}
	jsonPath := filepath.Join(s.newslettersDir, n.ID+".json")
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return fmt.Errorf("write newsletter metadata %s: %w", n.ID, err)
	}

	slog.Info("Saved newsletter", "id", n.ID, "stories", meta.StoryCount)
	return nil
}

func (s *FileStore) GetNewsletter(ctx context.Context, id string) (domain.Newsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := os.ReadFile(filepath.Join(s.newslettersDir, id+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Newsletter{}, apperr.NewNotFound("newsletter", id)
		}
		return domain.Newsletter{}, fmt.Errorf("read newsletter body %s: %w", id, err)
	}

	raw, err := os.ReadFile(filepath.Join(s.newslettersDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Newsletter{}, apperr.NewNotFound("newsletter", id)
		}
		return domain.Newsletter{}, fmt.Errorf("read newsletter metadata %s: %w", id, err)
	}

	var meta domain.NewsletterMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.Newsletter{}, fmt.Errorf("unmarshal newsletter metadata %s: %w", id, err)
	}

	return domain.Newsletter{ID: id, Content: string(body), Metadata: meta}, nil
}

func (s *FileStore) ListNewsletters(ctx context.Context) ([]domain.NewsletterMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.newslettersDir)
	if err != nil {
		return nil, fmt.Errorf("read newsletters dir: %w", err)
	}

	var out []domain.NewsletterMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.newslettersDir, entry.Name()))
		if err != nil {
			slog.Warn("Failed to read newsletter metadata", "file", entry.Name(), "error", err)
			continue
		}
		var meta domain.NewsletterMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			slog.Warn("Failed to parse newsletter metadata", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

// scan streams every parseable story line to fn; fn returning false stops
// the scan early. Malformed lines are logged and skipped.
func (s *FileStore) scan(fn func(domain.Story) bool) error {
	f, err := os.Open(s.storiesPath)
	if err != nil {
		return fmt.Errorf("open stories file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var story domain.Story
		if err := json.Unmarshal(line, &story); err != nil {
			slog.Warn("Failed to parse story line", "error", err)
			continue
		}
		if !fn(story) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan stories file: %w", err)
	}
	return nil
}

func (s *FileStore) readIDs() (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.scan(func(story domain.Story) bool {
		ids[story.ID] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *FileStore) rewrite(stories []domain.Story) error {
	tmp, err := os.CreateTemp(s.dataDir, storiesFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp stories file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := bufio.NewWriter(tmp)
	for _, story := range stories {
		line, err := json.Marshal(story)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("marshal story %s: %w", story.ID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp stories file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush temp stories file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp stories file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp stories file: %w", err)
	}

	if err := os.Rename(tmpPath, s.storiesPath); err != nil {
		return fmt.Errorf("swap stories file: %w", err)
	}
	return nil
}

func applyUpdate(story *domain.Story, u storage.UpdateStory) {
	if u.IsCanonical != nil {
		story.IsCanonical = *u.IsCanonical
	}
	if u.SimilarStories != nil {
		story.SimilarStories = u.SimilarStories
	}
	if u.Score != nil {
		story.Score = u.Score
	}
}
