package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/scoring"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/in_mem"
)

type fetcherFunc func(ctx context.Context, sources []string) ([]domain.Story, error)

func (f fetcherFunc) Fetch(ctx context.Context, sources []string) ([]domain.Story, error) {
	return f(ctx, sources)
}

type scorerFunc func(ctx context.Context, story domain.Story) (domain.Story, error)

func (f scorerFunc) Score(ctx context.Context, story domain.Story) (domain.Story, error) {
	return f(ctx, story)
}

type failingStore struct {
	storage.StoryStore
}

func (failingStore) Append(context.Context, []domain.Story) (int, error) {
	return 0, errors.New("disk full")
}

func fetchBatch(n int) fetcherFunc {
	return func(context.Context, []string) ([]domain.Story, error) {
		stories := make([]domain.Story, 0, n)
		for i := 0; i < n; i++ {
			stories = append(stories, domain.Story{
				ID:           fmt.Sprintf("2026-08-20_source-%d.test_%08d", i, i),
				CanonicalURL: fmt.Sprintf("https://source-%d.test/blog/launch-%d", i, i),
				Title:        fmt.Sprintf("Completely unrelated launch story number %d", i),
				Content: fmt.Sprintf("Story %d covers a distinct product area with its own vocabulary: "+
					"topic%dalpha topic%dbeta topic%dgamma topic%ddelta audience%d channel%d budget%d.",
					i, i, i, i, i, i, i, i),
				PublishedAt:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
				SourceDomain: fmt.Sprintf("source-%d.test", i),
			})
		}
		return stories, nil
	}
}

func scoreConstant(score int) scorerFunc {
	return func(_ context.Context, story domain.Story) (domain.Story, error) {
		s := score
		story.Score = &s
		story.Tags = []domain.StoryTag{domain.TagModels}
		return story, nil
	}
}

func TestRun_HappyPath(t *testing.T) {
	store := in_mem.NewInMemStore()
	p := New(fetchBatch(5), scoreConstant(80), store)

	result, err := p.Run(context.Background(), []string{"source-0.test"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 5, result.Scored)
	assert.Equal(t, 5, result.Written)
	assert.NotEmpty(t, result.RunID)

	stored, err := store.List(context.Background(), storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestRun_EmptyFetchSucceeds(t *testing.T) {
	p := New(fetchBatch(0), scoreConstant(80), in_mem.NewInMemStore())

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Written)
	assert.Equal(t, "no new stories fetched", result.Message)
}

func TestRun_FetchFailureFailsRun(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, []string) ([]domain.Story, error) {
		return nil, errors.New("network down")
	})
	p := New(fetcher, scoreConstant(80), in_mem.NewInMemStore())

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "network down")

	running, status, _ := p.Status()
	assert.False(t, running)
	assert.Equal(t, StatusFailed, status)
}

func TestRun_RateLimitDefaultsRemainingScores(t *testing.T) {
	calls := 0
	scorer := scorerFunc(func(_ context.Context, story domain.Story) (domain.Story, error) {
		calls++
		if calls >= 3 {
			return domain.Story{}, fmt.Errorf("429 Too Many Requests: %w", scoring.ErrRateLimited)
		}
		s := 90
		story.Score = &s
		story.Tags = []domain.StoryTag{domain.TagCreativeTools}
		return story, nil
	})

	store := in_mem.NewInMemStore()
	p := New(fetchBatch(5), scorer, store)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 2, result.Scored)
	assert.Equal(t, 5, result.Written)
	assert.Equal(t, 3, calls, "scorer must not be called after a rate limit")

	stored, err := store.List(context.Background(), storage.Filter{})
	require.NoError(t, err)

	real, zeroed := 0, 0
	for _, s := range stored {
		switch s.ScoreValue() {
		case 90:
			real++
		case 0:
			zeroed++
			assert.Empty(t, s.Tags)
		}
	}
	assert.Equal(t, 2, real)
	assert.Equal(t, 3, zeroed)
}

func TestRun_SingleScoringErrorDefaultsOnlyThatStory(t *testing.T) {
	calls := 0
	scorer := scorerFunc(func(_ context.Context, story domain.Story) (domain.Story, error) {
		calls++
		if calls == 2 {
			return domain.Story{}, errors.New("malformed model response")
		}
		s := 75
		story.Score = &s
		return story, nil
	})

	p := New(fetchBatch(4), scorer, in_mem.NewInMemStore())

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Scored)
	assert.Equal(t, 4, calls, "non-rate-limit errors must not stop scoring")
}

func TestRun_StoreFailureFailsRun(t *testing.T) {
	p := New(fetchBatch(2), scoreConstant(80), failingStore{})

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "disk full")
}

func TestRun_SecondCallIdempotentViaStore(t *testing.T) {
	store := in_mem.NewInMemStore()
	p := New(fetchBatch(3), scoreConstant(80), store)

	first, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Written)

	second, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Zero(t, second.Written, "same ids are deduplicated by the store")
}

func TestRun_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fetcher := fetcherFunc(func(context.Context, []string) ([]domain.Story, error) {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil, nil
	})

	p := New(fetcher, scoreConstant(80), in_mem.NewInMemStore())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Run(context.Background(), nil)
		assert.NoError(t, err)
	}()

	<-started
	running, status, last := p.Status()
	assert.True(t, running)
	assert.Equal(t, StatusFetching, status)
	assert.Nil(t, last)

	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	wg.Wait()

	running, status, last = p.Status()
	assert.False(t, running)
	assert.Equal(t, StatusCompleted, status)
	require.NotNil(t, last)
	assert.True(t, last.Success)

	// The slot is free again after Finish.
	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestTrigger_ClaimsSlotBeforeReturning(t *testing.T) {
	release := make(chan struct{})
	fetcher := fetcherFunc(func(context.Context, []string) ([]domain.Story, error) {
		<-release
		return nil, nil
	})

	p := New(fetcher, scoreConstant(80), in_mem.NewInMemStore())

	runID, err := p.Trigger(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	// The slot is taken the moment Trigger returns, no goroutine scheduling
	// window for a second caller to slip through.
	_, err = p.Trigger(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	require.Eventually(t, func() bool {
		running, _, _ := p.Status()
		return !running
	}, 2*time.Second, 10*time.Millisecond)

	_, status, last := p.Status()
	assert.Equal(t, StatusCompleted, status)
	require.NotNil(t, last)
	assert.Equal(t, runID, last.RunID)
}

func TestRunState_TryStartFinish(t *testing.T) {
	state := NewRunState()

	id1, ok := state.TryStart()
	require.True(t, ok)
	assert.NotEmpty(t, id1)

	id2, ok := state.TryStart()
	assert.False(t, ok)
	assert.Equal(t, id1, id2, "concurrent start sees the active run id")

	state.Finish(Result{RunID: id1, Success: true})

	id3, ok := state.TryStart()
	require.True(t, ok)
	assert.NotEqual(t, id1, id3)
}
