package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DjordjeVuckovic/news-pulse/internal/dedup"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/fetch"
	"github.com/DjordjeVuckovic/news-pulse/internal/scoring"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
)

// ErrAlreadyRunning is returned by Run when another run holds the
// single-flight slot. The Result returned alongside it is the last
// completed run, zero-valued if none has finished yet.
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Pipeline sequences fetch, score, cluster, persist for one run at a time.
type Pipeline struct {
	fetcher fetch.Fetcher
	scorer  scoring.Scorer
	deduper *dedup.Deduper
	store   storage.StoryStore
	state   *RunState
	now     func() time.Time
}

type Option func(*Pipeline)

func WithDeduper(d *dedup.Deduper) Option {
	return func(p *Pipeline) {
		p.deduper = d
	}
}

func New(fetcher fetch.Fetcher, scorer scoring.Scorer, store storage.StoryStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: fetcher,
		scorer:  scorer,
		deduper: dedup.NewDeduper(),
		store:   store,
		state:   NewRunState(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status reports whether a run is in flight, its current stage, and the
// last completed result.
func (p *Pipeline) Status() (bool, Status, *Result) {
	return p.state.Snapshot()
}

// Run executes one full pipeline pass over the given source domains. Only
// one run executes at a time: a call made while another run is active
// returns the last completed result and ErrAlreadyRunning without blocking.
func (p *Pipeline) Run(ctx context.Context, sources []string) (Result, error) {
	runID, ok := p.state.TryStart()
	if !ok {
		_, _, last := p.state.Snapshot()
		if last == nil {
			return Result{}, ErrAlreadyRunning
		}
		return *last, ErrAlreadyRunning
	}

	return p.execute(ctx, runID, sources), nil
}

// Trigger claims the single-flight slot and executes the run in the
// background. Callers learn synchronously whether their run started:
// when another run is active it returns ErrAlreadyRunning and no
// goroutine is spawned.
func (p *Pipeline) Trigger(ctx context.Context, sources []string) (string, error) {
	runID, ok := p.state.TryStart()
	if !ok {
		return "", ErrAlreadyRunning
	}
	go p.execute(ctx, runID, sources)
	return runID, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, sources []string) Result {
	result := p.run(ctx, runID, sources)
	p.state.Finish(result)

	slog.Info("Pipeline run finished",
		"run_id", result.RunID,
		"success", result.Success,
		"fetched", result.Fetched,
		"scored", result.Scored,
		"written", result.Written,
		"duration", result.Elapsed,
	)
	return result
}

func (p *Pipeline) run(ctx context.Context, runID string, sources []string) Result {
	start := p.now()

	fail := func(err error) Result {
		return Result{
			RunID:      runID,
			Success:    false,
			Message:    err.Error(),
			Elapsed:    p.now().Sub(start),
			FinishedAt: p.now(),
		}
	}

	stories, err := p.fetcher.Fetch(ctx, sources)
	if err != nil {
		return fail(fmt.Errorf("fetching stories: %w", err))
	}
	if len(stories) == 0 {
		return Result{
			RunID:      runID,
			Success:    true,
			Message:    "no new stories fetched",
			Elapsed:    p.now().Sub(start),
			FinishedAt: p.now(),
		}
	}

	p.state.SetStatus(StatusScoring)
	scored := p.scoreAll(ctx, stories)

	p.state.SetStatus(StatusClustering)
	clustered := p.deduper.Cluster(stories)

	p.state.SetStatus(StatusPersisting)
	written, err := p.store.Append(ctx, clustered)
	if err != nil {
		return fail(fmt.Errorf("persisting stories: %w", err))
	}

	return Result{
		RunID:      runID,
		Success:    true,
		Fetched:    len(stories),
		Scored:     scored,
		Written:    written,
		Elapsed:    p.now().Sub(start),
		FinishedAt: p.now(),
	}
}

// scoreAll scores each unscored story in place and returns how many got a
// real score. A rate-limit failure stops further scoring and zero-fills
// the rest; any other scoring failure zero-fills just that story.
func (p *Pipeline) scoreAll(ctx context.Context, stories []domain.Story) int {
	scored := 0
	rateLimited := false

	for i := range stories {
		if stories[i].Score != nil {
			continue
		}
		if rateLimited {
			stories[i].ApplyDefaultScores()
			continue
		}

		annotated, err := p.scorer.Score(ctx, stories[i])
		if err != nil {
			if errors.Is(err, scoring.ErrRateLimited) {
				slog.Warn("Scoring rate limited, defaulting remaining stories",
					"story_id", stories[i].ID, "error", err)
				rateLimited = true
			} else {
				slog.Warn("Failed to score story", "story_id", stories[i].ID, "error", err)
			}
			stories[i].ApplyDefaultScores()
			continue
		}
		stories[i] = annotated
		scored++
	}
	return scored
}
