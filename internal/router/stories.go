package router

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/fetch"
	"github.com/DjordjeVuckovic/news-pulse/internal/pipeline"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
)

type StoriesRouter struct {
	e        *echo.Echo
	store    storage.Store
	pipeline *pipeline.Pipeline
	registry fetch.Registry
}

func NewStoriesRouter(e *echo.Echo, store storage.Store, p *pipeline.Pipeline, registry fetch.Registry) *StoriesRouter {
	return &StoriesRouter{
		e:        e,
		store:    store,
		pipeline: p,
		registry: registry,
	}
}

func (r *StoriesRouter) Bind() {
	r.e.GET("/api/stories", r.listHandler)
	r.e.GET("/api/stories/:id", r.getHandler)
	r.e.POST("/api/refresh", r.refreshHandler)
	r.e.GET("/api/sources", r.sourcesHandler)
	r.e.GET("/api/tags", r.tagsHandler)
	r.e.GET("/api/stats", r.statsHandler)
}

func (r *StoriesRouter) listHandler(c echo.Context) error {
	filter := storage.Filter{}

	if raw := c.QueryParam("min_score"); raw != "" {
		min, err := strconv.Atoi(raw)
		if err == nil {
			filter.MinScore = &min
		}
	}
	filter.SourceDomain = c.QueryParam("source_domain")

	if raw := c.QueryParam("days_back"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err == nil && days > 0 {
			filter.PublishedFrom = time.Now().AddDate(0, 0, -days)
		}
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			limit = n
		}
	}

	// Duplicates are hidden unless explicitly requested.
	canonicalOnly := c.QueryParam("canonical_only") != "false"

	stories, err := r.store.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	if canonicalOnly {
		filtered := stories[:0]
		for _, s := range stories {
			if s.IsCanonical {
				filtered = append(filtered, s)
			}
		}
		stories = filtered
	}

	// Best-scored first, newest first on ties. List itself does not order.
	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].ScoreValue() != stories[j].ScoreValue() {
			return stories[i].ScoreValue() > stories[j].ScoreValue()
		}
		return stories[i].PublishedAt.After(stories[j].PublishedAt)
	})

	if limit > 0 && len(stories) > limit {
		stories = stories[:limit]
	}
	if stories == nil {
		stories = []domain.Story{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"stories": stories,
		"count":   len(stories),
	})
}

func (r *StoriesRouter) getHandler(c echo.Context) error {
	story, err := r.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, story)
}

type refreshResponse struct {
	Status     pipeline.Status  `json:"status"`
	RunID      string           `json:"run_id,omitempty"`
	LastResult *pipeline.Result `json:"last_result,omitempty"`
}

func (r *StoriesRouter) refreshHandler(c echo.Context) error {
	sources := r.registry.Domains()
	if raw := c.QueryParam("sources"); raw != "" {
		sources = strings.Split(raw, ",")
		for i := range sources {
			sources[i] = strings.TrimSpace(sources[i])
		}
	}

	// Detached from the request context: refresh outlives the HTTP call.
	runID, err := r.pipeline.Trigger(context.Background(), sources)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		_, status, last := r.pipeline.Status()
		return c.JSON(http.StatusConflict, refreshResponse{
			Status:     status,
			LastResult: last,
		})
	}

	return c.JSON(http.StatusAccepted, refreshResponse{
		Status: pipeline.StatusFetching,
		RunID:  runID,
	})
}

func (r *StoriesRouter) sourcesHandler(c echo.Context) error {
	sources := make([]fetch.Source, 0, len(r.registry))
	for _, d := range r.registry.Domains() {
		sources = append(sources, r.registry[d])
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

func (r *StoriesRouter) tagsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tags": domain.AllTags()})
}

func (r *StoriesRouter) statsHandler(c echo.Context) error {
	stats, err := r.store.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
