package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/newsletter"
)

type NewslettersRouter struct {
	e       *echo.Echo
	service *newsletter.Service
}

func NewNewslettersRouter(e *echo.Echo, service *newsletter.Service) *NewslettersRouter {
	return &NewslettersRouter{
		e:       e,
		service: service,
	}
}

func (r *NewslettersRouter) Bind() {
	r.e.POST("/api/newsletters/render", r.renderHandler)
	r.e.GET("/api/newsletters", r.listHandler)
	r.e.GET("/api/newsletters/:id", r.getHandler)
	r.e.GET("/api/newsletters/:id/markdown", r.markdownHandler)
	r.e.GET("/api/newsletters/:id/stories", r.storiesHandler)
	r.e.GET("/api/newsletters/:id/analytics", r.analyticsHandler)
}

type renderRequest struct {
	DateFrom     string   `json:"date_from"`
	DateTo       string   `json:"date_to"`
	StoryIDs     []string `json:"story_ids"`
	MinScore     int      `json:"min_score"`
	MaxStories   int      `json:"max_stories"`
	Instructions string   `json:"editorial_instructions"`
}

func (r *NewslettersRouter) renderHandler(c echo.Context) error {
	var body renderRequest
	if err := c.Bind(&body); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}

	if body.DateFrom == "" {
		return apperr.NewValidation("date_from is required")
	}
	dateFrom, err := parseDay(body.DateFrom)
	if err != nil {
		return apperr.NewValidationWrap("invalid date_from", err)
	}
	dateTo, err := parseDay(body.DateTo)
	if err != nil {
		return apperr.NewValidationWrap("invalid date_to", err)
	}
	if dateTo.IsZero() {
		dateTo = time.Now()
	}
	if dateTo.Before(dateFrom) {
		return apperr.NewValidation("date_to must not precede date_from")
	}

	n, err := r.service.Generate(c.Request().Context(), newsletter.Request{
		DateFrom:     dateFrom,
		DateTo:       dateTo,
		StoryIDs:     body.StoryIDs,
		MinScore:     body.MinScore,
		MaxStories:   body.MaxStories,
		Instructions: body.Instructions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (r *NewslettersRouter) listHandler(c echo.Context) error {
	metas, err := r.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"newsletters": metas,
		"count":       len(metas),
	})
}

func (r *NewslettersRouter) getHandler(c echo.Context) error {
	n, err := r.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (r *NewslettersRouter) markdownHandler(c echo.Context) error {
	n, err := r.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(n.Content))
}

func (r *NewslettersRouter) storiesHandler(c echo.Context) error {
	id := c.Param("id")
	stories, err := r.service.Stories(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"newsletter_id": id,
		"stories":       stories,
		"count":         len(stories),
	})
}

func (r *NewslettersRouter) analyticsHandler(c echo.Context) error {
	analytics, err := r.service.Analytics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analytics)
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
