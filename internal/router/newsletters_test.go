package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DjordjeVuckovic/news-pulse/internal/apperr"
	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
	"github.com/DjordjeVuckovic/news-pulse/internal/newsletter"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/in_mem"
)

type staticWriter string

func (w staticWriter) Render(context.Context, []domain.Story, string) (string, error) {
	return string(w), nil
}

func newTestNewslettersAPI(t *testing.T) (*echo.Echo, *in_mem.InMemStore) {
	t.Helper()

	store := in_mem.NewInMemStore()
	svc := newsletter.NewService(store, staticWriter("# Weekly AI Marketing Digest"))

	e := echo.New()
	e.HTTPErrorHandler = apperr.GlobalErrorHandler()
	NewNewslettersRouter(e, svc).Bind()
	return e, store
}

func TestRenderNewsletter(t *testing.T) {
	e, store := newTestNewslettersAPI(t)
	seed(t, store, domain.Story{
		ID: "s1", CanonicalURL: "https://openai.com/blog/s1", Title: "Scored high",
		SourceDomain: "openai.com",
		PublishedAt:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Score:        intPtr(92),
	})

	body := `{"date_from":"2026-08-01","date_to":"2026-08-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/newsletters/render", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var n domain.Newsletter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, "2026-08-01", n.ID)
	assert.Equal(t, "# Weekly AI Marketing Digest", n.Content)
	assert.Equal(t, []string{"s1"}, n.Metadata.StoriesUsed)

	// Listing and markdown retrieval round-trip.
	req = httptest.NewRequest(http.MethodGet, "/api/newsletters", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/newsletters/2026-08-01/markdown", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Weekly AI Marketing Digest", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "markdown")
}

func TestRenderNewsletter_Validation(t *testing.T) {
	e, _ := newTestNewslettersAPI(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing date_from", `{"date_to":"2026-08-31"}`},
		{"bad date_from", `{"date_from":"31/08/2026"}`},
		{"inverted range", `{"date_from":"2026-08-31","date_to":"2026-08-01"}`},
		{"no matching stories", `{"date_from":"2026-08-01","date_to":"2026-08-31"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/newsletters/render", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestNewsletterStoriesAndAnalytics(t *testing.T) {
	e, store := newTestNewslettersAPI(t)
	seed(t, store,
		domain.Story{
			ID: "s1", CanonicalURL: "https://openai.com/blog/s1", Title: "High",
			SourceDomain: "openai.com", SourceName: "OpenAI",
			PublishedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			Score:       intPtr(92), Tags: []domain.StoryTag{domain.TagModels},
		},
		domain.Story{
			ID: "s2", CanonicalURL: "https://anthropic.com/news/s2", Title: "Mid",
			SourceDomain: "anthropic.com", SourceName: "Anthropic",
			PublishedAt: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
			Score:       intPtr(70), Tags: []domain.StoryTag{domain.TagModels},
		},
	)

	body := `{"date_from":"2026-08-01","date_to":"2026-08-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/newsletters/render", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/newsletters/2026-08-01/stories", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stories struct {
		NewsletterID string         `json:"newsletter_id"`
		Stories      []domain.Story `json:"stories"`
		Count        int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stories))
	assert.Equal(t, "2026-08-01", stories.NewsletterID)
	assert.Equal(t, 2, stories.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/newsletters/2026-08-01/analytics", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var analytics newsletter.Analytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analytics))
	assert.Equal(t, 2, analytics.StoryCount)
	assert.Equal(t, 92, analytics.ScoreStats.Maximum)
	assert.Equal(t, 70, analytics.ScoreStats.Minimum)
	assert.InDelta(t, 81.0, analytics.ScoreStats.Average, 0.01)
	assert.Equal(t, map[string]int{"OpenAI": 1, "Anthropic": 1}, analytics.Sources)

	// Unknown newsletters map to 404 on both endpoints.
	for _, target := range []string{
		"/api/newsletters/2020-01-01/stories",
		"/api/newsletters/2020-01-01/analytics",
	} {
		req = httptest.NewRequest(http.MethodGet, target, nil)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestGetNewsletter_UnknownIs404(t *testing.T) {
	e, _ := newTestNewslettersAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/newsletters/2020-01-01", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
