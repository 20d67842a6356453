package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4o-mini"

	// One request every half second keeps us under the per-minute quota
	// without a retry loop.
	defaultRequestInterval = 500 * time.Millisecond
)

// Config wires an OpenAI-compatible chat completions endpoint.
type Config struct {
	Endpoint        string
	Model           string
	APIKey          string
	RequestInterval time.Duration
}

// OpenAIClient scores stories and renders newsletters against a chat
// completions API. It paces outgoing calls with a client-side limiter so a
// full batch does not trip the provider's rate limits in the first place.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Scorer = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = defaultRequestInterval
	}

	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// scorePayload is the JSON shape the scoring prompt asks the model for.
type scorePayload struct {
	OverallScore      int      `json:"overall_score"`
	RelevanceScore    int      `json:"relevance_score"`
	ImpactScore       int      `json:"impact_score"`
	AdoptionScore     int      `json:"adoption_score"`
	UrgencyScore      int      `json:"urgency_score"`
	CredibilityScore  int      `json:"credibility_score"`
	MarketerRelevance []string `json:"marketer_relevance"`
	ActionHint        string   `json:"action_hint"`
	Tags              []string `json:"tags"`
}

// Score annotates one story. A 429 from the provider surfaces as
// ErrRateLimited so the pipeline can short-circuit the rest of the batch.
func (c *OpenAIClient) Score(ctx context.Context, story domain.Story) (domain.Story, error) {
	raw, err := c.complete(ctx, scoringSystemPrompt, scoringPrompt(story), 0.1, 1000)
	if err != nil {
		return story, err
	}

	payload, err := parseScorePayload(raw)
	if err != nil {
		return story, fmt.Errorf("parse scoring response for %q: %w", story.Title, err)
	}

	story.Score = &payload.OverallScore
	story.RelevanceScore = &payload.RelevanceScore
	story.ImpactScore = &payload.ImpactScore
	story.AdoptionScore = &payload.AdoptionScore
	story.UrgencyScore = &payload.UrgencyScore
	story.CredibilityScore = &payload.CredibilityScore
	story.MarketerRelevance = payload.MarketerRelevance
	story.ActionHint = payload.ActionHint
	story.Tags = make([]domain.StoryTag, 0, len(payload.Tags))
	for _, tag := range payload.Tags {
		story.Tags = append(story.Tags, domain.StoryTag(tag))
	}

	slog.Info("Scored story", "title", story.Title, "score", payload.OverallScore)
	return story, nil
}

// Render produces the newsletter markdown for a set of stories. Stories are
// assumed to arrive highest score first.
func (c *OpenAIClient) Render(ctx context.Context, stories []domain.Story, instructions string) (string, error) {
	content, err := c.complete(ctx, newsletterSystemPrompt, newsletterPrompt(stories, instructions), 0.3, 3000)
	if err != nil {
		return "", err
	}
	slog.Info("Generated newsletter", "stories", len(stories))
	return content, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai client misconfigured: missing api key")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%s: %w", resp.Status, ErrRateLimited)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// parseScorePayload extracts the JSON object from a model reply that may be
// wrapped in markdown fences or prose.
func parseScorePayload(raw string) (scorePayload, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return scorePayload{}, fmt.Errorf("empty response")
	}

	if rest, ok := strings.CutPrefix(content, "```json"); ok {
		content = rest
	} else if rest, ok := strings.CutPrefix(content, "```"); ok {
		content = rest
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return scorePayload{}, fmt.Errorf("no JSON object in response")
	}
	content = content[start : end+1]

	var payload scorePayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return scorePayload{}, fmt.Errorf("unmarshal score payload: %w", err)
	}
	return payload, nil
}
