package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// StoryTag categorizes a story by the marketing area it touches.
type StoryTag string

const (
	TagModels           StoryTag = "Models"
	TagAdsTargeting     StoryTag = "Ads/Targeting"
	TagCreativeTools    StoryTag = "Creative Tools"
	TagAnalytics        StoryTag = "Analytics"
	TagAutomation       StoryTag = "Automation"
	TagPersonalization  StoryTag = "Personalization"
	TagVoiceAudio       StoryTag = "Voice/Audio"
	TagVideo            StoryTag = "Video"
	TagSearchSEO        StoryTag = "Search/SEO"
	TagEcommerce        StoryTag = "E-commerce"
	TagSocialMedia      StoryTag = "Social Media"
	TagEmailMarketing   StoryTag = "Email Marketing"
	TagContentMarketing StoryTag = "Content Marketing"
	TagCustomerService  StoryTag = "Customer Service"
	TagDataPrivacy      StoryTag = "Data/Privacy"
	TagEmergingTech     StoryTag = "Emerging Tech"
)

// AllTags lists every tag the scoring step may assign.
func AllTags() []StoryTag {
	return []StoryTag{
		TagModels, TagAdsTargeting, TagCreativeTools, TagAnalytics,
		TagAutomation, TagPersonalization, TagVoiceAudio, TagVideo,
		TagSearchSEO, TagEcommerce, TagSocialMedia, TagEmailMarketing,
		TagContentMarketing, TagCustomerService, TagDataPrivacy,
		TagEmergingTech,
	}
}

// Story is one ingested news item. The ID is deterministic, derived from
// (published date, source domain, canonical URL), and immutable once set.
type Story struct {
	ID           string    `json:"id"`
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Content      string    `json:"content,omitempty"`
	PublishedAt  time.Time `json:"published_date"`
	FetchedAt    time.Time `json:"fetched_date"`
	SourceDomain string    `json:"source_domain"`
	SourceName   string    `json:"source_name"`

	// AI-derived fields, nil/empty until the story has been scored.
	Score             *int       `json:"score,omitempty"`
	RelevanceScore    *int       `json:"relevance_score,omitempty"`
	ImpactScore       *int       `json:"impact_score,omitempty"`
	AdoptionScore     *int       `json:"adoption_score,omitempty"`
	UrgencyScore      *int       `json:"urgency_score,omitempty"`
	CredibilityScore  *int       `json:"credibility_score,omitempty"`
	MarketerRelevance []string   `json:"marketer_relevance,omitempty"`
	ActionHint        string     `json:"action_hint,omitempty"`
	Tags              []StoryTag `json:"tags,omitempty"`

	// Deduplication metadata, set only by the dedup pass.
	IsCanonical    bool     `json:"is_canonical"`
	SimilarStories []string `json:"similar_stories,omitempty"`
}

// ScoreValue returns the overall score, treating unscored stories as zero.
func (s Story) ScoreValue() int {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// ApplyDefaultScores zero-fills every AI-derived field. Used when scoring
// fails or is skipped so downstream stages see a fully populated record.
func (s *Story) ApplyDefaultScores() {
	zero := 0
	s.Score = &zero
	s.RelevanceScore = &zero
	s.ImpactScore = &zero
	s.AdoptionScore = &zero
	s.UrgencyScore = &zero
	s.CredibilityScore = &zero
	s.MarketerRelevance = []string{}
	s.ActionHint = ""
	s.Tags = []StoryTag{}
}

// NewStoryID derives the store's uniqueness key for a story. Same inputs
// always yield the same ID, which is what makes Append idempotent.
func NewStoryID(publishedAt time.Time, sourceDomain, canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return fmt.Sprintf("%s_%s_%s",
		publishedAt.UTC().Format("2006-01-02"),
		sourceDomain,
		hex.EncodeToString(sum[:])[:8],
	)
}
