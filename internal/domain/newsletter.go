package domain

import "time"

// Newsletter is a generated artifact: rendered markdown plus the metadata
// describing how it was produced. Regenerating with the same ID replaces the
// prior artifact, there is no versioning.
type Newsletter struct {
	ID       string             `json:"newsletter_id"`
	Content  string             `json:"content"`
	Metadata NewsletterMetadata `json:"metadata"`
}

// NewsletterMetadata is the sidecar stored next to the rendered body and the
// shape returned by newsletter listings.
type NewsletterMetadata struct {
	ID           string    `json:"newsletter_id"`
	GeneratedAt  time.Time `json:"generated_date"`
	StoriesUsed  []string  `json:"stories_used"`
	StoryCount   int       `json:"story_count"`
	DateFrom     time.Time `json:"date_from"`
	DateTo       time.Time `json:"date_to"`
	MinScore     int       `json:"min_score"`
	Instructions string    `json:"editorial_instructions,omitempty"`
}

// NewsletterID derives the artifact key from the requested start date.
func NewsletterID(dateFrom time.Time) string {
	return dateFrom.Format("2006-01-02")
}
