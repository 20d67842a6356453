package scoring

import (
	"fmt"
	"strings"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

const maxPromptContentLen = 2000

const scoringSystemPrompt = `You are an expert marketing technology analyst. Your job is to evaluate AI news stories for their relevance to marketing professionals and score them 0-100.

SCORING CRITERIA (weighted):
1. RELEVANCE (35%): How directly does this impact marketing activities?
2. IMPACT (25%): How significant is the potential change?
3. ADOPTION (15%): How available/actionable is this?
4. URGENCY (15%): How time-sensitive is this for marketers?
5. CREDIBILITY (10%): How reliable is this information?

MARKETING CATEGORIES:
- Models: New AI models for content/targeting
- Ads/Targeting: Advertising and audience targeting
- Creative Tools: Content and creative generation
- Analytics: Data analysis and insights
- Automation: Marketing automation and workflows
- Personalization: Customer personalization
- Voice/Audio: Voice and audio marketing
- Video: Video marketing and production
- Search/SEO: Search optimization and discovery
- E-commerce: Online retail and shopping
- Social Media: Social platform marketing
- Email Marketing: Email campaigns and automation
- Content Marketing: Content strategy and creation
- Customer Service: Support and engagement
- Data/Privacy: Data handling and privacy
- Emerging Tech: New technologies affecting marketing

Return your analysis as JSON with this exact structure:
{
  "overall_score": <0-100>,
  "relevance_score": <0-100>,
  "impact_score": <0-100>,
  "adoption_score": <0-100>,
  "urgency_score": <0-100>,
  "credibility_score": <0-100>,
  "marketer_relevance": ["brief bullet point 1", "brief bullet point 2"],
  "action_hint": "specific suggestion for marketers",
  "tags": ["tag1", "tag2"]
}`

func scoringPrompt(s domain.Story) string {
	content := s.Content
	if len(content) > maxPromptContentLen {
		content = content[:maxPromptContentLen] + "..."
	}

	return fmt.Sprintf(`Analyze this AI news story for marketing relevance:

TITLE: %s

SOURCE: %s (%s)

DESCRIPTION: %s

CONTENT: %s

PUBLISHED: %s

Provide a detailed analysis focusing on how this affects marketing professionals, what actions they should take, and assign appropriate tags from the provided categories.`,
		s.Title, s.SourceName, s.SourceDomain, s.Description, content, s.PublishedAt.Format("2006-01-02"))
}

const newsletterSystemPrompt = `You are an expert marketing newsletter writer specializing in AI technology.

Your job is to create engaging, informative newsletters that help marketing professionals stay current with AI developments that matter to their work.

STYLE GUIDELINES:
- Professional but approachable tone
- Focus on practical implications for marketers
- Include specific action items when relevant
- Use clear, scannable formatting with headers
- Prioritize high-scoring stories
- Provide context for why each story matters

STRUCTURE:
1. Brief opening that sets the week's theme
2. Top stories with analysis
3. Quick hits for lower-priority items
4. Closing thoughts or trends observation

FORMAT: Return clean Markdown that's ready for email or web publishing.`

const newsletterMaxStories = 10

func newsletterPrompt(stories []domain.Story, instructions string) string {
	var b strings.Builder
	b.WriteString("Create a marketing newsletter from these AI news stories:\n")

	for i, s := range stories {
		if i >= newsletterMaxStories {
			break
		}
		tags := make([]string, len(s.Tags))
		for j, t := range s.Tags {
			tags[j] = string(t)
		}
		fmt.Fprintf(&b, `
STORY %d (Score: %d/100)
Title: %s
Source: %s
Key Points: %s
Action: %s
Tags: %s
URL: %s
`,
			i+1, s.ScoreValue(), s.Title, s.SourceName,
			strings.Join(s.MarketerRelevance, "; "), s.ActionHint,
			strings.Join(tags, ", "), s.CanonicalURL)
	}

	if instructions != "" {
		b.WriteString("\nEDITORIAL INSTRUCTIONS: ")
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	return b.String()
}
