package dedup

import (
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

const (
	// DefaultThreshold is the max Hamming distance for two fingerprints to
	// count as hash-similar.
	DefaultThreshold = 3

	// Cross-host pairs need near-identical fingerprints no matter what the
	// URL or title signals say.
	crossHostThreshold = 1

	titleJaccardThreshold = 0.8
	authorityBonus        = 10
)

// Primary sources whose version of a story wins ties during canonical
// selection.
var authorityDomains = []string{"openai.com", "anthropic.com", "microsoft.com", "google.com"}

var (
	fileExtRe     = regexp.MustCompile(`\.[a-zA-Z0-9]+$`)
	boilerplateRe = regexp.MustCompile(`/(news|blog|article|post|story)/`)
	datePathRes   = []*regexp.Regexp{
		regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`),
		regexp.MustCompile(`/\d{4}/\d{2}/`),
		regexp.MustCompile(`/\d{4}/`),
	}
)

// Deduper clusters near-duplicate stories and selects one canonical record
// per cluster. A single invocation is self-contained: exclusion of stories
// persisted by earlier runs is the pipeline's job via store id uniqueness.
type Deduper struct {
	threshold int
}

type Option func(*Deduper)

// WithThreshold overrides the default Hamming-distance threshold.
func WithThreshold(threshold int) Option {
	return func(d *Deduper) {
		d.threshold = threshold
	}
}

func NewDeduper(opts ...Option) *Deduper {
	d := &Deduper{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cluster returns the input stories annotated with canonical flags and
// cross-references. The grouping is greedy in input order: each story joins
// the first open cluster whose representative it matches, so near-threshold
// chains (A~B, B~C, A!~C) resolve by arrival order.
func (d *Deduper) Cluster(stories []domain.Story) []domain.Story {
	if len(stories) == 0 {
		return stories
	}

	slog.Info("Deduplicating stories", "count", len(stories))

	fingerprints := make([]fingerprint, len(stories))
	for i, story := range stories {
		fingerprints[i] = newFingerprint(story)
		if !fingerprints[i].ok {
			slog.Warn("Fingerprint failed, story stays a singleton", "id", story.ID, "title", story.Title)
		}
	}

	groups := d.groupSimilar(stories, fingerprints)

	out := make([]domain.Story, 0, len(stories))
	canonicalCount := 0
	for _, group := range groups {
		if len(group) == 1 {
			single := group[0]
			single.IsCanonical = true
			single.SimilarStories = []string{}
			out = append(out, single)
			canonicalCount++
			continue
		}

		canonical, duplicates := selectCanonical(group)

		canonical.IsCanonical = true
		canonical.SimilarStories = make([]string, 0, len(duplicates))
		for _, dup := range duplicates {
			canonical.SimilarStories = append(canonical.SimilarStories, dup.ID)
		}
		out = append(out, canonical)
		canonicalCount++

		for _, dup := range duplicates {
			dup.IsCanonical = false
			dup.SimilarStories = []string{canonical.ID}
			out = append(out, dup)
		}
	}

	slog.Info("Deduplication result", "canonical", canonicalCount, "total", len(stories))
	return out
}

type fingerprint struct {
	hash uint64
	ok   bool
}

func newFingerprint(s domain.Story) fingerprint {
	h, ok := simhash(tokenize(hashText(s)))
	return fingerprint{hash: h, ok: ok}
}

func (d *Deduper) groupSimilar(stories []domain.Story, fps []fingerprint) [][]domain.Story {
	var groups [][]domain.Story
	used := make([]bool, len(stories))

	for i := range stories {
		if used[i] {
			continue
		}
		group := []domain.Story{stories[i]}
		used[i] = true

		for j := i + 1; j < len(stories); j++ {
			if used[j] {
				continue
			}
			if d.similar(stories[i], stories[j], fps[i], fps[j]) {
				group = append(group, stories[j])
				used[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// similar decides whether two stories describe the same underlying item.
// Hash-similarity gates everything; URL and title signals confirm it.
func (d *Deduper) similar(a, b domain.Story, fa, fb fingerprint) bool {
	if !fa.ok || !fb.ok {
		return false
	}

	distance := hammingDistance(fa.hash, fb.hash)
	if distance > d.threshold {
		return false
	}

	if a.CanonicalURL == b.CanonicalURL {
		return true
	}

	ua, errA := url.Parse(a.CanonicalURL)
	ub, errB := url.Parse(b.CanonicalURL)
	if errA != nil || errB != nil {
		return distance <= crossHostThreshold
	}

	if ua.Host != ub.Host {
		return distance <= crossHostThreshold
	}

	if cleanURLPath(ua.Path) == cleanURLPath(ub.Path) {
		return true
	}

	return titleSimilarity(a.Title, b.Title) > titleJaccardThreshold
}

// selectCanonical orders a cluster by (score + authority bonus, content
// length, recency) descending and splits off the winner.
func selectCanonical(group []domain.Story) (domain.Story, []domain.Story) {
	sorted := make([]domain.Story, len(group))
	copy(sorted, group)

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := rankScore(sorted[i]), rankScore(sorted[j])
		if si != sj {
			return si > sj
		}
		if len(sorted[i].Content) != len(sorted[j].Content) {
			return len(sorted[i].Content) > len(sorted[j].Content)
		}
		return recencyWeight(sorted[i]) > recencyWeight(sorted[j])
	})

	return sorted[0], sorted[1:]
}

func rankScore(s domain.Story) int {
	score := s.ScoreValue()
	for _, d := range authorityDomains {
		if strings.Contains(s.SourceDomain, d) {
			score += authorityBonus
			break
		}
	}
	return score
}

// recencyWeight is a small monotonic function of publish time used only as
// the final tie-break.
func recencyWeight(s domain.Story) float64 {
	if s.PublishedAt.IsZero() {
		return 0
	}
	return float64(s.PublishedAt.Unix()) / 1e6
}

// cleanURLPath strips the parts of a path that differ between syndicated
// copies of the same article: extensions, boilerplate segments, trailing
// slashes and embedded dates.
func cleanURLPath(path string) string {
	path = strings.ToLower(path)
	path = fileExtRe.ReplaceAllString(path, "")
	path = boilerplateRe.ReplaceAllString(path, "/")
	path = strings.TrimRight(path, "/")
	for _, re := range datePathRes {
		path = re.ReplaceAllString(path, "/")
	}
	return path
}

// titleSimilarity is the Jaccard similarity of the normalized title word
// sets.
func titleSimilarity(a, b string) float64 {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
