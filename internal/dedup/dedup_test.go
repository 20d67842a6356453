package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

func story(id, rawURL, title, content string, score int) domain.Story {
	return domain.Story{
		ID:           id,
		CanonicalURL: rawURL,
		Title:        title,
		Content:      content,
		PublishedAt:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		SourceDomain: "example.com",
		Score:        &score,
	}
}

const sharedContent = "OpenAI announced a new flagship model today with major improvements " +
	"to multimodal reasoning, longer context windows and significantly lower pricing " +
	"for developers building marketing automation workflows."

func TestCluster_SameURLHigherScoreWins(t *testing.T) {
	d := NewDeduper()

	a := story("a", "https://example.com/news/launch", "Model launch", sharedContent, 70)
	b := story("b", "https://example.com/news/launch", "Model launch", sharedContent, 90)

	out := d.Cluster([]domain.Story{a, b})
	require.Len(t, out, 2)

	byID := indexByID(out)
	assert.True(t, byID["b"].IsCanonical)
	assert.False(t, byID["a"].IsCanonical)
	assert.Equal(t, []string{"a"}, byID["b"].SimilarStories)
	assert.Equal(t, []string{"b"}, byID["a"].SimilarStories)
}

func TestCluster_ScoreTieLongerContentWins(t *testing.T) {
	d := NewDeduper()

	// The suffix is stop words and punctuation only, so both fingerprints
	// are identical while b's content is strictly longer.
	a := story("a", "https://example.com/news/launch", "Model launch", sharedContent, 80)
	b := story("b", "https://example.com/news/launch", "Model launch", sharedContent+" and to of in, on at...", 80)

	out := d.Cluster([]domain.Story{a, b})
	byID := indexByID(out)

	assert.False(t, byID["a"].IsCanonical)
	assert.True(t, byID["b"].IsCanonical)
}

func TestCluster_UnrelatedStoriesStaySingletons(t *testing.T) {
	d := NewDeduper()

	batch := []domain.Story{
		story("a", "https://alpha.com/news/quantum", "Quantum breakthrough in error correction", "Researchers demonstrated logical qubits with record fidelity across superconducting hardware platforms yesterday.", 50),
		story("b", "https://beta.com/blog/gardens", "Urban gardens reshape city planning", "Municipal planners are converting disused parking structures into community vegetable gardens across Europe.", 50),
		story("c", "https://gamma.com/article/whales", "Humpback whale migration patterns shift", "Marine biologists tracked unusual feeding behavior near Arctic shelves as ocean temperatures climbed.", 50),
		story("d", "https://delta.com/post/chess", "Chess engine defeats grandmaster lineup", "A novel neural evaluation function crushed a field of titled players in blitz exhibition matches.", 50),
		story("e", "https://epsilon.com/story/volcano", "Volcanic activity increases in Iceland", "Seismologists recorded thousands of small tremors signalling fresh magma movement under the peninsula.", 50),
	}

	out := d.Cluster(batch)
	require.Len(t, out, 5)
	for _, s := range out {
		assert.True(t, s.IsCanonical, "story %s should be canonical", s.ID)
		assert.Empty(t, s.SimilarStories, "story %s should have no cross-references", s.ID)
	}
}

func TestCluster_CompletenessAndCrossReferences(t *testing.T) {
	d := NewDeduper()

	batch := []domain.Story{
		story("a", "https://example.com/news/launch", "Model launch", sharedContent, 70),
		story("b", "https://example.com/news/launch", "Model launch", sharedContent, 90),
		story("c", "https://example.com/news/launch", "Model launch", sharedContent, 80),
		story("d", "https://other.com/news/unrelated", "Completely different topic entirely", "Nothing in common with the model launch, this is about municipal water infrastructure repairs downtown.", 60),
	}

	out := d.Cluster(batch)
	require.Len(t, out, len(batch))

	byID := indexByID(out)
	require.Len(t, byID, len(batch), "no story lost or duplicated")

	for _, s := range out {
		if s.IsCanonical {
			for _, dupID := range s.SimilarStories {
				dup := byID[dupID]
				assert.False(t, dup.IsCanonical)
				assert.Equal(t, []string{s.ID}, dup.SimilarStories,
					"duplicate %s must point at its canonical %s", dupID, s.ID)
			}
		} else {
			require.Len(t, s.SimilarStories, 1)
			canonical := byID[s.SimilarStories[0]]
			assert.True(t, canonical.IsCanonical)
			assert.Contains(t, canonical.SimilarStories, s.ID)
		}
	}

	// Exactly one canonical in the duplicate cluster, and it is the top score.
	assert.True(t, byID["b"].IsCanonical)
	assert.ElementsMatch(t, []string{"a", "c"}, byID["b"].SimilarStories)
}

func TestCluster_ThresholdMonotonicity(t *testing.T) {
	batch := []domain.Story{
		story("a", "https://a.com/news/one", "Model launch announcement", sharedContent, 70),
		story("b", "https://b.com/news/two", "Model launch announcement", sharedContent, 80),
		story("c", "https://c.com/news/three", "Model launch announcement", sharedContent+" extra words here", 60),
		story("d", "https://d.com/news/four", "Entirely different subject", "City council approves new tram line connecting the harbor district with the airport by 2030.", 50),
	}

	canonicals := func(threshold int) int {
		out := NewDeduper(WithThreshold(threshold)).Cluster(batch)
		n := 0
		for _, s := range out {
			if s.IsCanonical {
				n++
			}
		}
		return n
	}

	prev := canonicals(4)
	for _, threshold := range []int{3, 2, 1, 0} {
		cur := canonicals(threshold)
		assert.GreaterOrEqual(t, cur, prev,
			"lowering threshold to %d must not merge more stories", threshold)
		prev = cur
	}
}

func TestCluster_CrossHostRequiresNearIdenticalFingerprint(t *testing.T) {
	d := NewDeduper()

	// Identical content on two hosts: Hamming distance 0, clustered.
	a := story("a", "https://alpha.com/news/launch", "Model launch", sharedContent, 70)
	b := story("b", "https://beta.com/posts/big-launch", "The big model launch", sharedContent, 60)

	out := d.Cluster([]domain.Story{a, b})
	byID := indexByID(out)
	assert.True(t, byID["a"].IsCanonical)
	assert.False(t, byID["b"].IsCanonical)
}

func TestCluster_FailedFingerprintStaysSingleton(t *testing.T) {
	d := NewDeduper()

	// Nothing survives normalization: no content, stop-word-only title.
	empty := domain.Story{ID: "x", CanonicalURL: "https://example.com/a", Title: "the of and"}
	twin := domain.Story{ID: "y", CanonicalURL: "https://example.com/a", Title: "the of and"}

	out := d.Cluster([]domain.Story{empty, twin})
	require.Len(t, out, 2)
	for _, s := range out {
		assert.True(t, s.IsCanonical)
		assert.Empty(t, s.SimilarStories)
	}
}

func TestCluster_EmptyInput(t *testing.T) {
	d := NewDeduper()
	assert.Empty(t, d.Cluster(nil))
}

func TestCluster_AuthorityBonusBreaksScoreTie(t *testing.T) {
	d := NewDeduper()

	a := story("a", "https://example.com/news/launch", "Model launch", sharedContent, 80)
	b := story("b", "https://example.com/news/launch", "Model launch", sharedContent, 80)
	b.SourceDomain = "openai.com"

	out := d.Cluster([]domain.Story{a, b})
	byID := indexByID(out)
	assert.True(t, byID["b"].IsCanonical)
	assert.False(t, byID["a"].IsCanonical)
}

func TestCleanURLPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/news/2025/06/01/model-launch/", "/model-launch"},
		{"/blog/model-launch.html", "/model-launch"},
		{"/article/model-launch", "/model-launch"},
		{"/model-launch", "/model-launch"},
		{"/2024/big-story", "/big-story"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanURLPath(tt.path))
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, titleSimilarity(
		"OpenAI launches new flagship model",
		"OpenAI launches new flagship model",
	))
	assert.Greater(t, titleSimilarity(
		"OpenAI launches new flagship model today",
		"OpenAI launches new flagship model",
	), 0.8)
	assert.Less(t, titleSimilarity(
		"OpenAI launches new flagship model",
		"City council approves tram line extension",
	), 0.2)
	assert.Zero(t, titleSimilarity("", "anything"))
}

func TestSimhash_TokenOrderAndNoiseInvariant(t *testing.T) {
	h1, ok := simhash(tokenize(sharedContent))
	require.True(t, ok)

	// Same words reshuffled, plus stop words and punctuation: the
	// fingerprint only sees the token multiset, so the distance is zero.
	shuffled := "with major improvements, OpenAI announced a new flagship model today: " +
		"longer context windows and significantly lower pricing to multimodal reasoning " +
		"for developers building marketing automation workflows."
	h2, ok := simhash(tokenize(shuffled))
	require.True(t, ok)
	assert.Equal(t, 0, hammingDistance(h1, h2))

	unrelated := tokenize("Completely unrelated text about deep sea exploration vessels and their sonar arrays mapping trenches.")
	h3, ok := simhash(unrelated)
	require.True(t, ok)
	assert.Greater(t, hammingDistance(h1, h3), DefaultThreshold)
}

func TestSimhash_EmptyInput(t *testing.T) {
	_, ok := simhash(nil)
	assert.False(t, ok)
}

func indexByID(stories []domain.Story) map[string]domain.Story {
	m := make(map[string]domain.Story, len(stories))
	for _, s := range stories {
		m[s.ID] = s
	}
	if len(m) != len(stories) {
		panic(fmt.Sprintf("duplicate ids in cluster output: %d != %d", len(m), len(stories)))
	}
	return m
}
