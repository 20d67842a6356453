package scoring

import (
	"context"
	"errors"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

// ErrRateLimited marks a rate-limit-class scoring failure. The pipeline
// reacts to it differently from ordinary failures: it stops scoring the
// rest of the batch instead of retrying record by record.
var ErrRateLimited = errors.New("scoring rate limited")

// Scorer annotates one story with its marketing-relevance score, sub-scores,
// tags, action hint and relevance bullets.
type Scorer interface {
	Score(ctx context.Context, story domain.Story) (domain.Story, error)
}
