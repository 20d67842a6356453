package fetch

import (
	"context"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

// Fetcher produces raw, unscored stories for a set of source domains.
type Fetcher interface {
	Fetch(ctx context.Context, sourceDomains []string) ([]domain.Story, error)
}
