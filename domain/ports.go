package domain

import (
	"context"
	"time"
)

// SourceRepository is the persistence port for feed sources.
type SourceRepository interface {
	Ensure(ctx context.Context) error
	AddSource(ctx context.Context, name, rssURL string) error
	DeleteSource(ctx context.Context, name string) (int64, error)
	ListSources(ctx context.Context, limit int) ([]Source, error)
	GetSourceByName(ctx context.Context, name string) (Source, error)
	ActiveSources(ctx context.Context, limit, offset int) ([]Source, error)
	CountActiveSources(ctx context.Context) (int, error)
	TouchLastFetched(ctx context.Context, sourceID string, at time.Time) error
}

// ArticleRepository is the persistence port for ingested articles.
type ArticleRepository interface {
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, a Article) error
	ListArticlesBySource(ctx context.Context, sourceID string, limit int) ([]Article, error)
}

// FeedFetcher retrieves the raw body of a feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (string, error)
}

// Ingestor runs one ingestion pass over a batch of the active sources.
type Ingestor interface {
	Run(ctx context.Context, batch BatchOptions) (IngestResult, error)
}

// Scheduler exposes runtime controls for the background ingestion loop.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error

	SetInterval(d time.Duration)
	SetBatchSize(n int) error
	CurrentInterval() time.Duration
	CurrentBatchSize() int
}
