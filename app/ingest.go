package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newswire/domain"
)

// IngestService runs one ingestion pass: fetch, parse, normalize, dedupe and
// insert for each active source in turn. Sources are processed sequentially
// to bound load on rate-limited feed servers and on the store; callers that
// need to cover a large source list invoke Run repeatedly with batch offsets.
type IngestService struct {
	sources  domain.SourceRepository
	articles domain.ArticleRepository
	fetcher  domain.FeedFetcher
	parse    func(string) ([]domain.RawFeedItem, error)
	logger   *slog.Logger

	now              func() time.Time
	insertRetryDelay time.Duration
}

func NewIngestService(
	sources domain.SourceRepository,
	articles domain.ArticleRepository,
	fetcher domain.FeedFetcher,
	parse func(string) ([]domain.RawFeedItem, error),
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		sources:          sources,
		articles:         articles,
		fetcher:          fetcher,
		parse:            parse,
		logger:           logger,
		now:              time.Now,
		insertRetryDelay: time.Second,
	}
}

// Run ingests a batch of active sources and returns the summary envelope.
// Per-source failures are accumulated in the envelope, never propagated; the
// error return is reserved for setup failures such as an unreachable store.
func (s *IngestService) Run(ctx context.Context, batch domain.BatchOptions) (domain.IngestResult, error) {
	sources, err := s.sources.ActiveSources(ctx, batch.Limit, batch.Offset)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("loading active sources: %w", err)
	}

	s.logger.Info("ingestion started", "sources", len(sources), "limit", batch.Limit, "offset", batch.Offset)
	result := domain.IngestResult{Success: true, SourcesProcessed: len(sources)}

	for _, src := range sources {
		sr := s.processSource(ctx, src)
		result.Processed += sr.Processed
		result.Inserted += sr.Inserted
		result.Errors = append(result.Errors, sr.Errors...)
	}

	result.Timestamp = s.now().UTC()
	if batch.Limit > 0 {
		result.BatchInfo = s.batchInfo(ctx, batch, len(sources))
	}

	s.logger.Info("ingestion completed",
		"processed", result.Processed, "inserted", result.Inserted, "errors", len(result.Errors))
	return result, nil
}

func (s *IngestService) batchInfo(ctx context.Context, batch domain.BatchOptions, fetched int) *domain.BatchInfo {
	total, err := s.sources.CountActiveSources(ctx)
	if err != nil {
		s.logger.Warn("counting active sources failed", "error", err)
		return nil
	}
	next := batch.Offset + fetched
	return &domain.BatchInfo{
		TotalSources:    total,
		BatchSize:       batch.Limit,
		BatchOffset:     batch.Offset,
		NextBatchOffset: next,
		HasMoreBatches:  next < total,
	}
}

// processSource walks one source through fetch, parse and the item loop. A
// failure before the item loop abandons the source with one recorded error;
// failures inside the loop never abort it.
func (s *IngestService) processSource(ctx context.Context, src domain.Source) domain.SourceResult {
	var res domain.SourceResult
	log := s.logger.With("source", src.Name)

	if strings.TrimSpace(src.RSSURL) == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: missing RSS URL", src.Name))
		return res
	}

	body, err := s.fetcher.Fetch(ctx, src.RSSURL)
	if err != nil {
		log.Error("feed fetch failed", "url", src.RSSURL, "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.Name, err))
		return res
	}

	items, err := s.parse(body)
	if err != nil {
		log.Error("feed parse failed", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.Name, err))
		return res
	}
	if len(items) == 0 {
		// an empty feed is a legitimate, if unusual, state
		log.Info("feed contained no ingestible items")
		return res
	}

	for _, item := range items {
		article, err := Normalize(item, src.ID, s.now())
		if err != nil {
			log.Warn("skipping item", "reason", err)
			continue
		}
		res.Processed++

		dup, err := s.isDuplicate(ctx, article)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.Name, err))
			continue
		}
		if dup {
			log.Info("article already exists", "url", article.URL)
			continue
		}

		if err := s.insertWithRetry(ctx, article); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// another run inserted it between the check and the insert
				log.Info("article inserted concurrently", "url", article.URL)
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: inserting article: %v", src.Name, err))
			continue
		}
		res.Inserted++
	}

	s.touchLastFetched(ctx, src)
	log.Info("source completed",
		"processed", res.Processed, "inserted", res.Inserted, "errors", len(res.Errors))
	return res
}

// The pre-insert checks are an optimization to avoid failed inserts; the
// store's unique constraints remain the source of truth under concurrency.
func (s *IngestService) isDuplicate(ctx context.Context, a domain.Article) (bool, error) {
	byHash, err := s.articles.ExistsByHash(ctx, a.ContentHash)
	if err != nil {
		return false, fmt.Errorf("checking content hash: %w", err)
	}
	byURL, err := s.articles.ExistsByURL(ctx, a.URL)
	if err != nil {
		return false, fmt.Errorf("checking URL: %w", err)
	}
	return byHash || byURL, nil
}

// A dropped connection gets exactly one more try after a short pause.
func (s *IngestService) insertWithRetry(ctx context.Context, a domain.Article) error {
	err := s.articles.InsertArticle(ctx, a)
	if err == nil || !errors.Is(err, domain.ErrTransient) {
		return err
	}
	s.logger.Warn("transient store error, retrying insert", "url", a.URL, "error", err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.insertRetryDelay):
	}
	return s.articles.InsertArticle(ctx, a)
}

// Bookkeeping only: a failed timestamp update never fails the source.
func (s *IngestService) touchLastFetched(ctx context.Context, src domain.Source) {
	if err := s.sources.TouchLastFetched(ctx, src.ID, s.now()); err != nil {
		s.logger.Error("updating last_fetched_at failed", "source", src.Name, "error", err)
	}
}
