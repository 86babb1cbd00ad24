package domain

import "time"

// Source identifies one external feed. The ingestion pipeline reads active
// sources and writes back last_fetched_at; everything else on this record is
// owned by the admin tooling.
type Source struct {
	ID            string
	CreatedAt     time.Time
	Name          string
	RSSURL        string
	IsActive      bool
	LastFetchedAt *time.Time
}

// RawFeedItem is one extracted feed entry before validation. It only lives
// between the parser and the normalizer and is never persisted.
type RawFeedItem struct {
	Title          string
	Description    string
	Link           string
	PubDate        string
	ContentEncoded string
	Author         string
}

// Article is the persisted entity produced by the normalizer.
type Article struct {
	ID          string
	CreatedAt   time.Time
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
	SourceID    string
	Content     string
	ContentHash string
	Author      string
}

// SourceResult reports one source run.
type SourceResult struct {
	Processed int
	Inserted  int
	Errors    []string
}

// BatchOptions slices the active-source list when ingestion is invoked in
// batch mode. A zero Limit means every active source.
type BatchOptions struct {
	Limit  int
	Offset int
}

// BatchInfo tells an external orchestrator whether more batches remain.
type BatchInfo struct {
	TotalSources    int  `json:"total_sources"`
	BatchSize       int  `json:"batch_size"`
	BatchOffset     int  `json:"batch_offset"`
	NextBatchOffset int  `json:"next_batch_offset"`
	HasMoreBatches  bool `json:"has_more_batches"`
}

// IngestResult is the summary envelope returned to the caller. Success stays
// true as long as the run itself completed, even when individual sources
// recorded errors.
type IngestResult struct {
	Success          bool       `json:"success"`
	Processed        int        `json:"processed"`
	Inserted         int        `json:"inserted"`
	SourcesProcessed int        `json:"sources_processed"`
	Errors           []string   `json:"errors,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	BatchInfo        *BatchInfo `json:"batch_info,omitempty"`
}
