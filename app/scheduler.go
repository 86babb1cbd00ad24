package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newswire/domain"
)

// Scheduler triggers ingestion passes on a ticker, slicing the active sources
// into bounded sequential batches. Interval and batch size are adjustable at
// runtime through the control server.
type Scheduler struct {
	ingestor domain.Ingestor
	logger   *slog.Logger

	mu             sync.Mutex
	interval       time.Duration
	batchSize      int
	batchPause     time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	tickerStopChan chan struct{}
	started        bool
}

func NewScheduler(ingestor domain.Ingestor, interval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ingestor:   ingestor,
		interval:   interval,
		batchSize:  batchSize,
		batchPause: time.Second,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.tickerStopChan = make(chan struct{})
	go s.loop()
	s.started = true
	return nil
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	stopCh := s.tickerStopChan
	s.started = false
	s.mu.Unlock()

	close(stopCh)
	cancel()
	return nil
}

func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.interval = d
		return
	}
	// signal the loop to restart its ticker with the new interval
	close(s.tickerStopChan)
	s.tickerStopChan = make(chan struct{})
	s.interval = d
}

func (s *Scheduler) SetBatchSize(n int) error {
	if n <= 0 {
		return errors.New("batch size must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSize = n
	return nil
}

func (s *Scheduler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) CurrentBatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSize
}

func (s *Scheduler) loop() {
	for {
		s.mu.Lock()
		interval := s.interval
		stopCh := s.tickerStopChan
		s.mu.Unlock()

		ticker := time.NewTicker(interval)
		select {
		case <-s.ctx.Done():
			ticker.Stop()
			return
		case <-stopCh:
			ticker.Stop()
			continue
		case <-ticker.C:
		}
		ticker.Stop()

		s.runOnce()
	}
}

// runOnce walks the active sources batch by batch until the store reports no
// more, so one tick covers the whole source list while each Run invocation
// stays a bounded unit of work.
func (s *Scheduler) runOnce() {
	offset := 0
	for {
		s.mu.Lock()
		batchSize := s.batchSize
		pause := s.batchPause
		s.mu.Unlock()

		result, err := s.ingestor.Run(s.ctx, domain.BatchOptions{Limit: batchSize, Offset: offset})
		if err != nil {
			s.logger.Error("scheduled ingestion failed", "offset", offset, "error", err)
			return
		}
		if result.BatchInfo == nil || !result.BatchInfo.HasMoreBatches {
			return
		}
		offset = result.BatchInfo.NextBatchOffset

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}
