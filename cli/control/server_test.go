package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/domain"
)

type stubScheduler struct {
	interval  time.Duration
	batchSize int
}

func (s *stubScheduler) Start(ctx context.Context) error { return nil }
func (s *stubScheduler) Stop() error                     { return nil }
func (s *stubScheduler) SetInterval(d time.Duration)     { s.interval = d }
func (s *stubScheduler) SetBatchSize(n int) error {
	if n <= 0 {
		return assert.AnError
	}
	s.batchSize = n
	return nil
}
func (s *stubScheduler) CurrentInterval() time.Duration { return s.interval }
func (s *stubScheduler) CurrentBatchSize() int          { return s.batchSize }

type stubIngestor struct {
	lastBatch domain.BatchOptions
	result    domain.IngestResult
	err       error
}

func (s *stubIngestor) Run(ctx context.Context, batch domain.BatchOptions) (domain.IngestResult, error) {
	s.lastBatch = batch
	return s.result, s.err
}

func TestIngestRequiresToken(t *testing.T) {
	srv := NewServer(&stubScheduler{}, &stubIngestor{}, "secret")

	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic secret",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestIngestReturnsEnvelope(t *testing.T) {
	ing := &stubIngestor{result: domain.IngestResult{
		Success:          true,
		Processed:        7,
		Inserted:         3,
		SourcesProcessed: 2,
		Timestamp:        time.Now().UTC(),
	}}
	srv := NewServer(&stubScheduler{}, ing, "secret")

	req := httptest.NewRequest(http.MethodPost, "/ingest",
		strings.NewReader(`{"batch_size": 5, "batch_offset": 10}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BatchOptions{Limit: 5, Offset: 10}, ing.lastBatch)

	var got domain.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, 7, got.Processed)
	assert.Equal(t, 3, got.Inserted)
}

func TestIngestNoTokenConfigured(t *testing.T) {
	// with no configured token the endpoint is open
	srv := NewServer(&stubScheduler{}, &stubIngestor{result: domain.IngestResult{Success: true}}, "")

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestFailureEnvelope(t *testing.T) {
	ing := &stubIngestor{err: assert.AnError}
	srv := NewServer(&stubScheduler{}, ing, "")

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)
}

func TestSetIntervalEndpoint(t *testing.T) {
	sched := &stubScheduler{interval: time.Hour}
	srv := NewServer(sched, &stubIngestor{}, "")

	req := httptest.NewRequest(http.MethodPost, "/set-interval",
		strings.NewReader(`{"duration": "15m"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15*time.Minute, sched.interval)

	var body struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1h0m0s", body.Old)
	assert.Equal(t, "15m0s", body.New)
}

func TestSetIntervalRejectsGarbage(t *testing.T) {
	srv := NewServer(&stubScheduler{}, &stubIngestor{}, "")
	req := httptest.NewRequest(http.MethodPost, "/set-interval",
		strings.NewReader(`{"duration": "soon"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetBatchSizeEndpoint(t *testing.T) {
	sched := &stubScheduler{batchSize: 10}
	srv := NewServer(sched, &stubIngestor{}, "")

	req := httptest.NewRequest(http.MethodPost, "/set-batch-size",
		strings.NewReader(`{"batch_size": 25}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, sched.batchSize)

	req = httptest.NewRequest(http.MethodPost, "/set-batch-size",
		strings.NewReader(`{"batch_size": 0}`))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(&stubScheduler{}, &stubIngestor{}, "")
	req := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientTriggerIngest(t *testing.T) {
	ing := &stubIngestor{result: domain.IngestResult{Success: true, Inserted: 4}}
	srv := httptest.NewServer(NewServer(&stubScheduler{}, ing, "secret"))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), "secret")
	result, err := c.TriggerIngest(3, 6)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Inserted)
	assert.Equal(t, domain.BatchOptions{Limit: 3, Offset: 6}, ing.lastBatch)
}
