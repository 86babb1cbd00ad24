package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"newswire/domain"
)

var ErrAlreadyRunning = errors.New("already running")

// TryListen tries to bind the control address. If it's already in use, we assume an instance is running.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	return ln, nil
}

type Server struct {
	sched    domain.Scheduler
	ingestor domain.Ingestor
	token    string
}

func NewServer(sched domain.Scheduler, ingestor domain.Ingestor, token string) *Server {
	return &Server{sched: sched, ingestor: ingestor, token: token}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/ingest":
		s.handleIngest(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/set-interval":
		s.handleSetInterval(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/set-batch-size":
		s.handleSetBatchSize(w, r)
		return
	default:
		http.NotFound(w, r)
	}
}

// handleIngest triggers one ingestion pass. External orchestrators call it
// with a bearer token and optional batch slicing; an empty body runs every
// active source.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		BatchSize   int `json:"batch_size"`
		BatchOffset int `json:"batch_offset"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := s.ingestor.Run(r.Context(), domain.BatchOptions{Limit: req.BatchSize, Offset: req.BatchOffset})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid duration: %v", err), http.StatusBadRequest)
		return
	}
	old := s.sched.CurrentInterval()
	s.sched.SetInterval(d)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "old": old.String(), "new": d.String()})
}

func (s *Server) handleSetBatchSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	old := s.sched.CurrentBatchSize()
	if err := s.sched.SetBatchSize(req.BatchSize); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "old": old, "new": req.BatchSize})
}
