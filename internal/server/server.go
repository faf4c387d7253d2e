// Package server exposes scrapes as background jobs over HTTP and streams
// their progress to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mapsleads/internal/export"
	"mapsleads/internal/scraper"
	"mapsleads/internal/target"
)

// Job states.
const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusDone     = "done"
	StatusEmpty    = "empty"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// ErrClosed is returned by Submit once Shutdown has begun.
var ErrClosed = errors.New("server: shutting down")

// Runner runs one scrape.
type Runner interface {
	Scrape(ctx context.Context, req scraper.Request) (scraper.ResultSet, error)
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Enrich bool   `json:"enrich"`
}

// Job is a scrape submitted through the API.
type Job struct {
	ID       string            `json:"id"`
	Query    string            `json:"query"`
	Target   string            `json:"target"`
	Limit    int               `json:"limit"`
	Enrich   bool              `json:"enrich"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Count    int               `json:"count"`
	Started  time.Time         `json:"started"`
	Finished *time.Time        `json:"finished,omitempty"`
	Records  scraper.ResultSet `json:"records,omitempty"`

	cancel context.CancelFunc
}

// Config configures the Server.
type Config struct {
	// MaxJobs bounds concurrently running scrapes, each holding a browser.
	// Default: 2.
	MaxJobs int
	// KeepRecent finished jobs are retained. Default: 50.
	KeepRecent int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxJobs <= 0 {
		c.MaxJobs = 2
	}
	if c.KeepRecent <= 0 {
		c.KeepRecent = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server holds the job table and the progress hub.
type Server struct {
	runner Runner
	cfg    Config
	log    *slog.Logger
	hub    *Hub
	sem    chan struct{}

	mu   sync.Mutex
	jobs map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server.
func New(runner Runner, cfg Config) *Server {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner: runner,
		cfg:    cfg,
		log:    cfg.Logger,
		hub:    newHub(cfg.Logger),
		sem:    make(chan struct{}, cfg.MaxJobs),
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub returns the progress hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleCancelJob).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{id}/download", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.hub.serveWS)
	api.Use(cors)
	return r
}

// Shutdown cancels running jobs and waits for them to release their
// sessions, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	defer s.hub.closeAll()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates req and starts a job for it. After Shutdown it
// returns ErrClosed.
func (s *Server) Submit(req ScrapeRequest) (*Job, error) {
	searchURL, err := target.Normalize(req.Query)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{
		ID:      uuid.NewString(),
		Query:   req.Query,
		Target:  searchURL,
		Limit:   scraper.ClampLimit(req.Limit),
		Enrich:  req.Enrich,
		Status:  StatusQueued,
		Started: time.Now(),
		cancel:  cancel,
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s.jobs[job.ID] = job
	s.pruneLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, job)
	return job, nil
}

func (s *Server) run(ctx context.Context, job *Job) {
	defer s.wg.Done()
	defer job.cancel()
	log := s.log.With("job", job.ID)

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.finish(job, nil, ctx.Err())
		return
	}

	s.setStatus(job, StatusRunning)
	s.hub.Broadcast(ProgressMessage{Type: "log", JobID: job.ID, Message: "scrape started: " + job.Target})
	log.Info("server: job started", "target", job.Target, "limit", job.Limit, "enrich", job.Enrich)

	rs, err := s.runner.Scrape(ctx, scraper.Request{
		Query:  job.Target,
		Limit:  job.Limit,
		Enrich: job.Enrich,
		Progress: func(p scraper.Progress) {
			s.hub.Broadcast(progressMessage(job.ID, p))
		},
	})
	s.finish(job, rs, err)
	log.Info("server: job finished", "status", s.snapshot(job).Status, "records", len(rs))
}

func (s *Server) finish(job *Job, rs scraper.ResultSet, err error) {
	now := time.Now()
	s.mu.Lock()
	job.Finished = &now
	job.Records = rs
	job.Count = len(rs)
	switch {
	case errors.Is(err, context.Canceled):
		job.Status = StatusCanceled
		job.Error = err.Error()
	case err != nil:
		job.Status = StatusFailed
		job.Error = err.Error()
	case len(rs) == 0:
		job.Status = StatusEmpty
	default:
		job.Status = StatusDone
	}
	msg := ProgressMessage{JobID: job.ID, Current: job.Count, Total: job.Limit, Stage: job.Status}
	s.mu.Unlock()

	switch {
	case err != nil:
		msg.Type = "error"
		msg.Message = err.Error()
	case len(rs) == 0:
		msg.Type = "complete"
		msg.Message = "no data found"
	default:
		msg.Type = "complete"
		msg.Message = fmt.Sprintf("done: %d rows", len(rs))
		msg.Percentage = 100
	}
	s.hub.Broadcast(msg)
}

func progressMessage(jobID string, p scraper.Progress) ProgressMessage {
	msg := ProgressMessage{
		Type:    "progress",
		JobID:   jobID,
		Message: p.Message,
		Current: p.Current,
		Total:   p.Total,
		Stage:   p.Stage,
	}
	if p.Total > 0 {
		msg.Percentage = min(100, p.Current*100/p.Total)
	}
	return msg
}

func (s *Server) setStatus(job *Job, status string) {
	s.mu.Lock()
	job.Status = status
	s.mu.Unlock()
}

// snapshot copies job under the lock.
func (s *Server) snapshot(job *Job) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := *job
	j.cancel = nil
	return j
}

func (s *Server) lookup(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// pruneLocked drops the oldest finished jobs beyond KeepRecent.
func (s *Server) pruneLocked() {
	var finished []*Job
	for _, j := range s.jobs {
		if j.Finished != nil {
			finished = append(finished, j)
		}
	}
	if len(finished) <= s.cfg.KeepRecent {
		return
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].Finished.Before(*finished[b].Finished) })
	for _, j := range finished[:len(finished)-s.cfg.KeepRecent] {
		delete(s.jobs, j.ID)
	}
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	job, err := s.Submit(req)
	if errors.Is(err, ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.log.Info("server: scrape rejected", "query", req.Query, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID, "target": job.Target})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		c.cancel = nil
		c.Records = nil
		list = append(list, c)
	}
	s.mu.Unlock()
	sort.Slice(list, func(a, b int) bool { return list[a].Started.After(list[b].Started) })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job.cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.snapshot(job)
	if snap.Finished == nil {
		writeError(w, http.StatusConflict, "job still running")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=maps_scrape_%s.%s", id, format))
	w.Header().Set("Content-Type", format.ContentType())
	if err := export.Write(w, format, snap.Records); err != nil {
		s.log.Warn("server: download", "job", id, "error", err)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
