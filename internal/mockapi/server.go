package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dharsanguruparan/compressdash/internal/config"
	"github.com/dharsanguruparan/compressdash/internal/jobapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
)

// envelope is the {success, message, data} body every JSON route returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// uploadResult mirrors the real service's upload payload.
type uploadResult struct {
	JobIDs []int64 `json:"imageId"`
}

// Server hosts the mock job service routes.
type Server struct {
	cfg       *config.Config
	reg       *Registry
	processor *Processor
	hub       *Hub
	logger    *slog.Logger
	router    chi.Router
	once      sync.Once
}

// New wires the routes. The processor is started by Serve.
func New(cfg *config.Config, reg *Registry, processor *Processor, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		reg:       reg,
		processor: processor,
		hub:       hub,
		logger:    logger,
		router:    chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve starts the workers and the HTTP server and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		s.processor.Start(ctx)
	})
	httpServer := &http.Server{
		Addr:              s.cfg.MockAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", "error", err)
			_ = httpServer.Close()
		}
	}()
	s.logger.Info("mock job service listening", "addr", s.cfg.MockAddress)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.processor.Wait()
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/healthz", s.health)
	s.router.Get("/jobs", s.listJobs)
	s.router.Get("/jobs/status/{status}", s.listJobsByStatus)
	s.router.Get("/jobs/{id}", s.getJob)
	s.router.Post("/jobs/{id}/retry", s.retryJob)
	s.router.Post("/upload", s.upload)
	s.router.Get("/images-compressed/{filename}", s.serveCompressed)
	s.router.Get("/ws", s.hub.ServeHTTP)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "pong",
		Data:    map[string]string{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "success get jobs", Data: s.reg.List()})
}

func (s *Server) listJobsByStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := model.ParseStatus(chi.URLParam(r, "status"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid status. Must be one of: pending, processing, completed, failed")
		return
	}
	jobs := s.reg.ListByStatus(status)
	if len(jobs) == 0 {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "success get jobs by status", Data: jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.reg.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "success get job", Data: job})
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.reg.Retry(id)
	switch {
	case errors.Is(err, ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrNotRetryable):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.Broadcast(job)
	s.processor.Submit(id)
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "Job queued for retry"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.logger.Warn("invalid multipart upload", "error", err)
		s.respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no images uploaded")
		return
	}
	result := uploadResult{JobIDs: []int64{}}
	for _, fh := range files {
		if !isImageName(fh.Filename) {
			s.logger.Info("skipping non-image upload", "filename", fh.Filename)
			continue
		}
		data, err := readPart(fh)
		if err != nil {
			s.logger.Warn("read upload part failed", "filename", fh.Filename, "error", err)
			continue
		}
		job := s.reg.Create(fh.Filename, data)
		s.hub.Broadcast(job)
		s.processor.Submit(job.ID)
		result.JobIDs = append(result.JobIDs, job.ID)
	}
	if len(result.JobIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "no valid images uploaded")
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "success uploaded images", Data: result})
}

func (s *Server) serveCompressed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !jobapi.ValidArtifactName(name) {
		s.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	data, ok := s.reg.Artifact(name)
	if !ok {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid job ID")
		return 0, false
	}
	return id, true
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, envelope{Success: false, Message: msg})
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode json", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"client_request_id", r.Header.Get(jobapi.RequestIDHeader),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
