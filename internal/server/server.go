// Package server serves the upload form and the generated report over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Lllllllleong/titlereport/internal/models"
	"github.com/Lllllllleong/titlereport/internal/services"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Runner runs the report pipeline.
type Runner interface {
	Run(ctx context.Context, upload models.Upload, obs services.Observer) (*services.Result, error)
	WriteDocument(ctx context.Context, res *services.Result, obs services.Observer) (models.OutputDocument, error)
}

// Server holds the single session: the most recent processed upload. Runs are
// serialised by mu, which also guards the session.
type Server struct {
	runner         Runner
	maxUploadBytes int64

	mu      sync.Mutex
	session *services.Result
}

// New creates a Server.
func New(runner Runner, maxUploadBytes int64) *Server {
	return &Server{runner: runner, maxUploadBytes: maxUploadBytes}
}

type pageData struct {
	Result *services.Result
	Error  string
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/report", s.handleReport)
	r.Get("/download", s.handleDownload)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := pageData{Result: s.session}
	s.mu.Unlock()
	render(w, http.StatusOK, data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		render(w, http.StatusRequestEntityTooLarge, pageData{Error: fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes)})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render(w, http.StatusRequestEntityTooLarge, pageData{Error: fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes)})
			return
		}
		render(w, http.StatusBadRequest, pageData{Error: "invalid upload: " + err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render(w, http.StatusBadRequest, pageData{Error: "no file uploaded"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		render(w, http.StatusBadRequest, pageData{Error: "failed to read upload: " + err.Error()})
		return
	}
	upload := models.Upload{Name: filepath.Base(header.Filename), Content: content}

	s.mu.Lock()
	defer s.mu.Unlock()

	logCtx := slog.With("file", upload.Name, "requestId", chimiddleware.GetReqID(r.Context()))
	logCtx.Info("Processing upload.")

	res, err := s.runner.Run(r.Context(), upload, nil)
	if err != nil {
		logCtx.Error("Report run aborted.", "error", err)
		data := pageData{Error: err.Error()}
		var stageErr *services.StageError
		if res != nil && errors.As(err, &stageErr) && stageErr.Stage == services.StageConvert {
			// The report text is complete; /download retries the conversion.
			s.session = res
			data.Result = res
		}
		render(w, http.StatusInternalServerError, data)
		return
	}

	s.session = res
	render(w, http.StatusOK, pageData{Result: res})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		http.Error(w, "no report has been generated", http.StatusNotFound)
		return
	}

	doc, err := s.runner.WriteDocument(r.Context(), s.session, nil)
	if err != nil {
		slog.Error("Failed to write report document.", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	f, err := os.Open(doc.Path)
	if err != nil {
		http.Error(w, "report document is no longer available", http.StatusGone)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", services.DocxMIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	http.ServeContent(w, r, doc.Name, info.ModTime(), f)
}

func render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("Failed to render page.", "error", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("HTTP request.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", chimiddleware.GetReqID(r.Context()),
		)
	})
}
