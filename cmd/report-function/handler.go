package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"

	"github.com/Lllllllleong/titlereport/internal/gcp"
	"github.com/Lllllllleong/titlereport/internal/models"
	"github.com/Lllllllleong/titlereport/internal/services"
)

type reportRunner interface {
	Run(ctx context.Context, upload models.Upload, obs services.Observer) (*services.Result, error)
}

// reportHandler accepts either a multipart "file" upload or a JSON body
// naming a gs:// object, and responds with the report as JSON or, when
// format=docx, with the converted document. Each request writes into its own
// temporary directory, removed once the response is sent.
type reportHandler struct {
	newRunner      func(outputDir string) reportRunner
	readObject     func(ctx context.Context, uri string) (models.Upload, error)
	maxUploadBytes int64
	tempDir        string
}

func (h *reportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	upload, status, err := h.readRequest(w, r)
	if err != nil {
		slog.Error("Could not read request.", "error", err)
		writeJSON(w, status, models.ErrorResponse{Status: "ERROR", Error: err.Error()})
		return
	}

	outDir, err := os.MkdirTemp(h.tempDir, "report-*")
	if err != nil {
		slog.Error("Failed to create output directory.", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Status: "ERROR", Error: "failed to create output directory"})
		return
	}
	defer os.RemoveAll(outDir)

	res, err := h.newRunner(outDir).Run(r.Context(), upload, nil)
	if err != nil {
		// The stage error is already logged and recorded inside the pipeline.
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Status: "ERROR", Error: err.Error()})
		return
	}

	if r.URL.Query().Get("format") == "docx" {
		serveDocument(w, res.Document)
		return
	}
	writeJSON(w, http.StatusOK, models.ReportResponse{
		Status:       models.StatusComplete,
		RunID:        res.RunID,
		PageCount:    len(res.Pages),
		ChunkCount:   len(res.Chunks),
		FailedPages:  res.FailedPages(),
		FailedChunks: res.FailedChunks(),
		Report:       res.Report,
		DocumentName: res.Document.Name,
	})
}

func (h *reportHandler) readRequest(w http.ResponseWriter, r *http.Request) (models.Upload, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return models.Upload{}, statusFor(err), fmt.Errorf("could not parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return models.Upload{}, http.StatusBadRequest, fmt.Errorf("missing form field \"file\": %w", err)
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return models.Upload{}, statusFor(err), fmt.Errorf("could not read upload: %w", err)
		}
		return models.Upload{Name: header.Filename, Content: content}, http.StatusOK, nil
	}

	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.Upload{}, statusFor(err), fmt.Errorf("could not parse JSON: %w", err)
	}
	if req.GCSUri == "" {
		return models.Upload{}, http.StatusBadRequest, errors.New("gcsUri is required")
	}
	if _, _, err := gcp.ParseGCSURI(req.GCSUri); err != nil {
		return models.Upload{}, http.StatusBadRequest, err
	}
	upload, err := h.readObject(r.Context(), req.GCSUri)
	if err != nil {
		return models.Upload{}, http.StatusBadGateway, err
	}
	return upload, http.StatusOK, nil
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func serveDocument(w http.ResponseWriter, doc models.OutputDocument) {
	f, err := os.Open(doc.Path)
	if err != nil {
		slog.Error("Failed to open output document.", "path", doc.Path, "error", err)
		http.Error(w, "Internal Server Error: document unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", services.DocxMIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("Failed to write document response.", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
