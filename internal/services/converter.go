package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// DocxMIMEType is the content type of the generated report.
const DocxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DefaultOutputSuffix is appended to the upload's base name.
const DefaultOutputSuffix = " AI Summary"

// Converter renders Markdown into a .docx file at path.
type Converter interface {
	Convert(ctx context.Context, markdown, path string) error
}

// DocumentWriter places the converted report next to the working directory.
type DocumentWriter struct {
	converter Converter
	dir       string
	suffix    string
}

// NewDocumentWriter creates a DocumentWriter. An empty dir is the working
// directory and an empty suffix is DefaultOutputSuffix.
func NewDocumentWriter(converter Converter, dir, suffix string) *DocumentWriter {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	return &DocumentWriter{converter: converter, dir: dir, suffix: suffix}
}

// InDir returns a writer with the same converter and suffix that writes into dir.
func (w *DocumentWriter) InDir(dir string) *DocumentWriter {
	return &DocumentWriter{converter: w.converter, dir: dir, suffix: w.suffix}
}

// OutputName derives "<base> AI Summary.docx" from the upload name. Leading
// dots are part of the base, so ".txt" keeps its whole name.
func OutputName(uploadName, suffix string) string {
	base := filepath.Base(uploadName)
	ext := filepath.Ext(strings.TrimLeft(base, "."))
	base = strings.TrimSuffix(base, ext)
	return base + suffix + ".docx"
}

// Write converts markdown and returns the written document. A partial file
// left by a failed conversion is not removed.
func (w *DocumentWriter) Write(ctx context.Context, markdown, uploadName string) (models.OutputDocument, error) {
	name := OutputName(uploadName, w.suffix)
	path := name
	if w.dir != "" {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return models.OutputDocument{}, fmt.Errorf("failed to create output dir %s: %w", w.dir, err)
		}
		path = filepath.Join(w.dir, name)
	}

	if err := w.converter.Convert(ctx, markdown, path); err != nil {
		return models.OutputDocument{Name: name, Path: path}, fmt.Errorf("failed to convert report to docx: %w", err)
	}

	slog.Info("Report document written.", "path", path)
	return models.OutputDocument{Name: name, Path: path, Generated: true}, nil
}
