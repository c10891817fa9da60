package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// ErrEmptyText marks a page that had no text to translate.
var ErrEmptyText = errors.New("page has no text")

// TextTranslator translates a single piece of text.
type TextTranslator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslatorConfig holds the language pair and fan-out limit.
type TranslatorConfig struct {
	SourceLanguage string
	TargetLanguage string
	Concurrency    int
}

// PageTranslator translates every page of a document independently.
type PageTranslator struct {
	backend TextTranslator
	config  TranslatorConfig
}

// NewPageTranslator creates a PageTranslator. A concurrency below one is
// treated as one.
func NewPageTranslator(backend TextTranslator, config TranslatorConfig) *PageTranslator {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &PageTranslator{backend: backend, config: config}
}

// Translate never fails: a page whose translation fails carries the error in
// its result. The output has the input's labels in the input's order. done,
// if non-nil, is called once per finished page.
func (t *PageTranslator) Translate(ctx context.Context, pages models.Pages, done func(models.TranslatedPage)) []models.TranslatedPage {
	results := make([]models.TranslatedPage, len(pages))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.config.Concurrency)

	for i, page := range pages {
		eg.Go(func() error {
			results[i] = t.translatePage(gctx, page)
			if done != nil {
				done(results[i])
			}
			return nil
		})
	}
	_ = eg.Wait() // workers never return an error

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	slog.Info("Translation finished.", "pageCount", len(pages), "failedPages", failed)
	return results
}

func (t *PageTranslator) translatePage(ctx context.Context, page models.Page) models.TranslatedPage {
	result := models.TranslatedPage{Label: page.Label, Source: page.Text}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	if strings.TrimSpace(page.Text) == "" {
		result.Err = ErrEmptyText
		return result
	}

	text, err := t.backend.Translate(ctx, page.Text, t.config.SourceLanguage, t.config.TargetLanguage)
	if err != nil {
		slog.Warn("Page translation failed.", "page", page.Label, "error", err)
		result.Err = err
		return result
	}
	result.Text = text
	return result
}
