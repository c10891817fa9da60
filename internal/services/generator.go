package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Lllllllleong/titlereport/internal/ibm"
	"github.com/Lllllllleong/titlereport/internal/models"
)

// ModelClient is a hosted text generation model.
type ModelClient interface {
	Name() string
	Generate(ctx context.Context, token, input string) (string, error)
}

// ReportGenerator turns one chunk of translated pages into report text.
type ReportGenerator struct {
	model  ModelClient
	prompt string
}

// NewReportGenerator creates a generator that prefixes every chunk with prompt.
func NewReportGenerator(model ModelClient, prompt string) *ReportGenerator {
	return &ReportGenerator{model: model, prompt: prompt}
}

// Provider names the model backend.
func (g *ReportGenerator) Provider() string {
	return g.model.Name()
}

// Generate never fails: an unusable response becomes a failed fragment that
// keeps the raw response body.
func (g *ReportGenerator) Generate(ctx context.Context, chunk models.Chunk, token string) models.Fragment {
	fragment := models.Fragment{Index: chunk.Index, Provider: g.model.Name()}
	logCtx := slog.With("chunk", chunk.Index, "pageCount", len(chunk.Pages), "provider", fragment.Provider)

	text, err := g.model.Generate(ctx, token, g.prompt+chunk.Text())
	if err != nil {
		fragment.Err = err
		var respErr *ibm.ResponseError
		if errors.As(err, &respErr) {
			fragment.Raw = respErr.Raw
		}
		logCtx.Warn("Report generation failed for chunk.", "error", err)
		return fragment
	}

	fragment.Text = text
	logCtx.Info("Generated report fragment.", "chars", len(text))
	return fragment
}
