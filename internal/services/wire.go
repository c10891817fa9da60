package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Lllllllleong/titlereport/internal/config"
	"github.com/Lllllllleong/titlereport/internal/docx"
	"github.com/Lllllllleong/titlereport/internal/gcp"
	"github.com/Lllllllleong/titlereport/internal/ibm"
	"github.com/Lllllllleong/titlereport/internal/pandoc"
	"github.com/Lllllllleong/titlereport/internal/webtranslate"
)

// NewPipelineFromConfig builds the configured backends and the pipeline over
// them. The returned close function releases any cloud clients.
func NewPipelineFromConfig(ctx context.Context, cfg *config.Config) (*Pipeline, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Pipeline, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	var backend TextTranslator
	switch cfg.Translation.Provider {
	case "cloud":
		cloud, err := gcp.NewCloudTranslator(ctx, cfg.Translation.Endpoint)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cloud.Close)
		backend = cloud
	default:
		backend = webtranslate.New(cfg.Translation.Endpoint, &http.Client{Timeout: cfg.Translation.Timeout})
	}

	var (
		model  ModelClient
		tokens TokenSource
	)
	switch cfg.Generation.Provider {
	case "vertex":
		vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Generation.VertexRegion, cfg.Generation.VertexModel, cfg.Generation.MaxNewTokens)
		if err != nil {
			return fail(fmt.Errorf("failed to create vertex client: %w", err))
		}
		closers = append(closers, vertex.Close)
		model = vertex
	default:
		httpClient := &http.Client{Timeout: cfg.Generation.Timeout}
		model = ibm.NewWatsonxClient(ibm.WatsonxConfig{
			Endpoint:  cfg.Generation.Endpoint,
			Version:   cfg.Generation.Version,
			ModelID:   cfg.Generation.ModelID,
			ProjectID: cfg.ProjectID,
			Params: ibm.GenerationParams{
				DecodingMethod:    cfg.Generation.DecodingMethod,
				MaxNewTokens:      cfg.Generation.MaxNewTokens,
				MinNewTokens:      cfg.Generation.MinNewTokens,
				StopSequences:     cfg.Generation.StopSequences,
				RepetitionPenalty: cfg.Generation.RepetitionPenalty,
			},
			HTTPClient: httpClient,
		})
		tokens = ibm.NewAuthenticator(cfg.APIKey, cfg.IAM.Endpoint, httpClient)
	}

	var converter Converter
	switch cfg.Output.Engine {
	case "native":
		converter = docx.NewConverter()
	default:
		converter = pandoc.NewConverter(pandoc.Config{
			Path:     cfg.Output.PandocPath,
			Version:  cfg.Output.PandocVersion,
			CacheDir: cfg.Output.PandocCacheDir,
		})
	}

	var ledger Ledger = NopLedger{}
	if cfg.Ledger.Enabled {
		fs, err := gcp.NewFirestoreLedger(ctx, cfg.ProjectID, cfg.Ledger.Collection)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, fs.Close)
		ledger = fs
	}

	pipeline := NewPipeline(PipelineConfig{
		Extractor: NewExtractor(),
		Translator: NewPageTranslator(backend, TranslatorConfig{
			SourceLanguage: cfg.Translation.SourceLanguage,
			TargetLanguage: cfg.Translation.TargetLanguage,
			Concurrency:    cfg.Translation.Concurrency,
		}),
		Tokens:    tokens,
		Generator: NewReportGenerator(model, cfg.Generation.Prompt),
		Writer:    NewDocumentWriter(converter, cfg.Output.Dir, cfg.Output.Suffix),
		Ledger:    ledger,
		ChunkSize: cfg.Generation.ChunkSize,
	})
	return pipeline, closeAll, nil
}
