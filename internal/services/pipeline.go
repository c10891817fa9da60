package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtract      Stage = "extract"
	StageTranslate    Stage = "translate"
	StageChunk        Stage = "chunk"
	StageAuthenticate Stage = "authenticate"
	StageGenerate     Stage = "generate"
	StageAggregate    Stage = "aggregate"
	StageConvert      Stage = "convert"
)

// StageError is a failure that aborted the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TokenSource supplies the bearer token sent with generation calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Observer follows a run. total is the number of steps in the stage, or zero
// when the stage has no steps to count.
type Observer interface {
	StageStarted(stage Stage, total int)
	StepDone(stage Stage)
	StageFinished(stage Stage, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) StageStarted(Stage, int)    {}
func (NopObserver) StepDone(Stage)             {}
func (NopObserver) StageFinished(Stage, error) {}

// Ledger records run progress. Ledger failures never abort a run.
type Ledger interface {
	Start(ctx context.Context, run models.Run) (string, error)
	Update(ctx context.Context, runID string, fields map[string]interface{}) error
	PreviousRun(ctx context.Context, fileHash string) (string, bool, error)
}

// NopLedger records nothing.
type NopLedger struct{}

func (NopLedger) Start(context.Context, models.Run) (string, error) { return "", nil }
func (NopLedger) Update(context.Context, string, map[string]interface{}) error {
	return nil
}
func (NopLedger) PreviousRun(context.Context, string) (string, bool, error) { return "", false, nil }

// PipelineConfig wires the stages together. Tokens may be nil for model
// clients that authenticate on their own.
type PipelineConfig struct {
	Extractor  *Extractor
	Translator *PageTranslator
	Tokens     TokenSource
	Generator  *ReportGenerator
	Writer     *DocumentWriter
	Ledger     Ledger
	ChunkSize  int
}

// Pipeline runs an upload through every stage in order.
type Pipeline struct {
	extractor  *Extractor
	translator *PageTranslator
	tokens     TokenSource
	generator  *ReportGenerator
	writer     *DocumentWriter
	ledger     Ledger
	chunkSize  int
}

// NewPipeline creates a Pipeline. A nil ledger records nothing and a zero
// chunk size is DefaultChunkSize.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Ledger == nil {
		cfg.Ledger = NopLedger{}
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Pipeline{
		extractor:  cfg.Extractor,
		translator: cfg.Translator,
		tokens:     cfg.Tokens,
		generator:  cfg.Generator,
		writer:     cfg.Writer,
		ledger:     cfg.Ledger,
		chunkSize:  cfg.ChunkSize,
	}
}

// WithOutputDir returns a pipeline sharing every backend that writes its
// documents into dir.
func (p *Pipeline) WithOutputDir(dir string) *Pipeline {
	cp := *p
	cp.writer = p.writer.InDir(dir)
	return &cp
}

// Result is everything a run produced.
type Result struct {
	RunID      string
	UploadName string
	FileHash   string
	Pages      models.Pages
	Translated []models.TranslatedPage
	Chunks     []models.Chunk
	Fragments  []models.Fragment
	Report     string
	Document   models.OutputDocument
}

// FailedPages counts pages whose translation failed.
func (r *Result) FailedPages() int {
	n := 0
	for _, p := range r.Translated {
		if p.Failed() {
			n++
		}
	}
	return n
}

// FailedChunks counts chunks whose generation failed.
func (r *Result) FailedChunks() int {
	n := 0
	for _, f := range r.Fragments {
		if f.Failed() {
			n++
		}
	}
	return n
}

// Run builds the report and writes the output document.
func (p *Pipeline) Run(ctx context.Context, upload models.Upload, obs Observer) (*Result, error) {
	res, err := p.BuildReport(ctx, upload, obs)
	if err != nil {
		return res, err
	}
	if _, err := p.WriteDocument(ctx, res, obs); err != nil {
		return res, err
	}
	return res, nil
}

// BuildReport runs extraction through aggregation. Per-page and per-chunk
// failures are kept in the result; only extraction, authentication and
// cancellation abort.
func (p *Pipeline) BuildReport(ctx context.Context, upload models.Upload, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	res := &Result{UploadName: upload.Name, FileHash: hashContent(upload.Content)}
	logCtx := slog.With("file", upload.Name, "fileHash", res.FileHash)
	logCtx.Info("Starting report run.")

	if prevID, found, err := p.ledger.PreviousRun(ctx, res.FileHash); err != nil {
		logCtx.Warn("Failed to look up previous runs.", "error", err)
	} else if found {
		logCtx.Info("File was processed before.", "previousRunId", prevID)
	}

	runID, err := p.ledger.Start(ctx, models.Run{
		FileHash:         res.FileHash,
		OriginalFilename: upload.Name,
		Status:           models.StatusExtracting,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		logCtx.Warn("Failed to create run record.", "error", err)
	}
	res.RunID = runID
	if runID != "" {
		logCtx = logCtx.With("runId", runID)
	}

	// 1. Extract
	obs.StageStarted(StageExtract, 0)
	res.Pages, err = p.extractor.Extract(ctx, upload)
	obs.StageFinished(StageExtract, err)
	if err != nil {
		return res, p.fail(ctx, logCtx, runID, StageExtract, err)
	}
	p.record(ctx, logCtx, runID, map[string]interface{}{
		"status":    models.StatusTranslating,
		"pageCount": len(res.Pages),
	})

	// 2. Translate
	obs.StageStarted(StageTranslate, len(res.Pages))
	res.Translated = p.translator.Translate(ctx, res.Pages, func(models.TranslatedPage) {
		obs.StepDone(StageTranslate)
	})
	err = ctx.Err()
	obs.StageFinished(StageTranslate, err)
	if err != nil {
		return res, p.fail(ctx, logCtx, runID, StageTranslate, err)
	}

	// 3. Chunk
	res.Chunks, err = ChunkPages(res.Translated, p.chunkSize)
	if err != nil {
		return res, p.fail(ctx, logCtx, runID, StageChunk, err)
	}
	logCtx.Info("Pages chunked.", "chunkCount", len(res.Chunks), "chunkSize", p.chunkSize)
	p.record(ctx, logCtx, runID, map[string]interface{}{
		"status":      models.StatusAuthenticating,
		"failedPages": res.FailedPages(),
		"chunkCount":  len(res.Chunks),
	})

	// 4. Authenticate
	var token string
	if p.tokens != nil {
		obs.StageStarted(StageAuthenticate, 0)
		token, err = p.tokens.Token(ctx)
		obs.StageFinished(StageAuthenticate, err)
		if err != nil {
			return res, p.fail(ctx, logCtx, runID, StageAuthenticate, err)
		}
	}
	p.record(ctx, logCtx, runID, map[string]interface{}{"status": models.StatusGenerating})

	// 5. Generate
	obs.StageStarted(StageGenerate, len(res.Chunks))
	res.Fragments = make([]models.Fragment, 0, len(res.Chunks))
	for _, chunk := range res.Chunks {
		if err := ctx.Err(); err != nil {
			obs.StageFinished(StageGenerate, err)
			return res, p.fail(ctx, logCtx, runID, StageGenerate, err)
		}
		res.Fragments = append(res.Fragments, p.generator.Generate(ctx, chunk, token))
		obs.StepDone(StageGenerate)
	}
	obs.StageFinished(StageGenerate, nil)

	// 6. Aggregate
	res.Report = Aggregate(res.Fragments)
	p.record(ctx, logCtx, runID, map[string]interface{}{"failedChunks": res.FailedChunks()})

	logCtx.Info("Report built.",
		"pageCount", len(res.Pages),
		"failedPages", res.FailedPages(),
		"chunkCount", len(res.Chunks),
		"failedChunks", res.FailedChunks(),
	)
	return res, nil
}

// WriteDocument converts the report once. A result whose document was
// already generated is returned as is.
func (p *Pipeline) WriteDocument(ctx context.Context, res *Result, obs Observer) (models.OutputDocument, error) {
	if res.Document.Generated {
		return res.Document, nil
	}
	if obs == nil {
		obs = NopObserver{}
	}
	logCtx := slog.With("file", res.UploadName, "runId", res.RunID)
	p.record(ctx, logCtx, res.RunID, map[string]interface{}{"status": models.StatusConverting})

	obs.StageStarted(StageConvert, 0)
	doc, err := p.writer.Write(ctx, res.Report, res.UploadName)
	obs.StageFinished(StageConvert, err)
	if err != nil {
		return doc, p.fail(ctx, logCtx, res.RunID, StageConvert, err)
	}

	res.Document = doc
	p.record(ctx, logCtx, res.RunID, map[string]interface{}{
		"status":     models.StatusComplete,
		"outputName": doc.Name,
	})
	return doc, nil
}

// fail marks the run FAILED and wraps err with its stage.
func (p *Pipeline) fail(ctx context.Context, logCtx *slog.Logger, runID string, stage Stage, err error) error {
	logCtx.Error("Pipeline stage failed.", "stage", stage, "error", err)
	p.record(ctx, logCtx, runID, map[string]interface{}{
		"status":       models.StatusFailed,
		"errorDetails": fmt.Sprintf("%s: %v", stage, err),
	})
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) record(ctx context.Context, logCtx *slog.Logger, runID string, fields map[string]interface{}) {
	if runID == "" {
		return
	}
	if err := p.ledger.Update(context.WithoutCancel(ctx), runID, fields); err != nil {
		logCtx.Warn("Failed to update run record.", "error", err, "fields", fields)
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
