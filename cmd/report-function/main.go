package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/titlereport/internal/config"
	"github.com/Lllllllleong/titlereport/internal/gcp"
	"github.com/Lllllllleong/titlereport/internal/models"
	"github.com/Lllllllleong/titlereport/internal/services"
)

var (
	handlerInstance *reportHandler
	once            sync.Once
	initErr         error
)

func init() {
	// "HandleGenerateReport" is the entry point name registered in GCP.
	functions.HTTP("HandleGenerateReport", handleGenerateReport)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() (*reportHandler, error) {
	ctx := context.Background()
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	// Only /tmp is writable in the function runtime.
	if cfg.Output.PandocCacheDir == "" {
		cfg.Output.PandocCacheDir = filepath.Join(os.TempDir(), "pandoc")
	}

	pipeline, _, err := services.NewPipelineFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &reportHandler{
		newRunner: func(dir string) reportRunner { return pipeline.WithOutputDir(dir) },
		readObject: func(ctx context.Context, uri string) (models.Upload, error) {
			return gcp.ReadObject(ctx, storageClient, uri)
		},
		maxUploadBytes: cfg.Server.MaxUploadBytes,
		tempDir:        os.TempDir(),
	}, nil
}

// handleGenerateReport is the HTTP handler.
func handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of clients.
	once.Do(func() {
		handlerInstance, initErr = setup()
	})
	if initErr != nil {
		slog.Error("CRITICAL: report function initialization failed.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handlerInstance.ServeHTTP(w, r)
}
