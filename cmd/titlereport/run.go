package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/titlereport/internal/gcp"
	"github.com/Lllllllleong/titlereport/internal/models"
	"github.com/Lllllllleong/titlereport/internal/services"
	"github.com/Lllllllleong/titlereport/internal/ui"
)

var printReport bool

var runCmd = &cobra.Command{
	Use:   "run <file|gs://bucket/object>",
	Short: "Generate a report for one document",
	Long:  "Generate a title report for a PDF, DOCX or TXT document and write it next to the working directory as a .docx file.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	runCmd.Flags().BoolVar(&printReport, "print", true, "Print the generated report to stdout")
	rootCmd.AddCommand(runCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)

	err := generate(cmd, console, args[0])
	if err != nil {
		console.Abort(err)
	}
	return err
}

func generate(cmd *cobra.Command, console *ui.Console, source string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	upload, err := readUpload(ctx, source)
	if err != nil {
		return err
	}

	pipeline, closeFn, err := services.NewPipelineFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("set up pipeline: %w", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			console.Warning("Failed to close clients: %v", err)
		}
	}()

	console.Info("Processing %s", upload.Name)
	res, err := pipeline.Run(ctx, upload, console.Observer())
	if res != nil && res.Report != "" && printReport {
		console.Report("Report On Title", res.Report)
	}
	if err != nil {
		return err
	}

	if n := res.FailedPages(); n > 0 {
		console.Warning("%d of %d pages could not be translated", n, len(res.Translated))
	}
	if n := res.FailedChunks(); n > 0 {
		console.Warning("%d of %d chunks returned an error", n, len(res.Chunks))
	}
	console.Success("Report saved to %s", res.Document.Path)
	return nil
}

func readUpload(ctx context.Context, source string) (models.Upload, error) {
	if gcp.IsGCSURI(source) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return models.Upload{}, fmt.Errorf("failed to create storage client: %w", err)
		}
		defer client.Close()
		return gcp.ReadObject(ctx, client, source)
	}

	content, err := os.ReadFile(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Upload{}, fmt.Errorf("file not found: %s", source)
		}
		return models.Upload{}, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return models.Upload{Name: filepath.Base(source), Content: content}, nil
}
