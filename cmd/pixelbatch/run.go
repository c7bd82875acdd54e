package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pixelbatch/internal/artifacts"
	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/providers/pixellab"
	"pixelbatch/internal/resolver"
	"pixelbatch/internal/scheduler"
	"pixelbatch/internal/storage"
	"pixelbatch/internal/wildcard"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run MANIFEST.yaml",
		Short: "Generate a batch described by a YAML manifest",
		Long: `Resolves the manifest template count times against the wildcard
directory and generates the images one at a time. Ctrl-C stops the batch and
cancels the in-flight request.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
	cmd.Flags().String("out", "output", "directory for generated PNG files")
	cmd.Flags().String("zip", "", "also write a zip archive with a metadata index to this path")
	return cmd
}

// progressObserver logs job transitions.
type progressObserver struct {
	logger zerolog.Logger
}

func (p progressObserver) JobUpdated(_ context.Context, job domain.Job) error {
	event := p.logger.Info()
	if job.Status == domain.JobStatusPending {
		event = p.logger.Debug()
	}
	event.Str("job_id", job.ID).Str("status", string(job.Status)).Str("reason", job.FailureReason).Str("prompt", job.Prompt.Text).Msg("job")
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	outDir, _ := cmd.Flags().GetString("out")
	zipPath, _ := cmd.Flags().GetString("zip")
	verbose, _ := cmd.Flags().GetBool("verbose")

	manifest, err := loadManifest(args[0])
	if err != nil {
		return err
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	wildcardsDir := cfg.WildcardsDir
	if manifest.WildcardsDir != "" {
		wildcardsDir = manifest.WildcardsDir
	}
	wildcardFiles, err := storage.NewFileStore(wildcardsDir)
	if err != nil {
		return err
	}
	snap, err := wildcard.NewStore(wildcardFiles, &logger).Snapshot(ctx)
	if err != nil {
		return err
	}

	builder := scheduler.Builder{MaxBatchSize: cfg.MaxBatchSize}
	jobs, err := builder.Build(manifest.BatchRequest, snap.Lists, snap.Active, resolver.DefaultSource())
	if err != nil {
		return err
	}

	apiKey := cfg.PixelLabAPIKey
	if manifest.APIKey != "" {
		apiKey = manifest.APIKey
	}
	delay := cfg.BatchDelay
	if manifest.DelayMS != nil {
		delay = time.Duration(*manifest.DelayMS) * time.Millisecond
	}
	client := pixellab.NewClient(pixellab.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.PixelLabBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.PixelLabTimeout,
	})

	library := artifacts.NewLibrary(nil, &logger)
	sched, err := scheduler.New(scheduler.Options{
		Generator: client,
		Delay:     delay,
		Sink:      library,
		Observers: []scheduler.Observer{progressObserver{logger: logger}},
		Logger:    &logger,
	})
	if err != nil {
		return err
	}

	logger.Info().Int("batch_size", len(jobs)).Dur("delay", delay).Msg("starting batch")
	report, err := sched.Start(ctx, jobs)
	if err != nil {
		return err
	}

	if err := writeArtifacts(outDir, library.List()); err != nil {
		return err
	}
	if zipPath != "" && report.Completed > 0 {
		archive, err := library.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(zipPath, archive, 0o644); err != nil {
			return fmt.Errorf("write zip: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Aborted {
		return fmt.Errorf("batch aborted: %s", report.AbortReason)
	}
	return nil
}

// writeArtifacts stores artifacts oldest-first, numbered from 1.
func writeArtifacts(dir string, items []domain.Artifact) error {
	if len(items) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for i := len(items) - 1; i >= 0; i-- {
		n := len(items) - i
		name := filepath.Join(dir, artifacts.Filename(items[i], n))
		if err := os.WriteFile(name, items[i].ImageBytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
