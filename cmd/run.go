package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/internal/entities"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/monitoring"
	"github.com/sells-group/mne-enrich/internal/pipeline"
	"github.com/sells-group/mne-enrich/internal/submission"
)

var (
	runOutDir   string
	runClassify bool
	runLimit    int
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Enrich an entity list and write the submission files",
	Long:  "Reads ID;NAME rows from a local CSV/XLSX file, an s3://bucket/key object or '-' for stdin, enriches every entity and writes discovery.csv and extraction.csv.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) == 1 {
			cfg.Input.Path = args[0]
		}
		if runOutDir != "" {
			cfg.Output.Dir = runOutDir
		}
		if cmd.Flags().Changed("classify") {
			cfg.NACE.Classify = runClassify
		}

		list, err := loadEntities(ctx, cfg.Input.Path)
		if err != nil {
			return err
		}
		if runLimit > 0 && runLimit < len(list) {
			list = list[:runLimit]
		}

		env, err := initPipeline(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		batch, err := env.Pipeline.ProcessAll(ctx, cfg.Input.Path, list, pipeline.LogObserver(cfg.Pipeline.ProgressEvery))
		if batch != nil {
			checkBatch(ctx, batch, err)
		}
		if err != nil {
			return eris.Wrap(err, "run: process entities")
		}

		if err := writeSubmission(cfg.Output.Dir, batch.Results); err != nil {
			return err
		}
		zap.L().Info("run complete",
			zap.String("run_id", batch.RunID),
			zap.Int("entities", len(batch.Results)),
			zap.String("output", cfg.Output.Dir),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "output directory (overrides output.dir)")
	runCmd.Flags().BoolVar(&runClassify, "classify", false, "classify ACTIVITY into NACE codes (overrides nace.classify)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process only the first N entities")
	rootCmd.AddCommand(runCmd)
}

func loadEntities(ctx context.Context, path string) ([]model.Entity, error) {
	delim := ';'
	if r := []rune(cfg.Input.Delimiter); len(r) == 1 {
		delim = r[0]
	}
	if path == "-" {
		return entities.Parse(ctx, os.Stdin, delim)
	}
	if path == "" {
		return nil, eris.New("run: no input path (pass one or set input.path)")
	}

	opts := []entities.Option{entities.WithDelimiter(delim)}
	if cfg.S3.Endpoint != "" {
		objects, err := entities.NewS3(entities.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			Insecure:        cfg.S3.Insecure,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, entities.WithObjectGetter(objects))
	}
	return entities.NewLoader(opts...).Load(ctx, path)
}

// checkBatch evaluates the quality of a finished batch and sends alerts.
func checkBatch(ctx context.Context, batch *pipeline.BatchResult, runErr error) []monitoring.Alert {
	run := &model.Run{ID: batch.RunID, Status: model.RunStatusComplete}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}
	checker := monitoring.NewChecker(monitoring.NewAlerter(cfg.Monitoring))
	return checker.Check(context.WithoutCancel(ctx), monitoring.Summarize(run, batch.Results))
}

func writeSubmission(dir string, results []model.EntityResult) error {
	disc := submission.BuildDiscovery(results)
	ext := submission.BuildExtraction(results)
	if err := submission.WriteFiles(dir, disc, ext, cfg.Output.XLSX); err != nil {
		return eris.Wrap(err, "write submission")
	}
	return nil
}
