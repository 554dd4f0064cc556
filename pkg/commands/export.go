package commands

import (
	"context"

	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

type exportBatchCommand struct{}

// Execute runs one export batch against the billing API and writes the CSV.
// With --all it keeps going batch by batch until the last page.
func (s *exportBatchCommand) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "export")

	creds := credentialsFromFlags(c)
	gw := upstream.NewGateway(limiterFromFlags(c), log)
	fetcher := inventory.NewFetcher(gw, cache.New(), log)
	orchestrator := export.NewOrchestrator(fetcher, gw, jobs.NewMemoryStore(), c.String("csv-dir"), log)

	if bucket := c.String("s3-bucket"); bucket != "" {
		archiver, err := export.NewS3Archiver(bucket, c.String("s3-prefix"))
		if err != nil {
			return err
		}
		orchestrator = orchestrator.WithArchiver(archiver)
	}

	batchNumber := c.Int("batch-number")
	batchSize := c.Int("batch-size")

	for {
		summary, err := orchestrator.RunBatch(ctx, creds, batchNumber, batchSize)
		if err != nil {
			return err
		}

		entry := log.WithFields(logrus.Fields{
			"batch":      summary.BatchNumber,
			"processed":  summary.Processed,
			"successful": summary.Successful,
			"errors":     summary.Errors,
			"file":       summary.FilePath,
		})
		if summary.FileNote != "" {
			entry = entry.WithField("note", summary.FileNote)
		}
		entry.Info("batch finished")

		if !c.Bool("all") || summary.LastBatch {
			return nil
		}
		batchNumber++
	}
}

func exportCommand() *cli.Command {
	cmd := exportBatchCommand{}

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "batch-number",
			Usage:   "1-based batch to export",
			EnvVars: []string{"DOMAINTOOLS_BATCH_NUMBER"},
			Value:   1,
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Number of domains per batch",
			EnvVars: []string{"DOMAINTOOLS_BATCH_SIZE"},
			Value:   50,
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Keep exporting batches until the last page",
		},
		&cli.StringFlag{
			Name:    "csv-dir",
			Usage:   "Directory export CSV files are written to",
			EnvVars: []string{"DOMAINTOOLS_CSV_DIR"},
			Value:   "exports",
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "Optional S3 bucket finished CSV files are archived to",
			EnvVars: []string{"DOMAINTOOLS_S3_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "s3-prefix",
			Usage:   "Key prefix for archived CSV files",
			EnvVars: []string{"DOMAINTOOLS_S3_PREFIX"},
			Value:   "exports",
		},
	}
	flags = append(flags, upstreamFlags()...)

	return &cli.Command{
		Name:   "export",
		Usage:  "export domain batches to CSV",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
