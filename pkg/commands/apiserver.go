package commands

import (
	"context"
	"time"

	"github.com/gdelfava/domaintools/pkg/apiserver"
	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/gdelfava/domaintools/pkg/version"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

type apiServerCommand struct{}

func (s *apiServerCommand) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "api-server")

	log.Infof("version: %v", version.Get())

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	memo := cache.New()
	go memo.StartSweeper(time.Minute, ctx.Done())

	gw := upstream.NewGateway(limiterFromFlags(c), log)
	fetcher := inventory.NewFetcher(gw, memo, log)

	var store jobs.Store
	if c.String("job-store") == "db" {
		store = db.NewJobStore(database)
	} else {
		store = jobs.NewMemoryStore()
	}

	orchestrator := export.NewOrchestrator(fetcher, gw, store, c.String("csv-dir"), log)
	if bucket := c.String("s3-bucket"); bucket != "" {
		archiver, err := export.NewS3Archiver(bucket, c.String("s3-prefix"))
		if err != nil {
			return err
		}
		orchestrator = orchestrator.WithArchiver(archiver)
	}

	updater := nsupdate.NewUpdater(gw, nsupdate.NewAuditLog(c.String("audit-dir")), log)

	back := backend.New(database, memo, gw, fetcher, orchestrator, updater, backend.Config{
		CSVDir:            c.String("csv-dir"),
		SyncLogMaxAge:     c.Duration("sync-log-max-age"),
		JobMaxAge:         c.Duration("job-max-age"),
		CSVMaxAge:         c.Duration("csv-max-age"),
		RetentionInterval: c.Duration("retention-interval"),
	}, log)

	apiServer := apiserver.NewAPIServer(ctx, log, c.Int("port"), c.Int("export-batch-size"))

	return apiServer.Start(back)
}

func serverCommand() *cli.Command {
	cmd := apiServerCommand{}

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port for the HTTP Server Port",
			EnvVars: []string{"DOMAINTOOLS_PORT", "PORT"},
			Value:   4315,
		},
		&cli.StringFlag{
			Name:    "sql-dialect",
			Usage:   "The type of sql to use, sqlite or mysql",
			EnvVars: []string{"DOMAINTOOLS_SQL_DIALECT", "SQL_DIALECT"},
			Value:   "sqlite",
		},
		&cli.StringFlag{
			Name:    "sql-dsn",
			Usage:   "The DSN to use to connect to",
			EnvVars: []string{"DOMAINTOOLS_SQL_DSN", "SQL_DSN"},
			Value:   "file:domaintools.sqlite?_pragma=foreign_keys(1)",
		},
		&cli.StringFlag{
			Name:    "csv-dir",
			Usage:   "Directory export CSV files are written to",
			EnvVars: []string{"DOMAINTOOLS_CSV_DIR"},
			Value:   "exports",
		},
		&cli.StringFlag{
			Name:    "audit-dir",
			Usage:   "Directory nameserver update audit logs are written to",
			EnvVars: []string{"DOMAINTOOLS_AUDIT_DIR"},
			Value:   "audit",
		},
		&cli.StringFlag{
			Name:    "job-store",
			Usage:   "Where export job state lives, memory or db",
			EnvVars: []string{"DOMAINTOOLS_JOB_STORE"},
			Value:   "memory",
		},
		&cli.IntFlag{
			Name:    "export-batch-size",
			Usage:   "Default number of domains per export batch",
			EnvVars: []string{"DOMAINTOOLS_EXPORT_BATCH_SIZE"},
			Value:   50,
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
		&cli.DurationFlag{
			Name:    "api-interval",
			Usage:   "Minimum interval between billing API calls per tenant",
			EnvVars: []string{"DOMAINTOOLS_API_INTERVAL"},
			Value:   250 * time.Millisecond,
		},
		&cli.IntFlag{
			Name:    "api-burst",
			Usage:   "Billing API call burst allowance per tenant",
			EnvVars: []string{"DOMAINTOOLS_API_BURST"},
			Value:   1,
		},
		&cli.DurationFlag{
			Name:    "sync-log-max-age",
			Usage:   "Age after which completed sync logs are purged",
			EnvVars: []string{"DOMAINTOOLS_SYNC_LOG_MAX_AGE"},
			Value:   30 * 24 * time.Hour,
		},
		&cli.DurationFlag{
			Name:    "job-max-age",
			Usage:   "Age after which stale export jobs are purged",
			EnvVars: []string{"DOMAINTOOLS_JOB_MAX_AGE"},
			Value:   24 * time.Hour,
		},
		&cli.DurationFlag{
			Name:    "csv-max-age",
			Usage:   "Age after which export CSV files are purged",
			EnvVars: []string{"DOMAINTOOLS_CSV_MAX_AGE"},
			Value:   7 * 24 * time.Hour,
		},
		&cli.DurationFlag{
			Name:    "retention-interval",
			Usage:   "How often the retention sweep runs",
			EnvVars: []string{"DOMAINTOOLS_RETENTION_INTERVAL"},
			Value:   time.Hour,
		},
	}

	return &cli.Command{
		Name:   "api-server",
		Usage:  "domain tools api server",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
