package commands

import (
	"context"
	"time"

	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

type syncCmd struct{}

// Execute mirrors domain batches for a registered tenant into the local
// database. With --all it keeps going batch by batch until the last page.
func (s *syncCmd) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "sync")

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	memo := cache.New()
	gw := upstream.NewGateway(upstream.NewLimiter(c.Duration("api-interval"), c.Int("api-burst")), log)
	fetcher := inventory.NewFetcher(gw, memo, log)
	orchestrator := export.NewOrchestrator(fetcher, gw, jobs.NewMemoryStore(), c.String("csv-dir"), log)
	updater := nsupdate.NewUpdater(gw, nsupdate.NewAuditLog(c.String("audit-dir")), log)

	back := backend.New(database, memo, gw, fetcher, orchestrator, updater, backend.Config{
		CSVDir: c.String("csv-dir"),
	}, log)

	tenant, err := back.GetTenant(c.String("tenant"))
	if err != nil {
		return err
	}

	batchNumber := c.Int("batch-number")
	for {
		report, err := back.SyncBatch(ctx, tenant, batchNumber, c.Int("batch-size"), c.Bool("with-nameservers"))
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"batch":     report.BatchNumber,
			"found":     report.DomainsFound,
			"processed": report.DomainsProcessed,
			"added":     report.DomainsAdded,
			"updated":   report.DomainsUpdated,
			"errors":    report.Errors,
		}).Info("sync batch finished")

		if !c.Bool("all") || report.LastBatch {
			return nil
		}
		batchNumber++
	}
}

func syncCommand() *cli.Command {
	cmd := syncCmd{}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "tenant",
			Usage:    "Registered tenant slug to sync",
			EnvVars:  []string{"DOMAINTOOLS_TENANT"},
			Required: true,
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
		&cli.IntFlag{
			Name:    "batch-number",
			Usage:   "1-based batch to sync",
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
			Usage: "Keep syncing batches until the last page",
		},
		&cli.BoolFlag{
			Name:    "with-nameservers",
			Usage:   "Also fetch and mirror nameservers per domain",
			EnvVars: []string{"DOMAINTOOLS_WITH_NAMESERVERS"},
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
	}

	return &cli.Command{
		Name:   "sync",
		Usage:  "mirror domain batches into the local database",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
