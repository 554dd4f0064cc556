package commands

import (
	"context"
	"fmt"

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

type registerTenantCmd struct{}

// Execute creates a tenant in the local database and prints the one and only
// copy of its API token.
func (s *registerTenantCmd) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "register-tenant")

	database, err := db.New(ctx, c.String("sql-dialect"), c.String("sql-dsn"), &gorm.Config{
		Logger: db.NewLogger(c.String("log-level")),
	})
	if err != nil {
		return err
	}

	memo := cache.New()
	gw := upstream.NewGateway(nil, log)
	fetcher := inventory.NewFetcher(gw, memo, log)
	orchestrator := export.NewOrchestrator(fetcher, gw, jobs.NewMemoryStore(), "exports", log)
	updater := nsupdate.NewUpdater(gw, nsupdate.NewAuditLog("audit"), log)

	back := backend.New(database, memo, gw, fetcher, orchestrator, updater, backend.Config{}, log)

	resp, err := back.RegisterTenant(backend.RegisterTenantInput{
		Slug:               c.String("slug"),
		Name:               c.String("name"),
		Endpoint:           c.String("endpoint"),
		Identifier:         c.String("identifier"),
		Secret:             c.String("secret"),
		DefaultNS1:         c.String("default-ns1"),
		DefaultNS2:         c.String("default-ns2"),
		InsecureSkipVerify: c.Bool("insecure-skip-verify"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("tenant: %s\ntoken: %s\n", resp.Slug, resp.Token)

	return nil
}

func registerTenantCommand() *cli.Command {
	cmd := registerTenantCmd{}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "slug",
			Usage:    "Short unique name for the tenant",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Display name for the tenant",
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "Billing API endpoint URL",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "identifier",
			Usage:    "Billing API identifier",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "secret",
			Usage:    "Billing API secret",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "default-ns1",
			Usage: "Default first nameserver for nameserver updates",
		},
		&cli.StringFlag{
			Name:  "default-ns2",
			Usage: "Default second nameserver for nameserver updates",
		},
		&cli.BoolFlag{
			Name:  "insecure-skip-verify",
			Usage: "Skip TLS certificate verification for the billing API",
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
	}

	return &cli.Command{
		Name:   "register-tenant",
		Usage:  "create a tenant and print its API token",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
