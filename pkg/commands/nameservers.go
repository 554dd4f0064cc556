package commands

import (
	"context"

	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

type updateNameserversCmd struct{}

func (s *updateNameserversCmd) Execute(c *cli.Context) error {
	ctx := signals.SetupSignalHandler(context.Background())

	log := logrus.WithField("command", "update-nameservers")

	creds := credentialsFromFlags(c)
	gw := upstream.NewGateway(limiterFromFlags(c), log)
	updater := nsupdate.NewUpdater(gw, nsupdate.NewAuditLog(c.String("audit-dir")), log)

	resp, err := updater.Apply(ctx, creds, c.StringSlice("domain"), c.String("ns1"), c.String("ns2"))
	if resp != nil {
		log.WithFields(logrus.Fields{
			"succeeded": resp.SuccessCount,
			"failed":    resp.FailureCount,
		}).Info("nameserver updates finished")
	}

	return err
}

func updateNameserversCommand() *cli.Command {
	cmd := updateNameserversCmd{}

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "domain",
			Usage:    "Domain to update, repeat for multiple",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "ns1",
			Usage:    "First nameserver",
			EnvVars:  []string{"DOMAINTOOLS_NS1"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "ns2",
			Usage:    "Second nameserver",
			EnvVars:  []string{"DOMAINTOOLS_NS2"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "audit-dir",
			Usage:   "Directory nameserver update audit logs are written to",
			EnvVars: []string{"DOMAINTOOLS_AUDIT_DIR"},
			Value:   "audit",
		},
	}
	flags = append(flags, upstreamFlags()...)

	return &cli.Command{
		Name:   "update-nameservers",
		Usage:  "apply a nameserver pair to a list of domains",
		Action: cmd.Execute,
		Flags:  append(flags, GlobalFlags()...),
		Before: Before,
	}
}
