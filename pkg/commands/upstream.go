package commands

import (
	"time"

	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/urfave/cli/v2"
)

// upstreamFlags are shared by every command that talks to a billing API
// directly instead of through the tenant registry.
func upstreamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "tenant",
			Usage:   "Tenant slug, used to label output files and rate limit buckets",
			EnvVars: []string{"DOMAINTOOLS_TENANT"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "Billing API endpoint URL",
			EnvVars:  []string{"DOMAINTOOLS_ENDPOINT"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "identifier",
			Usage:    "Billing API identifier",
			EnvVars:  []string{"DOMAINTOOLS_IDENTIFIER"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "secret",
			Usage:    "Billing API secret",
			EnvVars:  []string{"DOMAINTOOLS_SECRET"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:    "insecure-skip-verify",
			Usage:   "Skip TLS certificate verification for the billing API",
			EnvVars: []string{"DOMAINTOOLS_INSECURE_SKIP_VERIFY"},
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
}

func credentialsFromFlags(c *cli.Context) upstream.Credentials {
	return upstream.Credentials{
		Tenant:             c.String("tenant"),
		Endpoint:           c.String("endpoint"),
		Identifier:         c.String("identifier"),
		Secret:             c.String("secret"),
		InsecureSkipVerify: c.Bool("insecure-skip-verify"),
	}
}

func limiterFromFlags(c *cli.Context) *upstream.Limiter {
	return upstream.NewLimiter(c.Duration("api-interval"), c.Int("api-burst"))
}
