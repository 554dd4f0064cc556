package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const (
	// The upstream caps results per call; one broad listing at this limit is
	// attempted before falling back to per-client enumeration.
	broadLimit = 1000

	allDomainsTTL = 300 * time.Second
)

// Fetcher composes gateway calls into a complete domain inventory.
type Fetcher struct {
	gw    upstream.Gateway
	cache *cache.Cache
	log   *logrus.Entry
}

func NewFetcher(gw upstream.Gateway, c *cache.Cache, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		gw:    gw,
		cache: c,
		log:   log,
	}
}

// AllDomains returns the tenant's full inventory, sorted case-insensitively
// by name, served from the TTL cache when live. The cache key carries the
// credential identity so a credential change never serves the old account.
func (f *Fetcher) AllDomains(ctx context.Context, creds upstream.Credentials) ([]model.Domain, error) {
	key := "inventory:all:" + creds.CacheKey()
	v, err := f.cache.GetOrCompute(key, creds.Tenant, allDomainsTTL, func() (interface{}, error) {
		return f.fetchAll(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Domain), nil
}

// PageForExport fetches one raw page at the given offset, uncached: export
// must always see fresh upstream state for the batch it claims to own.
func (f *Fetcher) PageForExport(ctx context.Context, creds upstream.Credentials, batchSize, offset int) (model.PageResult, error) {
	return f.gw.GetClientsDomains(ctx, creds, batchSize, offset, "")
}

// fetchAll tries one broad listing first. Some account structures return an
// empty broad listing even when domains exist, so an empty result falls back
// to enumerating every client and unioning their per-client lists.
func (f *Fetcher) fetchAll(ctx context.Context, creds upstream.Credentials) ([]model.Domain, error) {
	page, err := f.gw.GetClientsDomains(ctx, creds, broadLimit, 0, "")
	if err != nil {
		return nil, err
	}
	if len(page.Domains) > 0 {
		sortDomains(page.Domains)
		return page.Domains, nil
	}

	f.log.WithField("tenant", creds.Tenant).Info("broad domain listing empty, enumerating clients")

	clients, err := f.gw.GetClients(ctx, creds, broadLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var all []model.Domain
	for _, cl := range clients {
		clientPage, err := f.gw.GetClientsDomains(ctx, creds, broadLimit, 0, cl.ID)
		if err != nil {
			// Best effort: one client's failure should not lose the rest of
			// the inventory.
			f.log.WithField("clientId", cl.ID).WithError(err).Warn("client domain listing failed")
			continue
		}
		for _, d := range clientPage.Domains {
			if d.ExternalID != "" && seen[d.ExternalID] {
				continue
			}
			seen[d.ExternalID] = true
			all = append(all, d)
		}
	}

	sortDomains(all)
	return all, nil
}

func sortDomains(domains []model.Domain) {
	slices.SortStableFunc(domains, func(a, b model.Domain) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
