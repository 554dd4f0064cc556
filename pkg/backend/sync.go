package backend

import (
	"context"

	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/sirupsen/logrus"
)

// SyncBatch mirrors one inventory page into the local store. The run opens a
// SyncLog in running state and closes it exactly once with final counts. A
// single domain's failed upsert counts as an error and the batch continues;
// only failing to fetch the page at all fails the whole run.
func (b *backend) SyncBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int, withNameservers bool) (*model.SyncReport, error) {
	syncLog := &db.SyncLog{
		TenantID:    tenant.ID,
		BatchNumber: batchNumber,
	}
	if err := b.db.CreateSyncLog(syncLog); err != nil {
		return nil, err
	}

	report := &model.SyncReport{BatchNumber: batchNumber}
	creds := b.Credentials(tenant)

	offset := (batchNumber - 1) * batchSize
	page, err := b.fetcher.PageForExport(ctx, creds, batchSize, offset)
	if err != nil {
		syncLog.Status = db.SyncStatusFailed
		syncLog.ErrorMessage = err.Error()
		if closeErr := b.db.CloseSyncLog(syncLog); closeErr != nil {
			b.log.WithError(closeErr).Error("closing failed sync log")
		}
		report.Status = db.SyncStatusFailed
		report.Error = err.Error()
		return report, err
	}

	report.DomainsFound = len(page.Domains)
	report.LastBatch = page.LastPage()

	for _, dom := range page.Domains {
		report.DomainsProcessed++

		if dom.ExternalID == "" {
			report.Errors++
			continue
		}

		created, err := b.db.UpsertDomain(tenant.ID, dom)
		if err != nil {
			b.log.WithFields(logrus.Fields{
				"tenant": tenant.Slug,
				"domain": dom.Name,
			}).WithError(err).Warn("mirror upsert failed")
			report.Errors++
			continue
		}
		if created {
			report.DomainsAdded++
		} else {
			report.DomainsUpdated++
		}

		if !withNameservers {
			continue
		}
		ns, err := b.gw.GetNameservers(ctx, creds, dom.ExternalID)
		if err != nil {
			report.Errors++
			continue
		}
		if err := b.db.UpsertNameservers(tenant.ID, dom.ExternalID, *ns); err != nil {
			report.Errors++
		}
	}

	syncLog.DomainsFound = report.DomainsFound
	syncLog.DomainsProcessed = report.DomainsProcessed
	syncLog.DomainsAdded = report.DomainsAdded
	syncLog.DomainsUpdated = report.DomainsUpdated
	syncLog.Errors = report.Errors
	syncLog.Status = db.SyncStatusCompleted
	report.Status = db.SyncStatusCompleted

	if err := b.db.CloseSyncLog(syncLog); err != nil {
		b.log.WithError(err).Error("closing sync log")
	}

	b.log.WithFields(logrus.Fields{
		"tenant":      tenant.Slug,
		"batchNumber": batchNumber,
		"found":       report.DomainsFound,
		"added":       report.DomainsAdded,
		"updated":     report.DomainsUpdated,
		"errors":      report.Errors,
	}).Info("mirror sync batch finished")

	return report, nil
}
