package nsupdate

import (
	"context"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/sirupsen/logrus"
)

// Updater applies a nameserver change to a list of domains sequentially, in
// the caller-supplied order, recording one audit event per attempt. This is
// an all-attempt batch: one domain's failure never aborts the rest. Pacing
// comes from the gateway's shared limiter.
type Updater struct {
	gw    upstream.Gateway
	audit *AuditLog
	log   *logrus.Entry

	// now is swappable for tests.
	now func() time.Time
}

func NewUpdater(gw upstream.Gateway, audit *AuditLog, log *logrus.Entry) *Updater {
	return &Updater{
		gw:    gw,
		audit: audit,
		log:   log,
		now:   time.Now,
	}
}

// Audit exposes the underlying log for display reads.
func (u *Updater) Audit() *AuditLog {
	return u.audit
}

// Apply updates every listed domain to ns1/ns2 and returns the full ordered
// result list with aggregate counts. Only a cancelled context stops the walk
// early; the results up to that point are still returned.
func (u *Updater) Apply(ctx context.Context, creds upstream.Credentials, domains []string, ns1, ns2 string) (*model.UpdateNameserversResponse, error) {
	resp := &model.UpdateNameserversResponse{}

	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		result := model.UpdateResult{Domain: domain}
		msg, err := u.gw.UpdateNameservers(ctx, creds, domain, ns1, ns2)
		if err != nil {
			result.Message = err.Error()
			resp.FailureCount++
		} else {
			result.Success = true
			result.Message = msg
			resp.SuccessCount++
		}
		resp.Results = append(resp.Results, result)

		// The audit line lands immediately, not at batch end, so a killed
		// run still accounts for every attempt it made.
		status := AuditFailed
		if result.Success {
			status = AuditSuccess
		}
		if err := u.audit.Append(creds.Tenant, AuditEvent{
			Timestamp: u.now(),
			Domain:    domain,
			Status:    status,
			Message:   result.Message,
		}); err != nil {
			u.log.WithError(err).Warn("appending nameserver audit event")
		}
	}

	u.log.WithFields(logrus.Fields{
		"tenant":    creds.Tenant,
		"domains":   len(domains),
		"succeeded": resp.SuccessCount,
		"failed":    resp.FailureCount,
	}).Info("nameserver batch update finished")

	return resp, nil
}
