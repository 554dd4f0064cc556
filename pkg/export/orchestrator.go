package export

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const noDomainIDError = "No domain ID found"

// Orchestrator walks one bounded batch of the inventory, fetches nameservers
// per domain, and materializes a CSV artifact once the batch completes. It
// runs either synchronously within one call or step-by-step across polling
// round trips, with the job state held in a Store between steps.
type Orchestrator struct {
	fetcher  *inventory.Fetcher
	gw       upstream.Gateway
	store    jobs.Store
	outDir   string
	archiver Archiver
	log      *logrus.Entry
}

func NewOrchestrator(fetcher *inventory.Fetcher, gw upstream.Gateway, store jobs.Store, outDir string, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		gw:      gw,
		store:   store,
		outDir:  outDir,
		log:     log,
	}
}

// WithArchiver copies each finished CSV to durable storage as well.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// BatchSummary aggregates one completed batch.
type BatchSummary struct {
	BatchNumber int
	Processed   int
	Successful  int
	Errors      int
	FilePath    string
	FileNote    string
	LastBatch   bool
	Outcomes    []model.DomainOutcome
}

// RunBatch processes a whole batch within one call. Failure to fetch the page
// aborts immediately with no partial CSV; per-domain failures are recorded as
// outcomes and never abort the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, creds upstream.Credentials, batchNumber, batchSize int) (*BatchSummary, error) {
	offset := (batchNumber - 1) * batchSize
	page, err := o.fetcher.PageForExport(ctx, creds, batchSize, offset)
	if err != nil {
		return nil, fmt.Errorf("fetching batch %d: %w", batchNumber, err)
	}

	summary := &BatchSummary{
		BatchNumber: batchNumber,
		LastBatch:   page.LastPage(),
	}
	for _, d := range page.Domains {
		outcome := o.processDomain(ctx, creds, d)
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	o.finishSummary(ctx, creds.Tenant, summary)

	return summary, nil
}

// Start begins a progress-mode batch: the page is fetched once and its size
// reported without processing any domain. A restart of the same batch number
// replaces any previous job for that tenant.
func (o *Orchestrator) Start(ctx context.Context, creds upstream.Credentials, batchNumber, batchSize int) (*model.StartExportResponse, error) {
	offset := (batchNumber - 1) * batchSize
	page, err := o.fetcher.PageForExport(ctx, creds, batchSize, offset)
	if err != nil {
		return nil, fmt.Errorf("starting batch %d: %w", batchNumber, err)
	}

	job := &jobs.Job{
		ID:           uuid.NewString(),
		Tenant:       creds.Tenant,
		BatchNumber:  batchNumber,
		BatchSize:    batchSize,
		Offset:       offset,
		TotalInBatch: len(page.Domains),
		Status:       model.JobStatusReady,
		Domains:      page.Domains,
	}
	if err := o.store.Save(ctx, job); err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"tenant":       creds.Tenant,
		"batchNumber":  batchNumber,
		"totalDomains": job.TotalInBatch,
	}).Info("export batch started")

	return &model.StartExportResponse{
		Status:       model.JobStatusReady,
		JobID:        job.ID,
		BatchNumber:  batchNumber,
		TotalDomains: job.TotalInBatch,
	}, nil
}

// Step advances a progress-mode batch by exactly one domain, or finishes it.
// Completion is reached exactly when currentIndex >= the batch's total; on
// that transition the accumulated outcomes are drained to a CSV file and the
// job is removed from the store.
func (o *Orchestrator) Step(ctx context.Context, creds upstream.Credentials, batchNumber, currentIndex int) (*model.ProgressResponse, error) {
	job, err := o.store.Get(ctx, creds.Tenant, batchNumber)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return nil, fmt.Errorf("batch %d has not been started: %w", batchNumber, err)
		}
		return nil, err
	}

	// Skipping ahead would leave earlier domains without an outcome, so the
	// batch only ever advances by its own index. This also keeps a premature
	// completion poll from draining a half-processed batch.
	if currentIndex > job.CurrentIndex {
		return nil, fmt.Errorf("batch %d is at index %d, not %d", batchNumber, job.CurrentIndex, currentIndex)
	}

	if currentIndex >= job.TotalInBatch {
		return o.complete(ctx, creds.Tenant, job)
	}

	// A replayed poll for an index already processed reports progress without
	// appending a second outcome. Outcomes are appended one per step, so the
	// index is bounded by what has actually been recorded.
	if currentIndex < job.CurrentIndex {
		if currentIndex >= len(job.Outcomes) {
			return nil, fmt.Errorf("batch %d has no recorded outcome for index %d", batchNumber, currentIndex)
		}
		return progressResponse(job, job.Outcomes[currentIndex]), nil
	}

	domain := job.Domains[currentIndex]
	outcome := o.processDomain(ctx, creds, domain)

	job.Outcomes = append(job.Outcomes, outcome)
	job.CurrentIndex = currentIndex + 1
	job.Status = model.JobStatusProcessing
	if err := o.store.Save(ctx, job); err != nil {
		return nil, err
	}

	return progressResponse(job, outcome), nil
}

func (o *Orchestrator) complete(ctx context.Context, tenant string, job *jobs.Job) (*model.ProgressResponse, error) {
	summary := &BatchSummary{
		BatchNumber: job.BatchNumber,
		Outcomes:    job.Outcomes,
	}
	o.finishSummary(ctx, tenant, summary)

	// Drain the accumulator: the job is done either way.
	if err := o.store.Delete(ctx, tenant, job.BatchNumber); err != nil {
		o.log.WithError(err).Warn("removing completed export job")
	}

	resp := &model.ProgressResponse{
		Status:         model.JobStatusComplete,
		BatchNumber:    job.BatchNumber,
		TotalProcessed: summary.Processed,
		Successful:     summary.Successful,
		Errors:         summary.Errors,
		FilePath:       summary.FilePath,
		Message:        summary.FileNote,
	}
	return resp, nil
}

// finishSummary computes aggregates and writes the CSV. A file that cannot be
// produced degrades gracefully: the batch still reports complete with its
// counts, plus an explicit note that no file exists.
func (o *Orchestrator) finishSummary(ctx context.Context, tenant string, summary *BatchSummary) {
	for _, outcome := range summary.Outcomes {
		summary.Processed++
		if outcome.Success {
			summary.Successful++
		} else {
			summary.Errors++
		}
	}

	path, err := writeCSV(o.outDir, tenant, summary.BatchNumber, summary.Outcomes)
	if err != nil {
		o.log.WithError(err).Error("writing export csv")
		summary.FileNote = fmt.Sprintf("export completed but no file was produced: %v", err)
		return
	}
	summary.FilePath = path

	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, path); err != nil {
			o.log.WithError(err).Warn("archiving export csv")
		}
	}

	o.log.WithFields(logrus.Fields{
		"tenant":      tenant,
		"batchNumber": summary.BatchNumber,
		"processed":   summary.Processed,
		"errors":      summary.Errors,
		"file":        path,
	}).Info("export batch complete")
}

// processDomain produces exactly one outcome for one domain. A record with no
// external id fails synthetically and never generates an upstream call.
func (o *Orchestrator) processDomain(ctx context.Context, creds upstream.Credentials, d model.Domain) model.DomainOutcome {
	outcome := model.DomainOutcome{
		DomainName: d.Name,
		DomainID:   d.ExternalID,
		Status:     d.Status,
	}

	if d.ExternalID == "" {
		outcome.Error = noDomainIDError
		return outcome
	}

	ns, err := o.gw.GetNameservers(ctx, creds, d.ExternalID)
	if err != nil {
		outcome.Error = friendlyError(err)
		return outcome
	}

	outcome.Success = true
	outcome.Nameservers = ns
	return outcome
}

func progressResponse(job *jobs.Job, outcome model.DomainOutcome) *model.ProgressResponse {
	processed := job.CurrentIndex
	percent := float64(processed) / float64(job.TotalInBatch) * 100

	return &model.ProgressResponse{
		Status:       model.JobStatusProcessing,
		BatchNumber:  job.BatchNumber,
		CurrentIndex: processed,
		TotalDomains: job.TotalInBatch,
		Percent:      math.Round(percent*10) / 10,
		DomainName:   outcome.DomainName,
		DomainID:     outcome.DomainID,
		DomainStatus: string(outcome.Status),
	}
}

// friendlyError turns a gateway error into the message recorded in outcomes
// and CSV rows. Timeouts are called out explicitly rather than reported as an
// unknown error.
func friendlyError(err error) string {
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout {
			return "API Timeout"
		}
		if uerr.IsTransport() {
			return "API unreachable: " + uerr.Message
		}
		return uerr.Message
	}
	return err.Error()
}
