package backend

import (
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// StartRetentionDaemon periodically ages out finished sync logs, abandoned
// export jobs, and old CSV artifacts. Abandoned jobs are the progress-mode
// batches whose client simply stopped polling.
func (b *backend) StartRetentionDaemon(stopCh <-chan struct{}) {
	logrus.Infof("starting retention sweep. Interval: %v, sync log max age: %v, job max age: %v, csv max age: %v",
		b.cfg.RetentionInterval, b.cfg.SyncLogMaxAge, b.cfg.JobMaxAge, b.cfg.CSVMaxAge)
	wait.JitterUntil(b.sweep, b.cfg.RetentionInterval, .002, true, stopCh)
}

func (b *backend) sweep() {
	logsDeleted, err := b.db.PurgeOldSyncLogs(b.cfg.SyncLogMaxAge)
	if err != nil {
		logrus.Errorf("problem purging old sync logs: %v", err)
	}
	logrus.Infof("Sync logs purged: %v", logsDeleted)

	jobsDeleted, err := b.db.PurgeOldExportJobs(b.cfg.JobMaxAge)
	if err != nil {
		logrus.Errorf("problem purging abandoned export jobs: %v", err)
	}
	logrus.Infof("Export jobs purged: %v", jobsDeleted)

	filesDeleted, err := export.PurgeCSVFiles(b.cfg.CSVDir, b.cfg.CSVMaxAge)
	if err != nil {
		logrus.Errorf("problem purging old export files: %v", err)
	}
	logrus.Infof("Export files purged: %v", filesDeleted)
}
