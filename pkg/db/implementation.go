package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type database struct {
	db *gorm.DB
}

// New creates a new database connection
func New(ctx context.Context, dialect string, dsn string, config *gorm.Config) (Database, error) {
	if config == nil {
		config = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}

	var db *gorm.DB
	var err error

	if dialect == "sqlite" {
		db, err = gorm.Open(sqlite.Open(dsn), config)
	} else if dialect == "mysql" {
		db, err = gorm.Open(mysql.Open(dsn), config)
	} else {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)

	if err := db.AutoMigrate(
		&Tenant{},
		&DomainRecord{},
		&SyncLog{},
		&ExportJob{},
	); err != nil {
		return nil, err
	}

	d := &database{
		db: db,
	}
	return d, nil
}

func (d *database) CreateTenant(tenant *Tenant) error {
	sql := d.db.Create(tenant)
	return sql.Error
}

func (d *database) GetTenantBySlug(slug string) (Tenant, error) {
	tenant := Tenant{}
	sql := d.db.Where("slug = ?", slug).Limit(1).Find(&tenant)
	if sql.Error != nil {
		return tenant, sql.Error
	}
	if tenant.ID == 0 {
		return tenant, ErrTenantNotFound
	}
	return tenant, nil
}

func (d *database) ListTenants() ([]Tenant, error) {
	var tenants []Tenant
	sql := d.db.Order("slug").Find(&tenants)
	return tenants, sql.Error
}

func (d *database) UpdateTenantCredentials(slug, endpoint, identifier, secret string, insecureSkipVerify bool) error {
	sql := d.db.Model(&Tenant{}).Where("slug = ?", slug).Updates(map[string]interface{}{
		"endpoint":             endpoint,
		"identifier":           identifier,
		"secret":               secret,
		"insecure_skip_verify": insecureSkipVerify,
	})
	if sql.Error != nil {
		return sql.Error
	}
	if sql.RowsAffected == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (d *database) UpsertDomain(tenantID uint, dom model.Domain) (bool, error) {
	existing, err := d.getDomain(tenantID, dom.ExternalID)
	if err != nil {
		return false, err
	}

	if existing.ID == 0 {
		record := &DomainRecord{
			TenantID:         tenantID,
			ExternalID:       dom.ExternalID,
			Name:             dom.Name,
			Status:           string(dom.Status),
			Registrar:        dom.Registrar,
			ExpiryDate:       dom.ExpiryDate,
			RegistrationDate: dom.RegistrationDate,
			Amount:           dom.Amount,
			Currency:         dom.Currency,
			Notes:            dom.Notes,
			LastSynced:       time.Now(),
		}
		sql := d.db.Create(record)
		return true, sql.Error
	}

	existing.Name = dom.Name
	existing.Status = string(dom.Status)
	existing.Registrar = dom.Registrar
	existing.ExpiryDate = dom.ExpiryDate
	existing.RegistrationDate = dom.RegistrationDate
	existing.Amount = dom.Amount
	existing.Currency = dom.Currency
	existing.Notes = dom.Notes
	existing.LastSynced = time.Now()

	sql := d.db.Save(&existing)
	return false, sql.Error
}

func (d *database) UpsertNameservers(tenantID uint, externalID string, ns model.NameserverSet) error {
	sql := d.db.Model(&DomainRecord{}).
		Where("tenant_id = ? and external_id = ?", tenantID, externalID).
		Updates(map[string]interface{}{
			"ns1": ns.NS1,
			"ns2": ns.NS2,
			"ns3": ns.NS3,
			"ns4": ns.NS4,
			"ns5": ns.NS5,
		})
	if sql.Error != nil {
		return sql.Error
	}
	if sql.RowsAffected == 0 {
		return fmt.Errorf("no mirrored domain for external id %s", externalID)
	}
	return nil
}

func (d *database) ListDomains(tenantID uint, opts ListOptions) ([]DomainRecord, int64, error) {
	query := d.db.Model(&DomainRecord{}).Where("tenant_id = ?", tenantID)
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Search != "" {
		query = query.Where("lower(name) LIKE ?", "%"+strings.ToLower(opts.Search)+"%")
	}

	var total int64
	if sql := query.Count(&total); sql.Error != nil {
		return nil, 0, sql.Error
	}

	if opts.PerPage > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * opts.PerPage).Limit(opts.PerPage)
	}

	var records []DomainRecord
	sql := query.Order("name").Find(&records)
	return records, total, sql.Error
}

func (d *database) CountDomainsByStatus(tenantID uint) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var counts []statusCount
	sql := d.db.Model(&DomainRecord{}).
		Select("status, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Find(&counts)
	if sql.Error != nil {
		return nil, sql.Error
	}

	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Status] = c.Count
	}
	return out, nil
}

func (d *database) CreateSyncLog(log *SyncLog) error {
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	if log.Status == "" {
		log.Status = SyncStatusRunning
	}
	sql := d.db.Create(log)
	return sql.Error
}

func (d *database) CloseSyncLog(log *SyncLog) error {
	now := time.Now()
	log.CompletedAt = &now
	sql := d.db.Save(log)
	return sql.Error
}

func (d *database) LatestSyncLog(tenantID uint) (SyncLog, error) {
	log := SyncLog{}
	sql := d.db.Where("tenant_id = ?", tenantID).Order("started_at desc").Limit(1).Find(&log)
	return log, sql.Error
}

func (d *database) SaveExportJob(job *ExportJob) error {
	existing := ExportJob{}
	sql := d.db.Where("tenant_slug = ? and batch_number = ?", job.TenantSlug, job.BatchNumber).Limit(1).Find(&existing)
	if sql.Error != nil {
		return sql.Error
	}
	if existing.ID != 0 {
		job.ID = existing.ID
		job.CreatedAt = existing.CreatedAt
	}
	return d.db.Save(job).Error
}

func (d *database) GetExportJob(tenantSlug string, batchNumber int) (ExportJob, error) {
	job := ExportJob{}
	sql := d.db.Where("tenant_slug = ? and batch_number = ?", tenantSlug, batchNumber).Limit(1).Find(&job)
	return job, sql.Error
}

func (d *database) DeleteExportJob(tenantSlug string, batchNumber int) error {
	sql := d.db.Where("tenant_slug = ? and batch_number = ?", tenantSlug, batchNumber).Delete(&ExportJob{})
	return sql.Error
}

func (d *database) PurgeOldSyncLogs(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	sql := d.db.Where("started_at < ?", cutoff).Delete(&SyncLog{})
	return sql.RowsAffected, sql.Error
}

func (d *database) PurgeOldExportJobs(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	sql := d.db.Where("updated_at < ?", cutoff).Delete(&ExportJob{})
	return sql.RowsAffected, sql.Error
}

func (d *database) getDomain(tenantID uint, externalID string) (DomainRecord, error) {
	record := DomainRecord{}
	sql := d.db.Where("tenant_id = ? and external_id = ?", tenantID, externalID).Limit(1).Find(&record)
	if sql.Error != nil {
		return record, sql.Error
	}
	return record, nil
}
