package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// Tenant owns one set of upstream credentials plus its own cache and job
// namespace. The API token is stored as a bcrypt hash only.
type Tenant struct {
	gorm.Model
	Slug               string `gorm:"uniqueIndex"`
	Name               string
	TokenHash          string
	Endpoint           string
	Identifier         string
	Secret             string
	DefaultNS1         string
	DefaultNS2         string
	InsecureSkipVerify bool
}

// DomainRecord is the local mirror of one upstream domain. Identity is
// ExternalID scoped to the tenant. Nameservers are denormalized onto the row
// because they are read together with it on every dashboard view.
type DomainRecord struct {
	ID         uint   `gorm:"primarykey"`
	TenantID   uint   `gorm:"uniqueIndex:idx_tenant_domain,priority:1"`
	ExternalID string `gorm:"uniqueIndex:idx_tenant_domain,priority:2"`

	Name             string `gorm:"index"`
	Status           string `gorm:"index"`
	Registrar        string
	ExpiryDate       string
	RegistrationDate string
	Amount           string
	Currency         string
	Notes            string

	NS1 string
	NS2 string
	NS3 string
	NS4 string
	NS5 string

	CreatedAt  time.Time
	LastSynced time.Time
}

// SyncLog is one mirror sync run. Created in running state when the batch
// opens, closed exactly once with final counts; only the retention sweep ever
// deletes one.
type SyncLog struct {
	ID       uint `gorm:"primarykey"`
	TenantID uint `gorm:"index"`

	BatchNumber      int
	DomainsFound     int
	DomainsProcessed int
	DomainsAdded     int
	DomainsUpdated   int
	Errors           int

	Status       string
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// ExportJob persists progress-mode export state so a batch survives a process
// restart. The domain page and accumulated outcomes are intentionally
// denormalized as JSON text; nothing queries inside them.
type ExportJob struct {
	ID          uint   `gorm:"primarykey"`
	JobID       string `gorm:"index"`
	TenantSlug  string `gorm:"uniqueIndex:idx_job_tenant_batch,priority:1"`
	BatchNumber int    `gorm:"uniqueIndex:idx_job_tenant_batch,priority:2"`

	BatchSize    int
	BatchOffset  int
	TotalInBatch int
	CurrentIndex int
	Status       string

	Domains  string `gorm:"type:text"`
	Outcomes string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
