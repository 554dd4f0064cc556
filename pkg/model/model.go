package model

import "time"

const (
	JobStatusReady      JobStatus = "ready"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

type JobStatus string

// DomainOutcome is the per-domain result of one export step. Appended exactly
// once per domain per batch job; immutable once appended.
type DomainOutcome struct {
	DomainName  string         `json:"domainName"`
	DomainID    string         `json:"domainId"`
	Status      DomainStatus   `json:"status"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Nameservers *NameserverSet `json:"nameservers,omitempty"`
}

// UpdateResult is the per-domain result of one nameserver update attempt.
type UpdateResult struct {
	Domain  string `json:"domain"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SyncReport summarizes one mirror sync batch.
type SyncReport struct {
	BatchNumber      int    `json:"batchNumber"`
	DomainsFound     int    `json:"domainsFound"`
	DomainsProcessed int    `json:"domainsProcessed"`
	DomainsAdded     int    `json:"domainsAdded"`
	DomainsUpdated   int    `json:"domainsUpdated"`
	Errors           int    `json:"errors"`
	LastBatch        bool   `json:"lastBatch"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

// StartExportResponse answers the start_export action.
type StartExportResponse struct {
	Status       JobStatus `json:"status"`
	JobID        string    `json:"jobId"`
	BatchNumber  int       `json:"batchNumber"`
	TotalDomains int       `json:"totalDomains"`
}

// ProgressResponse answers one progress action poll. When Status is
// JobStatusComplete the file fields are populated and the per-domain fields
// are zero.
type ProgressResponse struct {
	Status       JobStatus `json:"status"`
	BatchNumber  int       `json:"batchNumber"`
	CurrentIndex int       `json:"currentIndex,omitempty"`
	TotalDomains int       `json:"totalDomains,omitempty"`
	Percent      float64   `json:"percent,omitempty"`
	DomainName   string    `json:"domainName,omitempty"`
	DomainID     string    `json:"domainId,omitempty"`
	DomainStatus string    `json:"domainStatus,omitempty"`
	Message      string    `json:"message,omitempty"`

	FilePath       string `json:"filePath,omitempty"`
	TotalProcessed int    `json:"totalProcessed,omitempty"`
	Successful     int    `json:"successful,omitempty"`
	Errors         int    `json:"errors,omitempty"`
}

// CSVFileInfo describes one finished export artifact.
type CSVFileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Date     time.Time `json:"date"`
}

type CSVFilesResponse struct {
	Files      []CSVFileInfo `json:"files"`
	TotalFiles int           `json:"total_files"`
}

// UpdateNameserversRequest applies one nameserver pair to a list of domains.
// Empty NS1/NS2 fall back to the tenant's configured defaults.
type UpdateNameserversRequest struct {
	Domains []string `json:"domains"`
	NS1     string   `json:"ns1,omitempty"`
	NS2     string   `json:"ns2,omitempty"`
}

type UpdateNameserversResponse struct {
	Results      []UpdateResult `json:"results"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
}

// TenantResponse answers tenant registration. The token is shown exactly
// once; only its hash is kept.
type TenantResponse struct {
	Slug  string `json:"slug"`
	Token string `json:"token,omitempty"`
}

type ErrorResponse struct {
	Status  int         `json:"status,omitempty"`
	Message string      `json:"msg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
