package model

import "strings"

const (
	StatusActive              DomainStatus = "Active"
	StatusPending             DomainStatus = "Pending"
	StatusSuspended           DomainStatus = "Suspended"
	StatusCancelled           DomainStatus = "Cancelled"
	StatusExpired             DomainStatus = "Expired"
	StatusTerminated          DomainStatus = "Terminated"
	StatusPendingTransfer     DomainStatus = "Pending Transfer"
	StatusPendingRegistration DomainStatus = "Pending Registration"
	StatusOther               DomainStatus = "Other"
)

type DomainStatus string

// NormalizeStatus maps whatever status string the upstream hands back onto one
// of the known values. Unknown strings collapse to StatusOther rather than
// failing the record.
func NormalizeStatus(s string) DomainStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive
	case "pending":
		return StatusPending
	case "suspended":
		return StatusSuspended
	case "cancelled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	case "terminated":
		return StatusTerminated
	case "pending transfer", "pendingtransfer":
		return StatusPendingTransfer
	case "pending registration", "pendingregistration":
		return StatusPendingRegistration
	}
	return StatusOther
}

// Domain is one upstream domain record, normalized. Identity is ExternalID
// scoped to a tenant; the upstream system owns this data.
type Domain struct {
	ExternalID       string       `json:"id"`
	Name             string       `json:"domain"`
	Status           DomainStatus `json:"status"`
	Registrar        string       `json:"registrar,omitempty"`
	ExpiryDate       string       `json:"expirydate,omitempty"`
	RegistrationDate string       `json:"regdate,omitempty"`
	Amount           string       `json:"amount,omitempty"`
	Currency         string       `json:"currency,omitempty"`
	Notes            string       `json:"notes,omitempty"`
}

// NameserverSet holds up to five nameservers for a domain. Fetched lazily,
// never held past a single orchestrator run.
type NameserverSet struct {
	DomainExternalID string `json:"domainId,omitempty"`
	NS1              string `json:"ns1,omitempty"`
	NS2              string `json:"ns2,omitempty"`
	NS3              string `json:"ns3,omitempty"`
	NS4              string `json:"ns4,omitempty"`
	NS5              string `json:"ns5,omitempty"`
}

// PageResult is one offset-addressed slice of the inventory as the upstream
// returned it, no client-side pagination applied.
type PageResult struct {
	Domains      []Domain `json:"domains"`
	TotalResults int      `json:"totalResults"`
	Offset       int      `json:"offset"`
	Limit        int      `json:"limit"`
}

// LastPage reports whether this page signals the end of the inventory: a page
// shorter than the requested limit means nothing comes after it.
func (p PageResult) LastPage() bool {
	return len(p.Domains) < p.Limit
}
