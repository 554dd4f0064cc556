package nsupdate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	AuditSuccess = "SUCCESS"
	AuditFailed  = "FAILED"
)

// AuditEvent is one nameserver-update attempt. Events are append-only; normal
// operation never mutates or deletes them.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// LegacyLine renders the event in the flat display format the admin panel has
// always shown. Display-only: the durable format is one JSON object per line,
// so nothing ever has to re-parse this string.
func (e AuditEvent) LegacyLine() string {
	return fmt.Sprintf("%s - %s - %s - %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Domain, e.Status, e.Message)
}

// AuditLog is a per-tenant durable event log, one JSON object per line.
type AuditLog struct {
	mu  sync.Mutex
	dir string
}

func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{dir: dir}
}

// Append writes one event to the tenant's log, creating it on first use.
func (l *AuditLog) Append(tenant string, ev AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path(tenant), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Close()
}

// Read returns the tenant's events in append order. With limit > 0 only the
// most recent limit events are returned.
func (l *AuditLog) Read(tenant string, limit int) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path(tenant))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			// A torn final line from a crashed writer is skipped, not fatal.
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (l *AuditLog) path(tenant string) string {
	return filepath.Join(l.dir, tenant+"_ns_updates.log")
}
