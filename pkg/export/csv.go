package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
)

// csvHeader is the fixed export header; downstream tooling parses it by
// position, so the order never changes.
var csvHeader = []string{
	"Domain Name", "Domain ID", "Status",
	"NS1", "NS2", "NS3", "NS4", "NS5",
	"Notes", "Batch Number",
}

// writeCSV materializes one batch's outcomes, in processing order, into a
// uniquely timestamped file under dir. Error rows carry the literal ERROR in
// the NS1 column and the reason in NS2.
func writeCSV(dir, tenant string, batchNumber int, outcomes []model.DomainOutcome) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("domain_export_%s_batch%d_%s.csv", tenant, batchNumber, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}

	batch := strconv.Itoa(batchNumber)
	for _, o := range outcomes {
		row := []string{o.DomainName, o.DomainID, string(o.Status)}
		if o.Success {
			ns := o.Nameservers
			if ns == nil {
				ns = &model.NameserverSet{}
			}
			row = append(row, ns.NS1, ns.NS2, ns.NS3, ns.NS4, ns.NS5, "Success", batch)
		} else {
			row = append(row, "ERROR", o.Error, "", "", "", "Failed", batch)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// ListCSVFiles returns the finished export artifacts under dir, newest first.
// The directory is shared across tenants, so a non-empty tenant restricts the
// listing to that tenant's files by their filename prefix. An empty tenant
// lists everything.
func ListCSVFiles(dir, tenant string) ([]model.CSVFileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := ""
	if tenant != "" {
		prefix = fmt.Sprintf("domain_export_%s_batch", tenant)
	}

	var files []model.CSVFileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, model.CSVFileInfo{
			Filename: e.Name(),
			Size:     info.Size(),
			Date:     info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Date.After(files[j].Date)
	})
	return files, nil
}

// PurgeCSVFiles deletes artifacts under dir older than maxAge and returns how
// many were removed.
func PurgeCSVFiles(dir string, maxAge time.Duration) (int, error) {
	files, err := ListCSVFiles(dir, "")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for _, f := range files {
		if f.Date.Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, f.Filename)); err != nil {
				return purged, err
			}
			purged++
		}
	}
	return purged, nil
}
