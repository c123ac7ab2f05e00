package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lead-harvester/models"
)

var agentHeader = []string{
	"created_at", "agency_name", "title", "price", "location", "url", "contact", "reason", "fingerprint",
}

// CSVArchive appends agent listings to a CSV file. The header is written
// only when the file is new or empty. It is safe for concurrent use.
type CSVArchive struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

// NewCSVArchive opens path for appending. Intermediate directories are
// created automatically.
func NewCSVArchive(path string) (*CSVArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(agentHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
	}

	return &CSVArchive{file: f, writer: w, now: time.Now}, nil
}

// Append writes one row and flushes it.
func (c *CSVArchive) Append(a *models.AgentListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	created := a.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	row := []string{
		created.UTC().Format(time.RFC3339),
		a.AgencyName,
		a.Title,
		a.Price,
		a.Location,
		a.URL,
		a.Contact,
		a.Reason,
		a.Fingerprint,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVArchive) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
