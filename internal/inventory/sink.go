// Package inventory persists the crawl's record stream as CSV and renders
// run reports. The CSV file is the run's source of truth: each record is
// flushed as soon as it is written, and a later run reads the same file to
// seed its seen-set for resume.
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/pkg/models"
)

var header = []string{
	"entity_id", "index_page", "detail_url", "file_url", "local_path",
	"status", "mechanism", "title", "submitter", "date",
}

// Sink appends inventory records to a CSV file. Safe for use from a
// single writer; the mutex guards against accidental sharing.
type Sink struct {
	mu    sync.Mutex
	file  *os.File
	w     *csv.Writer
	count int
}

// Open creates the inventory file, or appends to an existing one on
// resume. The header is written only for a fresh file.
func Open(path string) (*Sink, error) {
	info, err := os.Stat(path)
	fresh := err != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open inventory file: %w", err)
	}
	s := &Sink{file: f, w: csv.NewWriter(f)}
	if fresh {
		if err := s.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write inventory header: %w", err)
		}
		s.w.Flush()
	}
	return s, nil
}

// Write appends one record and flushes it to disk, so an interrupted run
// loses at most the record being written.
func (s *Sink) Write(rec models.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		string(rec.EntityID),
		strconv.Itoa(rec.IndexPage),
		rec.DetailURL,
		rec.FileURL,
		rec.LocalPath,
		string(rec.Status),
		string(rec.Mechanism),
		rec.Meta.Title,
		rec.Meta.Submitter,
		rec.Meta.Date,
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write inventory record: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush inventory record: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of records written by this sink.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// ReadRecords loads all records from an inventory file. Rows shorter than
// the schema are skipped with a warning rather than aborting the read, so
// a truncated final row from a killed run does not block resume.
func ReadRecords(path string) ([]models.InventoryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []models.InventoryRecord
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping malformed inventory row")
			continue
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == header[0] {
				continue
			}
		}
		if len(row) < len(header) {
			log.Warn().Str("path", path).Int("fields", len(row)).Msg("Skipping short inventory row")
			continue
		}
		pageNo, _ := strconv.Atoi(row[1])
		records = append(records, models.InventoryRecord{
			EntityID:  models.EntityID(row[0]),
			IndexPage: pageNo,
			DetailURL: row[2],
			FileURL:   row[3],
			LocalPath: row[4],
			Status:    models.RecordStatus(row[5]),
			Mechanism: models.Mechanism(row[6]),
			Meta: models.DetailMeta{
				Title:     row[7],
				Submitter: row[8],
				Date:      row[9],
			},
		})
	}
	return records, nil
}

// ReadSeen returns the entity ids present in an inventory file. A missing
// file is an empty set: a first run resumes from nothing.
func ReadSeen(path string) (map[models.EntityID]struct{}, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[models.EntityID]struct{}{}, nil
	}
	records, err := ReadRecords(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[models.EntityID]struct{}, len(records))
	for _, rec := range records {
		seen[rec.EntityID] = struct{}{}
	}
	return seen, nil
}
