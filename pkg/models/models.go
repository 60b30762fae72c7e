package models

import (
	"fmt"
	"time"
)

// EntityID is the stable token identifying one listing entry, derived from
// its detail-page URL (e.g. "F596917"). The same URL always yields the same
// EntityID, within a run and across runs.
type EntityID string

// IndexPage is one enumerated state of the paginated listing: the ordinal
// page number, the URL that produced it, and the entity ids visible on it.
// Captured once per advance and never mutated afterwards.
type IndexPage struct {
	Number   int
	URL      string
	Entities []EntityID
}

// Mechanism records which extraction strategy produced an artifact.
type Mechanism string

const (
	MechanismTrigger    Mechanism = "trigger"
	MechanismDirectLink Mechanism = "direct-link"
	MechanismText       Mechanism = "text-capture"
	MechanismNone       Mechanism = "none"
)

// RecordStatus is the status tag written to the inventory for one attempt.
type RecordStatus string

const (
	StatusDownloaded    RecordStatus = "downloaded"
	StatusTextCaptured  RecordStatus = "text_captured"
	StatusNoFile        RecordStatus = "no_file_found"
	StatusDownloadError RecordStatus = "download_error"
	StatusNavError      RecordStatus = "navigation_error"
)

// HTTPStatus returns the status tag for a non-success fetch, e.g. "http_503".
func HTTPStatus(code int) RecordStatus {
	return RecordStatus(fmt.Sprintf("http_%d", code))
}

// DetailMeta holds best-effort metadata scraped from a detail page.
// All fields may be empty.
type DetailMeta struct {
	Title     string
	Submitter string
	Date      string
}

// InventoryRecord is one row of the crawl inventory: one per
// (entity, artifact) attempt, fanned out when a detail page carries several
// files. Records are append-only and ordered by processing time, so the
// inventory doubles as the audit log of every decision the run made.
type InventoryRecord struct {
	EntityID  EntityID
	IndexPage int
	DetailURL string
	FileURL   string
	LocalPath string
	Status    RecordStatus
	Mechanism Mechanism
	Meta      DetailMeta
}

// Saved reports whether the record points at a stored artifact.
func (r InventoryRecord) Saved() bool {
	return r.LocalPath != "" &&
		(r.Status == StatusDownloaded || r.Status == StatusTextCaptured)
}

// RunSummary aggregates one crawl run for progress reporting and the final
// markdown report.
type RunSummary struct {
	StartURL     string
	StartedAt    time.Time
	Elapsed      time.Duration
	PagesWalked  int
	EntitiesNew  int
	EntitiesSkip int
	Records      int
	Downloaded   int
	TextCaptured int
	Failed       int
	StopReason   string
}
