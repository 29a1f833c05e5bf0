package domain

import "time"

type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportHashing    ImportStatus = "hashing"
	ImportUploading  ImportStatus = "uploading"
	ImportExtracting ImportStatus = "extracting"
	ImportReady      ImportStatus = "ready"
	ImportSaving     ImportStatus = "saving"
	ImportSaved      ImportStatus = "saved"
	ImportDuplicate  ImportStatus = "duplicate"
	ImportError      ImportStatus = "error"
)

// Terminal reports whether no further processing happens for the item.
func (s ImportStatus) Terminal() bool {
	return s == ImportSaved || s == ImportDuplicate || s == ImportError
}

type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	ModTime     *time.Time
}

// Draft is a prepared but not yet saved import.
type Draft struct {
	Filename      string       `json:"filename"`
	Status        ImportStatus `json:"status"`
	ImageHash     string       `json:"image_hash"`
	ImageRef      string       `json:"image_ref,omitempty"`
	Extraction    Extraction   `json:"extraction"`
	RawExtraction string       `json:"raw_extraction,omitempty"`
	Parsed        bool         `json:"parsed"`
	NeedsReview   bool         `json:"needs_review"`
	Warning       string       `json:"warning,omitempty"`
	DuplicateOf   string       `json:"duplicate_of,omitempty"`
}

type BatchItem struct {
	Index      int          `json:"index"`
	Filename   string       `json:"filename"`
	Status     ImportStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	SnapshotID string       `json:"snapshot_id,omitempty"`
	Draft      *Draft       `json:"draft,omitempty"`
}

type Batch struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	AutoSave  bool        `json:"auto_save"`
	CreatedAt time.Time   `json:"created_at"`
	Done      bool        `json:"done"`
	Items     []BatchItem `json:"items"`
}

// Settled reports whether every item reached a terminal status, so nothing in
// the batch is left to save.
func (b Batch) Settled() bool {
	for _, item := range b.Items {
		if !item.Status.Terminal() {
			return false
		}
	}
	return true
}

// Counts tallies the batch items per status.
func (b Batch) Counts() map[ImportStatus]int {
	out := make(map[ImportStatus]int, len(b.Items))
	for _, item := range b.Items {
		out[item.Status]++
	}
	return out
}

type RestoreResult struct {
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

func (f ExportFormat) Valid() bool {
	switch f {
	case ExportJSON, ExportYAML, ExportCSV, ExportXLSX:
		return true
	default:
		return false
	}
}

type SnapshotEventType string

const (
	SnapshotSaved   SnapshotEventType = "saved"
	SnapshotDeleted SnapshotEventType = "deleted"
)

type SnapshotEvent struct {
	Type       SnapshotEventType `json:"type"`
	SnapshotID string            `json:"snapshot_id"`
	UserID     string            `json:"user_id"`
	ScreenType ScreenType        `json:"screen_type"`
	OccurredAt time.Time         `json:"occurred_at"`
}
