package internal

// Product is one catalog record. ID is assigned by the store on insert.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// RawRow is one input record as received: a 1-based ordinal that stays stable
// for the whole import, plus the raw cells keyed by column label.
type RawRow struct {
	Ordinal int
	Cells   map[string]any
}

// NormalizedRow is a RawRow after header canonicalization. Fields are keyed
// by canonical names (trimmed, lower-cased, whitespace collapsed to "_").
type NormalizedRow struct {
	Ordinal int
	Fields  map[string]any
}

type RowStatus string

const (
	RowNew                RowStatus = "new"
	RowDuplicateInBatch   RowStatus = "duplicate_in_batch"
	RowDuplicateInCatalog RowStatus = "duplicate_in_catalog"
)

// Classification labels one normalized row against the catalog snapshot and
// the rows seen earlier in the same batch.
type Classification struct {
	Status RowStatus
	// CatalogID references the colliding record when Status is
	// duplicate_in_catalog.
	CatalogID int64
	// EarlierOrdinal references the first-seen row when Status is
	// duplicate_in_batch.
	EarlierOrdinal int
}

type ResolutionPolicy string

const (
	PolicySkip      ResolutionPolicy = "skip"
	PolicyUpdate    ResolutionPolicy = "update"
	PolicyCreateNew ResolutionPolicy = "create_new"
)

func (p ResolutionPolicy) Valid() bool {
	switch p {
	case PolicySkip, PolicyUpdate, PolicyCreateNew:
		return true
	}
	return false
}

type ImportState string

const (
	StateIdle       ImportState = "idle"
	StateValidating ImportState = "validating"
	StateProcessing ImportState = "processing"
	StateSaving     ImportState = "saving"
	StateComplete   ImportState = "complete"
	StateError      ImportState = "error"
)

// SheetReport is the validation result for one sheet of an uploaded workbook.
type SheetReport struct {
	Name           string   `json:"name"`
	Rows           int      `json:"rows"`
	Columns        []string `json:"columns"`
	IsValid        bool     `json:"is_valid"`
	Errors         []string `json:"errors"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// WorkbookReport aggregates sheet validation. SelectedSheet is set only when
// exactly one sheet validates.
type WorkbookReport struct {
	Sheets        []SheetReport `json:"sheets"`
	SelectedSheet *string       `json:"selected_sheet"`
	TotalSheets   int           `json:"total_sheets"`
	ValidSheets   []string      `json:"valid_sheets"`
}

// ProgressCounts is the running-counter payload attached to progress events.
type ProgressCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// ImportSummary is the terminal payload of a completed import. Errors carries
// at most the first reported messages; ErrorsCount is the full count.
type ImportSummary struct {
	TotalRows   int      `json:"total_rows"`
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	ErrorsCount int      `json:"errors_count"`
	Errors      []string `json:"errors"`
}

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventPong     EventType = "pong"
)

// Event is one outbound message on the upload channel. Progress is a pointer
// so that pong and error events omit it while a genuine 0% survives encoding.
type Event struct {
	Type     EventType `json:"type"`
	Step     string    `json:"step,omitempty"`
	Progress *int      `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	Data     any       `json:"data,omitempty"`
}
