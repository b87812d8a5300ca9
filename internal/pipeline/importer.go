package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/config"
	"prodcat/internal/util"
	"prodcat/internal/validate"
)

// Catalog is the store contract the import consumes. Writes stay pending
// until Commit; Rollback discards pending writes only.
type Catalog interface {
	FindByNameCI(name string) (*internal.Product, error)
	Insert(p internal.Product) (internal.Product, error)
	Update(p internal.Product) error
	Commit() error
	Rollback() error
}

// Emitter pushes events to the session's channel in submission order.
// Delivery to a dropped channel is a no-op.
type Emitter interface {
	Emit(ev internal.Event)
}

type ImportService struct {
	cfg config.Config
	log *zap.Logger
}

func NewImportService(cfg config.Config, log *zap.Logger) *ImportService {
	return &ImportService{cfg: cfg, log: log}
}

// run carries the mutable state of one import session through the
// idle -> validating -> processing -> saving -> complete machine.
type run struct {
	svc       *ImportService
	sessionID string
	catalog   Catalog
	emitter   Emitter

	state   internal.ImportState
	lastPct int

	total   int
	created int
	updated int
	skipped int
	errors  []string
}

// Run drives one import session to a terminal state. It emits every progress
// event, including the terminal complete or error event, and returns the
// summary alongside the fatal error, if any. Pending writes are rolled back
// before an error return.
func (s *ImportService) Run(sessionID string, catalog Catalog, emitter Emitter, rows []map[string]any, policy internal.ResolutionPolicy) (internal.ImportSummary, error) {
	r := &run{
		svc:       s,
		sessionID: sessionID,
		catalog:   catalog,
		emitter:   emitter,
		state:     internal.StateIdle,
		total:     len(rows),
	}
	return r.execute(rows, policy)
}

func (r *run) execute(rows []map[string]any, policy internal.ResolutionPolicy) (internal.ImportSummary, error) {
	r.progress("start", 0, fmt.Sprintf("Starting import of %d rows", r.total), nil)
	r.pace()

	r.state = internal.StateValidating
	r.progress("validating", 10, "Validating rows and checking for duplicates...", nil)
	r.pace()

	normalized := NormalizeRows(rows)

	r.state = internal.StateProcessing
	chunkSize := r.svc.cfg.ImportChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}

	for start := 0; start < r.total; start += chunkSize {
		end := start + chunkSize
		if end > r.total {
			end = r.total
		}

		for _, row := range normalized[start:end] {
			if fatal := r.processRow(row, policy); fatal != nil {
				return r.fail(fatal)
			}
		}

		// Chunk boundary: everything written since the last commit becomes
		// durable or the session dies.
		if err := r.catalog.Commit(); err != nil {
			return r.fail(fmt.Errorf("chunk commit failed: %w", err))
		}
		r.svc.log.Info("import chunk committed",
			zap.String("session", r.sessionID),
			zap.Int("rows_done", end),
			zap.Int("created", r.created),
			zap.Int("updated", r.updated),
			zap.Int("skipped", r.skipped),
			zap.Int("errors", len(r.errors)))

		pct := 10 + int(float64(end)/float64(r.total)*80)
		if pct > 90 {
			pct = 90
		}
		r.progress("processing", pct, fmt.Sprintf("Processed %d of %d rows", end, r.total), r.counts())
	}

	if err := r.catalog.Commit(); err != nil {
		return r.fail(fmt.Errorf("final commit failed: %w", err))
	}

	r.state = internal.StateSaving
	r.progress("saving", 95, "Saving changes...", nil)
	r.pace()

	r.state = internal.StateComplete
	summary := r.summary()
	pct := 100
	r.emitter.Emit(internal.Event{
		Type:     internal.EventComplete,
		Step:     "complete",
		Progress: &pct,
		Message:  "Import completed successfully",
		Data:     summary,
	})
	r.svc.log.Info("import complete",
		zap.String("session", r.sessionID),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.ErrorsCount))
	return summary, nil
}

// processRow handles one row. Structural failures are recorded and the batch
// continues; only errors from the write path itself are fatal.
func (r *run) processRow(row internal.NormalizedRow, policy internal.ResolutionPolicy) error {
	product, rowErr := coerceRow(row)
	if rowErr != "" {
		r.errors = append(r.errors, rowErr)
		return nil
	}

	// Fresh lookup, not the analysis-time snapshot: the catalog may have
	// moved since classification.
	existing, err := r.catalog.FindByNameCI(product.Name)
	if err != nil {
		r.errors = append(r.errors, fmt.Sprintf("Row %d: %v", row.Ordinal, err))
		return nil
	}

	switch {
	case existing == nil:
		if _, err := r.catalog.Insert(product); err != nil {
			return fmt.Errorf("insert failed at row %d: %w", row.Ordinal, err)
		}
		r.created++
	case policy == internal.PolicySkip:
		r.skipped++
		return nil
	case policy == internal.PolicyUpdate:
		existing.Description = product.Description
		existing.Price = product.Price
		existing.Quantity = product.Quantity
		if err := r.catalog.Update(*existing); err != nil {
			return fmt.Errorf("update failed at row %d: %w", row.Ordinal, err)
		}
		r.updated++
	case policy == internal.PolicyCreateNew:
		if _, err := r.catalog.Insert(product); err != nil {
			return fmt.Errorf("insert failed at row %d: %w", row.Ordinal, err)
		}
		r.created++
	}

	// Every tenth written row becomes durable even mid-chunk.
	if written := r.created + r.updated; written > 0 && written%10 == 0 {
		if err := r.catalog.Commit(); err != nil {
			return fmt.Errorf("commit failed at row %d: %w", row.Ordinal, err)
		}
	}
	return nil
}

// coerceRow turns a normalized row into a Product or a structural error
// message. Comma decimal separators are accepted for price, so a raw "1,50"
// stores as exactly 1.50. Fractional quantities are rejected, not truncated.
func coerceRow(row internal.NormalizedRow) (internal.Product, string) {
	name := trimmedField(row, "name")
	if !validate.Name(name) {
		return internal.Product{}, fmt.Sprintf("Row %d: empty name", row.Ordinal)
	}
	description := trimmedField(row, "description")
	if !validate.Description(description) {
		return internal.Product{}, fmt.Sprintf("Row %d: empty description", row.Ordinal)
	}

	price := 0.0
	if value, ok := row.Fields["price"]; ok {
		parsed, err := util.ParseNumber(value)
		if err != nil {
			return internal.Product{}, fmt.Sprintf("Row %d: invalid price", row.Ordinal)
		}
		price = parsed
	}
	if !validate.Price(price) {
		return internal.Product{}, fmt.Sprintf("Row %d: negative price", row.Ordinal)
	}

	quantity := 0
	if value, ok := row.Fields["quantity"]; ok {
		parsed, err := util.ParseQuantity(value)
		if err != nil {
			return internal.Product{}, fmt.Sprintf("Row %d: invalid quantity", row.Ordinal)
		}
		quantity = parsed
	}
	if !validate.Quantity(quantity) {
		return internal.Product{}, fmt.Sprintf("Row %d: negative quantity", row.Ordinal)
	}

	return internal.Product{Name: name, Description: description, Price: price, Quantity: quantity}, ""
}

func trimmedField(row internal.NormalizedRow, key string) string {
	value, ok := row.Fields[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(util.CellString(value))
}

func (r *run) fail(err error) (internal.ImportSummary, error) {
	r.state = internal.StateError
	if rbErr := r.catalog.Rollback(); rbErr != nil {
		r.svc.log.Warn("rollback failed", zap.String("session", r.sessionID), zap.Error(rbErr))
	}
	r.emitter.Emit(internal.Event{Type: internal.EventError, Message: err.Error()})
	r.svc.log.Error("import failed", zap.String("session", r.sessionID), zap.Error(err))
	return r.summary(), err
}

// progress emits one event, clamping the percentage so it never regresses
// within a session.
func (r *run) progress(step string, pct int, message string, data any) {
	if pct < r.lastPct {
		pct = r.lastPct
	}
	r.lastPct = pct
	p := pct
	r.emitter.Emit(internal.Event{
		Type:     internal.EventProgress,
		Step:     step,
		Progress: &p,
		Message:  message,
		Data:     data,
	})
}

func (r *run) counts() internal.ProgressCounts {
	return internal.ProgressCounts{
		Created: r.created,
		Updated: r.updated,
		Skipped: r.skipped,
		Errors:  len(r.errors),
	}
}

func (r *run) summary() internal.ImportSummary {
	maxReported := r.svc.cfg.ImportMaxReportedErrors
	if maxReported <= 0 {
		maxReported = 10
	}
	reported := r.errors
	if len(reported) > maxReported {
		reported = reported[:maxReported]
	}
	if reported == nil {
		reported = []string{}
	}
	return internal.ImportSummary{
		TotalRows:   r.total,
		Created:     r.created,
		Updated:     r.updated,
		Skipped:     r.skipped,
		ErrorsCount: len(r.errors),
		Errors:      reported,
	}
}

// pace inserts the perceptibility delay at stage boundaries. Zero in tests.
func (r *run) pace() {
	if r.svc.cfg.ImportStageDelayMs > 0 {
		time.Sleep(time.Duration(r.svc.cfg.ImportStageDelayMs) * time.Millisecond)
	}
}
