package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"prodcat/internal"
	"prodcat/internal/util"
)

var reSpaces = regexp.MustCompile(`\s+`)

// RequiredColumns are the canonical headers a sheet must carry to be
// importable.
var RequiredColumns = []string{"name", "description", "price", "quantity"}

// CanonicalizeHeader maps a raw column label to its canonical field name:
// trimmed, lower-cased, inner whitespace collapsed to a single underscore.
func CanonicalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	return reSpaces.ReplaceAllString(s, "_")
}

// NormalizeRows canonicalizes every row's keys and injects a stable 1-based
// ordinal. When two raw labels collapse to the same canonical name the first
// occupied cell wins.
func NormalizeRows(rows []map[string]any) []internal.NormalizedRow {
	out := make([]internal.NormalizedRow, 0, len(rows))
	for i, row := range rows {
		fields := make(map[string]any, len(row))
		for label, value := range row {
			key := CanonicalizeHeader(label)
			if prev, taken := fields[key]; taken && prev != nil {
				continue
			}
			fields[key] = value
		}
		out = append(out, internal.NormalizedRow{Ordinal: i + 1, Fields: fields})
	}
	return out
}

// ValidateSheet checks one sheet's canonical columns and rows. Numeric checks
// on price/quantity are advisory here: malformed cells are counted, and the
// per-row rejection happens later at commit time.
func ValidateSheet(name string, columns []string, rows []internal.NormalizedRow) internal.SheetReport {
	report := internal.SheetReport{
		Name:    name,
		Rows:    len(rows),
		Columns: columns,
		Errors:  []string{},
	}

	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, required := range RequiredColumns {
		if !have[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		report.MissingColumns = missing
		report.Errors = append(report.Errors, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	if len(rows) == 0 {
		report.Errors = append(report.Errors, "sheet is empty")
	}

	if have["price"] {
		invalid := 0
		for _, row := range rows {
			if !util.IsNumeric(row.Fields["price"]) {
				invalid++
			}
		}
		if invalid > 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%d rows with invalid prices", invalid))
		}
	}

	if have["quantity"] {
		invalid := 0
		for _, row := range rows {
			if !util.IsDigitString(row.Fields["quantity"]) {
				invalid++
			}
		}
		if invalid > 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%d rows with invalid quantities", invalid))
		}
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

// SelectSheet applies the auto-selection heuristic: when exactly one sheet of
// the workbook validates, it becomes the active sheet; otherwise the caller
// must disambiguate.
func SelectSheet(reports []internal.SheetReport) (selected *string, valid []string) {
	valid = []string{}
	for _, r := range reports {
		if r.IsValid {
			valid = append(valid, r.Name)
		}
	}
	if len(valid) == 1 {
		name := valid[0]
		selected = &name
	}
	return selected, valid
}
