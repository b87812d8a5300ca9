package pipeline

import (
	"testing"

	"prodcat/internal"
)

func TestCanonicalizeHeader(t *testing.T) {
	cases := map[string]string{
		"  Name ":        "name",
		"Unit   Price":   "unit_price",
		"QUANTITY":       "quantity",
		"Desc\tription":  "desc_ription",
	}
	for in, want := range cases {
		if got := CanonicalizeHeader(in); got != want {
			t.Fatalf("CanonicalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRowsInjectsOrdinals(t *testing.T) {
	rows := NormalizeRows([]map[string]any{
		{" Name ": "Bolt", "Price": "1"},
		{" Name ": "Nut", "Price": "2"},
	})
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0].Ordinal != 1 || rows[1].Ordinal != 2 {
		t.Fatalf("ordinals: %d %d", rows[0].Ordinal, rows[1].Ordinal)
	}
	if rows[0].Fields["name"] != "Bolt" || rows[1].Fields["price"] != "2" {
		t.Fatalf("fields not canonicalized: %+v", rows)
	}
}

func TestValidateSheetMissingColumns(t *testing.T) {
	report := ValidateSheet("Sheet1", []string{"name", "price"}, []internal.NormalizedRow{
		{Ordinal: 1, Fields: map[string]any{"name": "Bolt", "price": "1"}},
	})
	if report.IsValid {
		t.Fatal("sheet with missing columns must be invalid")
	}
	if len(report.MissingColumns) != 2 || report.MissingColumns[0] != "description" || report.MissingColumns[1] != "quantity" {
		t.Fatalf("missing columns: %v", report.MissingColumns)
	}
}

func TestValidateSheetAdvisoryNumericChecks(t *testing.T) {
	rows := []internal.NormalizedRow{
		{Ordinal: 1, Fields: map[string]any{"name": "A", "description": "d", "price": "1,50", "quantity": "3"}},
		{Ordinal: 2, Fields: map[string]any{"name": "B", "description": "d", "price": "oops", "quantity": "3.0"}},
	}
	report := ValidateSheet("Sheet1", []string{"name", "description", "price", "quantity"}, rows)
	// Malformed cells are counted, and the sheet is flagged, but per-row
	// rejection only happens at commit time.
	if report.IsValid {
		t.Fatal("expected advisory errors")
	}
	if len(report.Errors) != 2 {
		t.Fatalf("errors: %v", report.Errors)
	}
	if report.Errors[0] != "1 rows with invalid prices" {
		t.Fatalf("price error: %q", report.Errors[0])
	}
	if report.Errors[1] != "1 rows with invalid quantities" {
		t.Fatalf("quantity error: %q", report.Errors[1])
	}
}

func TestSelectSheetSoleValidWins(t *testing.T) {
	reports := []internal.SheetReport{
		{Name: "bad", IsValid: false},
		{Name: "good", IsValid: true},
	}
	selected, valid := SelectSheet(reports)
	if selected == nil || *selected != "good" {
		t.Fatalf("selected=%v", selected)
	}
	if len(valid) != 1 {
		t.Fatalf("valid=%v", valid)
	}

	reports = append(reports, internal.SheetReport{Name: "also-good", IsValid: true})
	selected, _ = SelectSheet(reports)
	if selected != nil {
		t.Fatalf("two valid sheets must not auto-select, got %v", *selected)
	}
}
