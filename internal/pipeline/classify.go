package pipeline

import (
	"strings"

	"prodcat/internal"
	"prodcat/internal/util"
)

// Classifier labels rows against a catalog snapshot taken when it was built.
// The snapshot is read-only; commit-time code re-checks duplication against
// live state per row.
type Classifier struct {
	byName map[string]internal.Product
}

// NewClassifier indexes the catalog snapshot by normalized name. When several
// records share a name the one with the lowest id wins, matching the store's
// lookup order.
func NewClassifier(products []internal.Product) *Classifier {
	byName := make(map[string]internal.Product, len(products))
	for _, p := range products {
		key := normalizeName(p.Name)
		if existing, ok := byName[key]; ok && existing.ID <= p.ID {
			continue
		}
		byName[key] = p
	}
	return &Classifier{byName: byName}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Classify runs the single linear pass over rows in ordinal order. The first
// occurrence of a name within the batch is canonical; later occurrences are
// flagged with the earlier ordinal they collide with.
func (c *Classifier) Classify(rows []internal.NormalizedRow) []internal.Classification {
	out := make([]internal.Classification, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		name := normalizeName(util.CellString(row.Fields["name"]))

		if earlier, ok := seen[name]; ok {
			out = append(out, internal.Classification{
				Status:         internal.RowDuplicateInBatch,
				EarlierOrdinal: earlier,
			})
			continue
		}
		if p, ok := c.byName[name]; ok {
			out = append(out, internal.Classification{
				Status:    internal.RowDuplicateInCatalog,
				CatalogID: p.ID,
			})
			continue
		}
		out = append(out, internal.Classification{Status: internal.RowNew})
		seen[name] = row.Ordinal
	}

	return out
}
