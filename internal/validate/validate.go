// Package validate holds the field-level predicates shared by the synchronous
// product endpoints and the import pipeline.
package validate

import "strings"

func Name(name string) bool {
	return strings.TrimSpace(name) != ""
}

func Description(description string) bool {
	return strings.TrimSpace(description) != ""
}

func Price(price float64) bool {
	return price >= 0
}

func Quantity(quantity int) bool {
	return quantity >= 0
}
