package domain

import (
	"fmt"
	"strings"
)

// Category names one data set fetched per entity.
type Category string

const (
	CategoryPrices      Category = "prices"
	CategoryDividends   Category = "dividends"
	CategoryRightShares Category = "right-shares"
	CategoryFloorsheet  Category = "floorsheet"
)

// FloorsheetEntity is the entity under which market-wide floorsheet trades are stored.
const FloorsheetEntity = "floorsheet"

// Schema is the fixed stored layout of a category.
type Schema struct {
	Category Category
	Fields   []string
	// KeyFields are joined with "|" to form the dedup key.
	KeyFields []string
	// Ordered reports whether keys sort chronologically and the remote source serves
	// them newest-first, which makes the maximum stored key usable as a watermark.
	Ordered bool
}

var schemas = map[Category]Schema{
	CategoryPrices: {
		Category:  CategoryPrices,
		Fields:    []string{"date", "open", "high", "low", "ltp", "percent_change", "qty", "turnover"},
		KeyFields: []string{"date"},
		Ordered:   true,
	},
	CategoryDividends: {
		Category:  CategoryDividends,
		Fields:    []string{"fiscal_year", "bonus_share", "cash_dividend", "total_dividend", "book_closure_date"},
		KeyFields: []string{"fiscal_year"},
	},
	CategoryRightShares: {
		Category:  CategoryRightShares,
		Fields:    []string{"ratio", "total_units", "issue_price", "opening_date", "closing_date", "status", "issue_manager"},
		KeyFields: []string{"opening_date", "ratio"},
	},
	CategoryFloorsheet: {
		Category:  CategoryFloorsheet,
		Fields:    []string{"date", "sn", "contract_no", "stock_symbol", "buyer", "seller", "quantity", "rate", "amount"},
		KeyFields: []string{"contract_no"},
	},
}

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryPrices, CategoryDividends, CategoryRightShares, CategoryFloorsheet}
}

// ParseCategory maps a user supplied name to a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := schemas[c]; !ok {
		return "", fmt.Errorf("unknown category %q", name)
	}
	return c, nil
}

// SchemaFor returns the schema of c.
func SchemaFor(c Category) (Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return Schema{}, fmt.Errorf("unknown category %q", c)
	}
	return s, nil
}

// KeyOf builds the dedup key of a stored row from its field values.
func (s Schema) KeyOf(values map[string]string) string {
	if len(s.KeyFields) == 1 {
		return values[s.KeyFields[0]]
	}
	parts := make([]string, len(s.KeyFields))
	for i, f := range s.KeyFields {
		parts[i] = values[f]
	}
	return strings.Join(parts, "|")
}
