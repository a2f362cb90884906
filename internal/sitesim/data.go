package sitesim

import (
	"fmt"
	"time"
)

// PriceRows builds n daily price rows ending at last, newest first.
func PriceRows(last time.Time, n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		d := last.AddDate(0, 0, -i)
		rows = append(rows, map[string]any{
			"published_date":  d.Format(time.DateOnly),
			"open":            fmt.Sprintf("%d.00", 500+i),
			"high":            fmt.Sprintf("%d.00", 510+i),
			"low":             fmt.Sprintf("%d.00", 490+i),
			"close":           fmt.Sprintf("%d.50", 505+i),
			"per_change":      "1.25",
			"traded_quantity": fmt.Sprintf("%d", 1000+i),
			"traded_amount":   fmt.Sprintf("%d,000.00", 500+i),
		})
	}
	return rows
}

// FloorsheetPages builds pages trades per page, numbering contracts across pages.
func FloorsheetPages(pages, perPage int) [][]map[string]string {
	out := make([][]map[string]string, 0, pages)
	sn := 1
	for p := 0; p < pages; p++ {
		var rows []map[string]string
		for i := 0; i < perPage; i++ {
			rows = append(rows, map[string]string{
				"sn":           fmt.Sprint(sn),
				"contract_no":  fmt.Sprintf("2026022101%06d", sn),
				"stock_symbol": "NABIL",
				"buyer":        "58",
				"seller":       "34",
				"quantity":     "100",
				"rate":         "500.00",
				"amount":       "50,000.00",
			})
			sn++
		}
		out = append(out, rows)
	}
	return out
}
