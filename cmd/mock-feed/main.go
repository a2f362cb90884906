package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NepsyCrawler/internal/sitesim"
)

// Serves the simulated sites for local runs:
//
//	SHARESANSAR_BASE_URL=http://localhost:8081 FLOORSHEET_URL=http://localhost:8081/Floorsheet.aspx
func main() {
	site := sitesim.New()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)

	site.Companies["NABIL"] = &sitesim.Company{
		ID:     "131",
		Prices: sitesim.PriceRows(yesterday, 240),
		Dividends: []map[string]any{
			{"year": "2080/2081", "bonus_share": "0", "cash_dividend": "30", "total_dividend": "30", "bookclose_date": "2024-12-20"},
			{"year": "2079/2080", "bonus_share": "10", "cash_dividend": "15", "total_dividend": "25", "bookclose_date": "2023-12-18"},
		},
	}
	site.Companies["HBL"] = &sitesim.Company{
		ID:     "139",
		Prices: sitesim.PriceRows(yesterday, 90),
		RightShares: []map[string]any{
			{"ratio_value": "10:3", "total_units": "12,500,000", "issue_price": "100", "opening_date": "2024-03-01", "closing_date": "2024-03-22", "is_open": "Closed", "issue_manager": "NIBL Ace Capital"},
		},
	}
	// Company page without #companyid; needs company_id_mapping.json.
	site.Companies["NICA"] = &sitesim.Company{ID: "151", Prices: sitesim.PriceRows(yesterday, 30), HideID: true}
	site.Floorsheet = sitesim.FloorsheetPages(5, 20)
	site.NotReady["/company-dividend"] = 1

	// Today's summary, picked up by `nepsy daily` after a first sync.
	site.TodayDate = today.Format(time.DateOnly)
	site.Today = []sitesim.TodayRow{
		{Symbol: "NABIL", Open: "520.00", High: "531.00", Low: "515.00", Close: "528.40", Vol: "18,204", Turnover: "9,583,212.50", DiffPct: "1.62"},
		{Symbol: "HBL", Open: "201.00", High: "204.00", Low: "199.10", Close: "203.00", Vol: "7,911", Turnover: "1,601,560.00", DiffPct: "0.99"},
	}

	slog.Info("Mock feed server running on :8081")
	if err := http.ListenAndServe(":8081", site); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
