package domain

import (
	"strconv"
)

// RawRow is one untyped row as extracted from HTML cells or a JSON object.
type RawRow map[string]string

// Record is a decoded row of one category.
type Record interface {
	Category() Category
	// Key is the dedup key, built the same way as Schema.KeyOf.
	Key() string
	// Values returns the stored fields keyed by schema field name.
	Values() map[string]string
}

// Decoder turns raw rows into typed records. Implementations return a *ParseError for
// rows that cannot be decoded.
type Decoder interface {
	Decode(raw RawRow) (Record, error)
}

type PriceRecord struct {
	Date          string
	Open          float64
	High          float64
	Low           float64
	LTP           float64
	PercentChange float64
	Qty           int64
	Turnover      float64
}

func (r PriceRecord) Category() Category { return CategoryPrices }
func (r PriceRecord) Key() string        { return r.Date }

func (r PriceRecord) Values() map[string]string {
	return map[string]string{
		"date":           r.Date,
		"open":           formatFloat(r.Open),
		"high":           formatFloat(r.High),
		"low":            formatFloat(r.Low),
		"ltp":            formatFloat(r.LTP),
		"percent_change": formatFloat(r.PercentChange),
		"qty":            strconv.FormatInt(r.Qty, 10),
		"turnover":       formatFloat(r.Turnover),
	}
}

type DividendRecord struct {
	FiscalYear      string
	BonusShare      float64
	CashDividend    float64
	TotalDividend   float64
	BookClosureDate string
}

func (r DividendRecord) Category() Category { return CategoryDividends }
func (r DividendRecord) Key() string        { return r.FiscalYear }

func (r DividendRecord) Values() map[string]string {
	return map[string]string{
		"fiscal_year":       r.FiscalYear,
		"bonus_share":       formatFloat(r.BonusShare),
		"cash_dividend":     formatFloat(r.CashDividend),
		"total_dividend":    formatFloat(r.TotalDividend),
		"book_closure_date": r.BookClosureDate,
	}
}

type RightShareRecord struct {
	Ratio        string
	TotalUnits   float64
	IssuePrice   float64
	OpeningDate  string
	ClosingDate  string
	Status       string
	IssueManager string
}

func (r RightShareRecord) Category() Category { return CategoryRightShares }
func (r RightShareRecord) Key() string        { return r.OpeningDate + "|" + r.Ratio }

func (r RightShareRecord) Values() map[string]string {
	return map[string]string{
		"ratio":         r.Ratio,
		"total_units":   formatFloat(r.TotalUnits),
		"issue_price":   formatFloat(r.IssuePrice),
		"opening_date":  r.OpeningDate,
		"closing_date":  r.ClosingDate,
		"status":        r.Status,
		"issue_manager": r.IssueManager,
	}
}

type FloorsheetRecord struct {
	Date        string
	SN          string
	ContractNo  string
	StockSymbol string
	Buyer       string
	Seller      string
	Quantity    int64
	Rate        float64
	Amount      float64
}

func (r FloorsheetRecord) Category() Category { return CategoryFloorsheet }
func (r FloorsheetRecord) Key() string        { return r.ContractNo }

func (r FloorsheetRecord) Values() map[string]string {
	return map[string]string{
		"date":         r.Date,
		"sn":           r.SN,
		"contract_no":  r.ContractNo,
		"stock_symbol": r.StockSymbol,
		"buyer":        r.Buyer,
		"seller":       r.Seller,
		"quantity":     strconv.FormatInt(r.Quantity, 10),
		"rate":         formatFloat(r.Rate),
		"amount":       formatFloat(r.Amount),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
