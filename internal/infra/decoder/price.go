package decoder

import (
	"strings"

	"github.com/NepsyCrawler/internal/domain"
)

// PriceDecoder maps company-price-history rows. The remote calls the closing price
// "close"; it is stored as ltp.
type PriceDecoder struct{}

func NewPriceDecoder() *PriceDecoder {
	return &PriceDecoder{}
}

// DayKey drops a time component from a date; the store keys prices by day.
func DayKey(date string) string {
	date = strings.TrimSpace(date)
	if i := strings.IndexAny(date, " T"); i > 0 {
		return date[:i]
	}
	return date
}

func (d *PriceDecoder) Decode(raw domain.RawRow) (domain.Record, error) {
	date, err := required("published_date", raw)
	if err != nil {
		return nil, err
	}
	r := domain.PriceRecord{Date: DayKey(date)}
	if err := floats(raw, map[string]*float64{
		"open":          &r.Open,
		"high":          &r.High,
		"low":           &r.Low,
		"close":         &r.LTP,
		"per_change":    &r.PercentChange,
		"traded_amount": &r.Turnover,
	}); err != nil {
		return nil, err
	}
	if r.Qty, err = parseInt("traded_quantity", raw["traded_quantity"]); err != nil {
		return nil, err
	}
	return r, nil
}
