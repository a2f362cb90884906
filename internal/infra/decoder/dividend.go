package decoder

import (
	"strings"

	"github.com/NepsyCrawler/internal/domain"
)

type DividendDecoder struct{}

func NewDividendDecoder() *DividendDecoder {
	return &DividendDecoder{}
}

func (d *DividendDecoder) Decode(raw domain.RawRow) (domain.Record, error) {
	year, err := required("year", raw)
	if err != nil {
		return nil, err
	}

	r := domain.DividendRecord{
		FiscalYear:      year,
		BookClosureDate: strings.TrimSpace(raw["bookclose_date"]),
	}
	if err := floats(raw, map[string]*float64{
		"bonus_share":    &r.BonusShare,
		"cash_dividend":  &r.CashDividend,
		"total_dividend": &r.TotalDividend,
	}); err != nil {
		return nil, err
	}
	return r, nil
}
