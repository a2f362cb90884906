package decoder

import (
	"strings"

	"github.com/NepsyCrawler/internal/domain"
)

type RightShareDecoder struct{}

func NewRightShareDecoder() *RightShareDecoder {
	return &RightShareDecoder{}
}

func (d *RightShareDecoder) Decode(raw domain.RawRow) (domain.Record, error) {
	ratio, err := required("ratio_value", raw)
	if err != nil {
		return nil, err
	}
	opening, err := required("opening_date", raw)
	if err != nil {
		return nil, err
	}

	r := domain.RightShareRecord{
		Ratio:        ratio,
		OpeningDate:  opening,
		ClosingDate:  strings.TrimSpace(raw["closing_date"]),
		Status:       strings.TrimSpace(raw["is_open"]),
		IssueManager: strings.TrimSpace(raw["issue_manager"]),
	}
	if err := floats(raw, map[string]*float64{
		"total_units": &r.TotalUnits,
		"issue_price": &r.IssuePrice,
	}); err != nil {
		return nil, err
	}
	return r, nil
}
