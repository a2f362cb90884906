package decoder

import (
	"strings"
	"time"

	"github.com/NepsyCrawler/internal/domain"
)

// FloorsheetColumns names the cells of a floorsheet table row, left to right.
var FloorsheetColumns = []string{"sn", "contract_no", "stock_symbol", "buyer", "seller", "quantity", "rate", "amount"}

// FloorsheetDecoder stamps each trade with the run date since the table has none.
type FloorsheetDecoder struct {
	now func() time.Time
}

func NewFloorsheetDecoder(now func() time.Time) *FloorsheetDecoder {
	return &FloorsheetDecoder{now: now}
}

func (d *FloorsheetDecoder) Decode(raw domain.RawRow) (domain.Record, error) {
	contract, err := required("contract_no", raw)
	if err != nil {
		return nil, err
	}

	r := domain.FloorsheetRecord{
		Date:        d.now().Format(time.DateOnly),
		SN:          strings.TrimSpace(raw["sn"]),
		ContractNo:  contract,
		StockSymbol: strings.TrimSpace(raw["stock_symbol"]),
		Buyer:       strings.TrimSpace(raw["buyer"]),
		Seller:      strings.TrimSpace(raw["seller"]),
	}
	if r.Quantity, err = parseInt("quantity", raw["quantity"]); err != nil {
		return nil, err
	}
	if err := floats(raw, map[string]*float64{
		"rate":   &r.Rate,
		"amount": &r.Amount,
	}); err != nil {
		return nil, err
	}
	return r, nil
}
