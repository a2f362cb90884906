package decoder

import (
	"fmt"
	"time"

	"github.com/NepsyCrawler/internal/domain"
)

// GetDecoder returns the decoder registered for a category.
// now stamps rows that carry no date of their own (floorsheet).
func GetDecoder(category domain.Category, now func() time.Time) (domain.Decoder, error) {
	switch category {
	case domain.CategoryPrices:
		return NewPriceDecoder(), nil
	case domain.CategoryDividends:
		return NewDividendDecoder(), nil
	case domain.CategoryRightShares:
		return NewRightShareDecoder(), nil
	case domain.CategoryFloorsheet:
		if now == nil {
			now = time.Now
		}
		return NewFloorsheetDecoder(now), nil
	default:
		return nil, fmt.Errorf("decoder not found: %s", category)
	}
}
