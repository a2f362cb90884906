package provider

import (
	"fmt"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/decoder"
	"github.com/NepsyCrawler/internal/infra/paginator"
	"github.com/NepsyCrawler/internal/infra/session"
)

// Settings configure every source built by NewSources.
type Settings struct {
	ShareSansarURL string
	FloorsheetURL  string
	BatchSize      int
	PageDelay      domain.Delay
	Retry          paginator.RetryPolicy
}

// NewSources builds one Source per category.
func NewSources(opener *session.Opener, s Settings) map[domain.Category]domain.Source {
	s.ShareSansarURL = strings.TrimRight(s.ShareSansarURL, "/")
	offset := func(path, keyField string, columns ...string) paginator.OffsetConfig {
		return paginator.OffsetConfig{
			URL:         s.ShareSansarURL + path,
			Length:      s.BatchSize,
			EntityParam: "company",
			KeyField:    keyField,
			Params:      dataTablesParams(columns...),
			Delay:       s.PageDelay,
			Retry:       s.Retry,
		}
	}

	prices := offset("/company-price-history", "published_date", "published_date", "open", "high", "low", "close", "per_change", "traded_quantity", "traded_amount")
	prices.KeyFunc = decoder.DayKey

	return map[domain.Category]domain.Source{
		domain.CategoryPrices: NewOffsetSource("sharesansar-prices", domain.CategoryPrices, s.ShareSansarURL, opener, prices),
		domain.CategoryDividends: NewOffsetSource("sharesansar-dividends", domain.CategoryDividends, s.ShareSansarURL, opener,
			offset("/company-dividend", "year", "published_date", "title")),
		domain.CategoryRightShares: NewOffsetSource("sharesansar-right-shares", domain.CategoryRightShares, s.ShareSansarURL, opener,
			offset("/company-rightshare", "opening_date", "published_date", "title")),
		domain.CategoryFloorsheet: NewPostbackSource("merolagani-floorsheet", s.FloorsheetURL, opener, s.PageDelay),
	}
}

// NewDailySources builds the prices source backed by the today-share-price summary.
// It adds at most one row per company and run.
func NewDailySources(opener *session.Opener, s Settings) map[domain.Category]domain.Source {
	base := strings.TrimRight(s.ShareSansarURL, "/")
	return map[domain.Category]domain.Source{
		domain.CategoryPrices: NewTodaySource("sharesansar-today", base+"/today-share-price", opener, 0),
	}
}

// SourceFor returns the source of a category or an error naming it.
func SourceFor(sources map[domain.Category]domain.Source, c domain.Category) (domain.Source, error) {
	src, ok := sources[c]
	if !ok {
		return nil, fmt.Errorf("no source for category %q", c)
	}
	return src, nil
}
