package paginator

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/decoder"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/NepsyCrawler/internal/sitesim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastDay = time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

func newSite(t *testing.T) (*sitesim.Site, *httptest.Server) {
	t.Helper()
	site := sitesim.New()
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)
	return site, server
}

func openCompany(t *testing.T, base, symbol string) *session.Context {
	t.Helper()
	s, err := session.NewOpener().Open(context.Background(), session.Target{
		URL:            base + "/company/" + symbol,
		TokenSelector:  `meta[name="_token"]`,
		TokenAttr:      "content",
		EntitySelector: "#companyid",
		Symbol:         symbol,
	})
	require.NoError(t, err)
	return s
}

func openFloorsheet(t *testing.T, base string) *session.Context {
	t.Helper()
	s, err := session.NewOpener().Open(context.Background(), session.Target{
		URL:           base + "/Floorsheet.aspx",
		TokenSelector: "#__VIEWSTATE",
		TokenAttr:     "value",
	})
	require.NoError(t, err)
	return s
}

func priceConfig(base string) OffsetConfig {
	return OffsetConfig{
		URL:         base + "/company-price-history",
		Length:      50,
		EntityParam: "company",
		KeyField:    "published_date",
		Retry:       RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Millisecond}},
	}
}

func floorsheetConfig(base string) PostbackConfig {
	return PostbackConfig{
		URL:           base + "/Floorsheet.aspx",
		TableSelector: "table.table-bordered",
		Columns:       decoder.FloorsheetColumns,
	}
}

func collect(pages *[]domain.Page) func(domain.Page) error {
	return func(p domain.Page) error {
		*pages = append(*pages, p)
		return nil
	}
}

func TestOffset_BatchBoundary(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 120)}

	var pages []domain.Page
	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"), domain.FetchOptions{}, collect(&pages))
	require.NoError(t, err)

	reqs := site.Requests("/company-price-history")
	require.Len(t, reqs, 3)
	for i, want := range []int{0, 50, 100} {
		assert.Equal(t, want, reqs[i].Start)
		assert.Equal(t, i+1, reqs[i].Draw)
		assert.Equal(t, 50, reqs[i].Length)
		assert.Equal(t, "131", reqs[i].Company)
	}
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 120, res.Rows)
	assert.False(t, res.Partial)
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].Index, pages[1].Index, pages[2].Index})
	assert.True(t, pages[1].HasNext)
	assert.False(t, pages[2].HasNext)
}

func TestOffset_StopsAtWatermark(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 120)}

	stop := domain.Watermark(lastDay.AddDate(0, 0, -3).Format(time.DateOnly))
	var pages []domain.Page
	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{StopAt: stop}, collect(&pages))
	require.NoError(t, err)

	assert.True(t, res.EarlyStop)
	assert.Len(t, site.Requests("/company-price-history"), 1)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Rows, 4, "rows newer than the watermark plus the watermark row itself")
	assert.Equal(t, string(stop), pages[0].Rows[3]["published_date"])
}

func TestOffset_WatermarkInLaterBatch(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 120)}

	stop := domain.Watermark(lastDay.AddDate(0, 0, -60).Format(time.DateOnly))
	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{StopAt: stop}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Len(t, site.Requests("/company-price-history"), 2)
	assert.Equal(t, 61, res.Rows)
}

func TestOffset_NonMonotonicDisablesEarlyStop(t *testing.T) {
	site, server := newSite(t)
	rows := sitesim.PriceRows(lastDay, 60)
	rows[1], rows[2] = rows[2], rows[1]
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: rows}

	stop := domain.Watermark(lastDay.AddDate(0, 0, -30).Format(time.DateOnly))
	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{StopAt: stop}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.False(t, res.EarlyStop)
	assert.Equal(t, 60, res.Rows)
}

func TestOffset_NormalizesKeysBeforeWatermark(t *testing.T) {
	site, server := newSite(t)
	rows := sitesim.PriceRows(lastDay, 6)
	for _, r := range rows {
		r["published_date"] = r["published_date"].(string) + " 00:00:00"
	}
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: rows}

	cfg := priceConfig(server.URL)
	cfg.Length = 2
	cfg.KeyFunc = decoder.DayKey

	// The stored watermark is the second row, the last one of the first batch.
	stop := domain.Watermark(lastDay.AddDate(0, 0, -1).Format(time.DateOnly))
	res, err := NewOffsetPaginator(cfg).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{StopAt: stop}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.EarlyStop)
	assert.Equal(t, 2, res.Rows)
	assert.Len(t, site.Requests("/company-price-history"), 1)
}

func TestOffset_WaitsBetweenBatches(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 30)}

	cfg := priceConfig(server.URL)
	cfg.Length = 10
	delay := domain.Delay{Min: 40 * time.Millisecond, Max: 50 * time.Millisecond}

	s := openCompany(t, server.URL, "NABIL")
	begin := time.Now()
	res, err := NewOffsetPaginator(cfg).Walk(context.Background(), s,
		domain.FetchOptions{PageDelay: delay}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)

	reqs := site.Requests("/company-price-history")
	require.Len(t, reqs, 3)
	assert.Less(t, reqs[0].At.Sub(begin), delay.Min, "no wait before the first batch")
	for i := 1; i < len(reqs); i++ {
		assert.GreaterOrEqual(t, reqs[i].At.Sub(reqs[i-1].At), delay.Min)
	}
}

func TestOffset_DelayHonoursCancellation(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 30)}

	cfg := priceConfig(server.URL)
	cfg.Length = 10
	ctx, cancel := context.WithCancel(context.Background())

	res, err := NewOffsetPaginator(cfg).Walk(ctx, openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{PageDelay: domain.Delay{Min: time.Hour, Max: 2 * time.Hour}},
		func(domain.Page) error {
			cancel()
			return nil
		})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.Pages)
	assert.Len(t, site.Requests("/company-price-history"), 1)
}

func TestOffset_RetriesNotReady(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 10)}
	site.NotReady["/company-price-history"] = 2

	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 10, res.Rows)
	assert.Len(t, site.Requests("/company-price-history"), 3)
}

func TestOffset_FirstBatchFailureIsConnectError(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 10)}
	site.NotReady["/company-price-history"] = 5

	_, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{}, func(domain.Page) error { return nil })
	assert.True(t, errors.Is(err, domain.ErrConnect))
}

func TestOffset_MidWalkFailureKeepsPartialData(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 120)}
	site.FailAfter["/company-price-history"] = 50

	var pages []domain.Page
	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{}, collect(&pages))
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 50, res.Rows)
	assert.Len(t, pages, 1)
}

func TestOffset_EmptyBatchEndsWalk(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131"}

	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pages)
	assert.Equal(t, "empty batch", res.StopReason)
}

func TestOffset_MaxBatches(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Prices: sitesim.PriceRows(lastDay, 120)}

	res, err := NewOffsetPaginator(priceConfig(server.URL)).Walk(context.Background(), openCompany(t, server.URL, "NABIL"),
		domain.FetchOptions{MaxPages: 2}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, site.Requests("/company-price-history"), 2)
}

func TestOffset_SendsStaticParams(t *testing.T) {
	site, server := newSite(t)
	site.Companies["NABIL"] = &sitesim.Company{ID: "131", Dividends: []map[string]any{{"year": "2080/2081", "bonus_share": "5"}}}

	cfg := OffsetConfig{
		URL:         server.URL + "/company-dividend",
		EntityParam: "company",
		KeyField:    "year",
		Params:      url.Values{"columns[0][data]": {"published_date"}},
	}
	var pages []domain.Page
	_, err := NewOffsetPaginator(cfg).Walk(context.Background(), openCompany(t, server.URL, "NABIL"), domain.FetchOptions{}, collect(&pages))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "5", pages[0].Rows[0]["bonus_share"])
}

func TestPostback_WalksAllPages(t *testing.T) {
	site, server := newSite(t)
	site.Floorsheet = sitesim.FloorsheetPages(4, 3)

	var pages []domain.Page
	res, err := NewPostbackPaginator(floorsheetConfig(server.URL)).Walk(context.Background(), openFloorsheet(t, server.URL),
		domain.FetchOptions{}, collect(&pages))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Pages)
	assert.Equal(t, 12, res.Rows)
	assert.False(t, res.Partial)
	require.Len(t, pages, 4)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Index)
		assert.Len(t, p.Rows, 3, "header and total rows are skipped")
	}
	assert.False(t, pages[3].HasNext)
	assert.Equal(t, "2026022101000012", pages[3].Rows[2]["contract_no"])
	// One GET plus three postbacks, never a fifth request.
	assert.Len(t, site.Requests("/Floorsheet.aspx"), 4)
}

func TestPostback_WaitsBetweenPages(t *testing.T) {
	site, server := newSite(t)
	site.Floorsheet = sitesim.FloorsheetPages(3, 2)

	cfg := floorsheetConfig(server.URL)
	cfg.Delay = domain.Delay{Min: 40 * time.Millisecond, Max: 50 * time.Millisecond}

	res, err := NewPostbackPaginator(cfg).Walk(context.Background(), openFloorsheet(t, server.URL),
		domain.FetchOptions{}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)

	reqs := site.Requests("/Floorsheet.aspx")
	require.Len(t, reqs, 3)
	for i := 1; i < len(reqs); i++ {
		assert.GreaterOrEqual(t, reqs[i].At.Sub(reqs[i-1].At), cfg.Delay.Min, "page %d", reqs[i].Page)
	}
}

func TestPostback_MaxPagesStopsBeforeNextRequest(t *testing.T) {
	site, server := newSite(t)
	site.Floorsheet = sitesim.FloorsheetPages(5, 2)

	res, err := NewPostbackPaginator(floorsheetConfig(server.URL)).Walk(context.Background(), openFloorsheet(t, server.URL),
		domain.FetchOptions{MaxPages: 2}, func(domain.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, site.Requests("/Floorsheet.aspx"), 2)
}

func TestPostback_MalformedContinuationStopsCleanly(t *testing.T) {
	site, server := newSite(t)
	site.Floorsheet = sitesim.FloorsheetPages(4, 2)
	site.MalformedNextOn = 2

	var pages []domain.Page
	res, err := NewPostbackPaginator(floorsheetConfig(server.URL)).Walk(context.Background(), openFloorsheet(t, server.URL),
		domain.FetchOptions{}, collect(&pages))
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "malformed continuation", res.StopReason)
	assert.Len(t, pages, 2)
	assert.Equal(t, 4, res.Rows)
}

func TestPostback_HandlerErrorAborts(t *testing.T) {
	site, server := newSite(t)
	site.Floorsheet = sitesim.FloorsheetPages(3, 1)

	boom := errors.New("disk full")
	_, err := NewPostbackPaginator(floorsheetConfig(server.URL)).Walk(context.Background(), openFloorsheet(t, server.URL),
		domain.FetchOptions{}, func(domain.Page) error { return boom })
	assert.ErrorIs(t, err, boom)
}
