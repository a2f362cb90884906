package provider

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/PuerkitoBio/goquery"
)

// todayColumns maps the headers of the today-share-price table to the raw fields the
// price decoder reads.
var todayColumns = map[string]string{
	"symbol":   "symbol",
	"open":     "open",
	"high":     "high",
	"low":      "low",
	"close":    "close",
	"ltp":      "close",
	"diff %":   "per_change",
	"vol":      "traded_quantity",
	"turnover": "traded_amount",
}

var marketDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// TodaySource serves one prices row per company from the single-page summary of the
// current trading day. The page is fetched once and shared by every entity until it
// is older than the refresh interval.
type TodaySource struct {
	name    string
	url     string
	opener  *session.Opener
	refresh time.Duration

	mu        sync.Mutex
	fetchedAt time.Time
	date      string
	rows      map[string]domain.RawRow
}

func NewTodaySource(name, pageURL string, opener *session.Opener, refresh time.Duration) *TodaySource {
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	return &TodaySource{name: name, url: pageURL, opener: opener, refresh: refresh}
}

func (s *TodaySource) Name() string                { return s.name }
func (s *TodaySource) Category() domain.Category { return domain.CategoryPrices }

// Fetch hands the entity's row for the market date as a single page. A company that
// did not trade yields no page. The watermark is not needed: there is one row.
func (s *TodaySource) Fetch(ctx context.Context, entity string, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	var res domain.FetchResult

	date, rows, err := s.load(ctx)
	if err != nil {
		return res, err
	}
	row, ok := rows[strings.ToUpper(entity)]
	if !ok {
		slog.Debug("No row for company today", "entity", entity, "date", date)
		res.StopReason = "not traded today"
		return res, nil
	}

	if err := handle(domain.Page{Index: 1, Rows: []domain.RawRow{row}}); err != nil {
		return res, err
	}
	res.Pages, res.Rows = 1, 1
	res.StopReason = "end of data"
	return res, nil
}

func (s *TodaySource) load(ctx context.Context) (string, map[string]domain.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows != nil && time.Since(s.fetchedAt) < s.refresh {
		return s.date, s.rows, nil
	}

	sess, err := s.opener.Open(ctx, session.Target{URL: s.url})
	if err != nil {
		return "", nil, err
	}
	doc := sess.Landing()

	date := marketDate.FindString(doc.Find("span.text-org").First().Text())
	if date == "" {
		return "", nil, &domain.NotFoundError{URL: s.url, Missing: []string{"market date"}}
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return "", nil, &domain.NotFoundError{URL: s.url, Missing: []string{"price table"}}
	}

	rows := parseTodayTable(table, date)
	slog.Info("Loaded today's prices", "url", s.url, "date", date, "companies", len(rows))

	s.date, s.rows, s.fetchedAt = date, rows, time.Now()
	return date, rows, nil
}

// parseTodayTable keys rows by symbol. Columns are located by header text so their
// order on the page does not matter; rows seen twice are dropped.
func parseTodayTable(table *goquery.Selection, date string) map[string]domain.RawRow {
	fields := map[int]string{}
	table.Find("tr").First().Find("th,td").Each(func(i int, th *goquery.Selection) {
		if f, ok := todayColumns[strings.ToLower(strings.TrimSpace(th.Text()))]; ok {
			fields[i] = f
		}
	})

	rows := map[string]domain.RawRow{}
	repeated := map[string]bool{}
	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		row := domain.RawRow{"published_date": date}
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if f, ok := fields[i]; ok {
				row[f] = strings.TrimSpace(td.Text())
			}
		})
		symbol := strings.ToUpper(row["symbol"])
		if symbol == "" {
			return
		}
		if _, seen := rows[symbol]; seen || repeated[symbol] {
			slog.Warn("Multiple rows for company, skipping it", "symbol", symbol)
			delete(rows, symbol)
			repeated[symbol] = true
			return
		}
		delete(row, "symbol")
		rows[symbol] = row
	})
	return rows
}
