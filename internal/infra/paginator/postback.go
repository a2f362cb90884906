package paginator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/PuerkitoBio/goquery"
)

// PostbackConfig describes a server-rendered table paged by re-submitting its form.
type PostbackConfig struct {
	// URL receives the postback; usually the page the session was opened on.
	URL           string
	TableSelector string
	// Columns name the cells of a data row, left to right.
	Columns []string
	// MinColumns rejects header/footer rows; defaults to len(Columns).
	MinColumns int
	Delay      domain.Delay
}

// PostbackPaginator walks a postback-paged table starting from the session's landing
// page. Only state extracted from page N is used to request page N+1.
type PostbackPaginator struct {
	cfg PostbackConfig
}

func NewPostbackPaginator(cfg PostbackConfig) *PostbackPaginator {
	if cfg.MinColumns == 0 {
		cfg.MinColumns = len(cfg.Columns)
	}
	return &PostbackPaginator{cfg: cfg}
}

func (p *PostbackPaginator) Strategy() string { return "postback" }

func (p *PostbackPaginator) Walk(ctx context.Context, s *session.Context, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	var res domain.FetchResult
	delay := effectiveDelay(p.cfg.Delay, opts.PageDelay)

	doc := s.Landing()
	for index := 1; ; index++ {
		table := doc.Find(p.cfg.TableSelector).First()
		if table.Length() == 0 {
			slog.Warn("Table not found, stopping walk", "url", p.cfg.URL, "page", index)
			return stopPartial(res, "table not found"), nil
		}

		rows := p.extractRows(table)
		next, found := nextControl(doc)
		cont, parsed := ParseContinuation(next)

		page := domain.Page{Index: index, Rows: rows, HasNext: found && parsed}
		if err := handle(page); err != nil {
			return res, err
		}
		res.Pages++
		res.Rows += len(rows)
		slog.Info("Fetched page", "url", p.cfg.URL, "page", index, "rows", len(rows), "total_rows", res.Rows)

		if opts.MaxPages > 0 && index >= opts.MaxPages {
			res.StopReason = "max pages reached"
			return res, nil
		}
		if !found {
			res.StopReason = "no next page"
			return res, nil
		}
		if !parsed {
			slog.Warn("Could not parse next page arguments", "onclick", next, "page", index)
			return stopPartial(res, "malformed continuation"), nil
		}
		if cont.TargetPage <= index {
			slog.Warn("Next page does not advance", "page", index, "target", cont.TargetPage)
			return stopPartial(res, "non-advancing continuation"), nil
		}
		if cont.TargetPage != index+1 {
			slog.Warn("Next page skips ahead", "page", index, "target", cont.TargetPage)
		}

		form, err := buildPostback(doc, cont)
		if err != nil {
			slog.Warn("Could not build postback", "page", index, "error", err)
			return stopPartial(res, err.Error()), nil
		}

		if err := Sleep(ctx, delay); err != nil {
			return stopPartial(res, err.Error()), nil
		}

		resp, err := s.PostForm(ctx, p.cfg.URL, form, false)
		if err != nil {
			slog.Error("Failed to fetch page", "page", cont.TargetPage, "error", err)
			return stopPartial(res, err.Error()), nil
		}
		if resp.Status != http.StatusOK {
			slog.Error("Failed to fetch page", "page", cont.TargetPage, "status_code", resp.Status)
			return stopPartial(res, fmt.Sprintf("status %d", resp.Status)), nil
		}

		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return stopPartial(res, fmt.Sprintf("parse html: %v", err)), nil
		}
	}
}

func (p *PostbackPaginator) extractRows(table *goquery.Selection) []domain.RawRow {
	var rows []domain.RawRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < p.cfg.MinColumns {
			return
		}
		row := make(domain.RawRow, len(p.cfg.Columns))
		for i, name := range p.cfg.Columns {
			row[name] = strings.TrimSpace(cells.Eq(i).Text())
		}
		rows = append(rows, row)
	})
	return rows
}

// nextControl returns the onclick of the "next page" link and whether one exists.
func nextControl(doc *goquery.Document) (string, bool) {
	link := doc.Find(`a[title="Next Page"]`).First()
	if link.Length() == 0 {
		link = doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.TrimSpace(a.Text()) == "Next"
		}).First()
	}
	if link.Length() == 0 {
		return "", false
	}
	onclick, _ := link.Attr("onclick")
	return onclick, true
}

// buildPostback copies every hidden input of the current page, then sets the page
// field to the target page and adds the submit control with an empty value. Field
// names are looked up from the ids the continuation refers to; they change between
// requests.
func buildPostback(doc *goquery.Document, c Continuation) (url.Values, error) {
	pageName, ok := nameForID(doc, c.PageFieldID)
	if !ok {
		return nil, fmt.Errorf("page field %q not found", c.PageFieldID)
	}
	submitName, ok := nameForID(doc, c.SubmitID)
	if !ok {
		return nil, fmt.Errorf("submit control %q not found", c.SubmitID)
	}

	form := url.Values{}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := in.Attr("value")
		form.Set(name, value)
	})
	form.Set(pageName, fmt.Sprint(c.TargetPage))
	form.Set(submitName, "")
	return form, nil
}

func nameForID(doc *goquery.Document, id string) (string, bool) {
	el := doc.Find(fmt.Sprintf("[id=%q]", id)).First()
	if el.Length() == 0 {
		return "", false
	}
	name, ok := el.Attr("name")
	return name, ok && name != ""
}

func stopPartial(res domain.FetchResult, reason string) domain.FetchResult {
	res.Partial = true
	res.StopReason = reason
	return res
}
