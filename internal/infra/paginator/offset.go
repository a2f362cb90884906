package paginator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/tidwall/gjson"
)

// OffsetConfig describes a DataTables-style AJAX endpoint.
type OffsetConfig struct {
	URL    string
	Length int
	// EntityParam carries the session's entity id, e.g. "company".
	EntityParam string
	// KeyField is the raw field holding each row's ordering key.
	KeyField string
	// KeyFunc normalizes the raw key to the stored form before it is compared with
	// the watermark. Nil compares raw values.
	KeyFunc func(string) string
	// Params are sent with every batch (column descriptors, search fields).
	Params url.Values
	Delay  domain.Delay
	Retry  RetryPolicy
}

// OffsetPaginator walks [start, start+length) windows until the window covers the
// reported total.
//
// Early termination trusts the remote to serve rows newest-first: once a row's key is
// at or before the watermark, that row is emitted and the walk ends. If a row is seen
// that is newer than its predecessor the trust is withdrawn and the walk runs to the
// end; the caller's key filter keeps the merge correct either way.
type OffsetPaginator struct {
	cfg OffsetConfig
}

func NewOffsetPaginator(cfg OffsetConfig) *OffsetPaginator {
	if cfg.Length <= 0 {
		cfg.Length = 50
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &OffsetPaginator{cfg: cfg}
}

func (p *OffsetPaginator) Strategy() string { return "offset" }

type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.status) }

func (p *OffsetPaginator) Walk(ctx context.Context, s *session.Context, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	var res domain.FetchResult
	delay := effectiveDelay(p.cfg.Delay, opts.PageDelay)
	stopAt := opts.StopAt
	prevKey := ""

	start, draw := 0, 1
	for batch := 0; ; batch++ {
		if opts.MaxPages > 0 && batch >= opts.MaxPages {
			res.StopReason = "max pages reached"
			return res, nil
		}
		if batch > 0 {
			if err := Sleep(ctx, delay); err != nil {
				return stopPartial(res, err.Error()), nil
			}
		}

		body, err := p.fetch(ctx, s, start, draw)
		if err == nil && !gjson.ValidBytes(body) {
			err = errors.New("invalid json response")
		}
		if err != nil {
			if batch == 0 {
				ce := &domain.ConnectError{URL: p.cfg.URL, Err: err}
				var se *statusError
				if errors.As(err, &se) {
					ce.Status = se.status
				}
				return res, ce
			}
			slog.Error("AJAX pagination error, keeping partial data", "url", p.cfg.URL, "start", start, "error", err)
			return stopPartial(res, err.Error()), nil
		}

		reply := gjson.ParseBytes(body)
		total := reply.Get("recordsFiltered").Int()
		if total <= 0 {
			total = reply.Get("recordsTotal").Int()
		}
		items := reply.Get("data").Array()
		if len(items) == 0 {
			res.StopReason = "empty batch"
			return res, nil
		}
		slog.Info("Fetched batch", "url", p.cfg.URL, "start", start, "rows", len(items), "total", total)

		rows := make([]domain.RawRow, 0, len(items))
		early := false
		for _, item := range items {
			if !item.IsObject() {
				res.Dropped++
				continue
			}
			row := toRawRow(item)
			key := row[p.cfg.KeyField]
			if p.cfg.KeyFunc != nil && key != "" {
				key = p.cfg.KeyFunc(key)
			}

			if !stopAt.IsZero() && prevKey != "" && key != "" && key > prevKey {
				slog.Warn("Rows are not newest-first, disabling early stop",
					"url", p.cfg.URL, "previous", prevKey, "key", key)
				stopAt = domain.NoWatermark
			}
			if key != "" {
				prevKey = key
			}

			rows = append(rows, row)
			if stopAt.Reached(key) {
				early = true
				break
			}
		}

		more := !early && int64(start+p.cfg.Length) < total
		if err := handle(domain.Page{Index: batch + 1, Rows: rows, HasNext: more}); err != nil {
			return res, err
		}
		res.Pages++
		res.Rows += len(rows)

		if early {
			slog.Info("Reached stop key, stopping early", "url", p.cfg.URL, "stop_at", string(opts.StopAt))
			res.EarlyStop = true
			res.StopReason = "watermark reached"
			return res, nil
		}
		if !more {
			res.StopReason = "end of data"
			return res, nil
		}
		start += p.cfg.Length
		draw++
	}
}

func (p *OffsetPaginator) fetch(ctx context.Context, s *session.Context, start, draw int) ([]byte, error) {
	form := url.Values{}
	for k, vs := range p.cfg.Params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("draw", strconv.Itoa(draw))
	form.Set("start", strconv.Itoa(start))
	form.Set("length", strconv.Itoa(p.cfg.Length))
	if p.cfg.EntityParam != "" {
		form.Set(p.cfg.EntityParam, s.EntityID())
	}

	var body []byte
	err := p.cfg.Retry.Do(ctx, func(attempt int) error {
		resp, err := s.PostForm(ctx, p.cfg.URL, form, true)
		if err != nil {
			return err
		}
		switch resp.Status {
		case http.StatusOK:
			body = resp.Body
			return nil
		case http.StatusAccepted:
			slog.Warn("AJAX not ready yet", "url", p.cfg.URL, "start", start, "attempt", attempt)
			return fmt.Errorf("status %d: %w", resp.Status, errRetryable)
		default:
			return &statusError{status: resp.Status}
		}
	})
	return body, err
}

// toRawRow flattens one JSON object; numbers and strings alike become trimmed text.
func toRawRow(item gjson.Result) domain.RawRow {
	row := domain.RawRow{}
	item.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			row[k.String()] = ""
		} else {
			row[k.String()] = strings.TrimSpace(v.String())
		}
		return true
	})
	return row
}
