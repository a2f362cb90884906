package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/decoder"
	"github.com/NepsyCrawler/internal/infra/paginator"
	"github.com/NepsyCrawler/internal/infra/session"
)

// PostbackSource fetches the market-wide floorsheet. The entity is fixed; every
// session starts on the first page of the current trading day.
type PostbackSource struct {
	name      string
	url       string
	opener    *session.Opener
	paginator *paginator.PostbackPaginator
}

func NewPostbackSource(name, pageURL string, opener *session.Opener, delay domain.Delay) *PostbackSource {
	return &PostbackSource{
		name:   name,
		url:    pageURL,
		opener: opener,
		paginator: paginator.NewPostbackPaginator(paginator.PostbackConfig{
			URL:           pageURL,
			TableSelector: "table.table-bordered",
			Columns:       decoder.FloorsheetColumns,
			Delay:         delay,
		}),
	}
}

func (s *PostbackSource) Name() string                { return s.name }
func (s *PostbackSource) Category() domain.Category { return domain.CategoryFloorsheet }

func (s *PostbackSource) Fetch(ctx context.Context, entity string, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	header := http.Header{}
	if u, err := url.Parse(s.url); err == nil {
		header.Set("Origin", u.Scheme+"://"+u.Host)
	}

	sess, err := s.opener.Open(ctx, session.Target{
		URL:           s.url,
		TokenSelector: "#__VIEWSTATE",
		TokenAttr:     "value",
		Header:        header,
	})
	if err != nil {
		return domain.FetchResult{}, err
	}
	return s.paginator.Walk(ctx, sess, opts, handle)
}
