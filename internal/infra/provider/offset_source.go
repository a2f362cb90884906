package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/paginator"
	"github.com/NepsyCrawler/internal/infra/session"
)

// OffsetSource fetches one category of a company's history from ShareSansar: it opens a
// session on the company page and walks the category's AJAX endpoint.
type OffsetSource struct {
	name      string
	category  domain.Category
	baseURL   string
	opener    *session.Opener
	paginator *paginator.OffsetPaginator
}

func NewOffsetSource(name string, category domain.Category, baseURL string, opener *session.Opener, cfg paginator.OffsetConfig) *OffsetSource {
	return &OffsetSource{
		name:      name,
		category:  category,
		baseURL:   strings.TrimRight(baseURL, "/"),
		opener:    opener,
		paginator: paginator.NewOffsetPaginator(cfg),
	}
}

func (s *OffsetSource) Name() string                { return s.name }
func (s *OffsetSource) Category() domain.Category { return s.category }

func (s *OffsetSource) Fetch(ctx context.Context, entity string, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	sess, err := s.opener.Open(ctx, session.Target{
		URL:            fmt.Sprintf("%s/company/%s", s.baseURL, strings.ToLower(entity)),
		TokenSelector:  `meta[name="_token"]`,
		TokenAttr:      "content",
		EntitySelector: "#companyid",
		Symbol:         strings.ToUpper(entity),
	})
	if err != nil {
		return domain.FetchResult{}, err
	}
	if sess.EntityID() == "" {
		return domain.FetchResult{}, &domain.NotFoundError{URL: sess.Referer(), Missing: []string{"entity id"}}
	}

	slog.Debug("Session opened", "source", s.name, "entity", entity, "entity_id", sess.EntityID())
	return s.paginator.Walk(ctx, sess, opts, handle)
}
