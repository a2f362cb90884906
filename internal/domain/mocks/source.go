package mocks

import (
	"context"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockSource replays the pages given to On("Fetch") through the handler.
type MockSource struct {
	mock.Mock
	Cat domain.Category
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Category() domain.Category { return m.Cat }

func (m *MockSource) Fetch(ctx context.Context, entity string, opts domain.FetchOptions, handle func(domain.Page) error) (domain.FetchResult, error) {
	args := m.Called(ctx, entity, opts)

	var pages []domain.Page
	if args.Get(0) != nil {
		pages = args.Get(0).([]domain.Page)
	}
	res := domain.FetchResult{}
	for _, p := range pages {
		if err := handle(p); err != nil {
			return res, err
		}
		res.Pages++
		res.Rows += len(p.Rows)
	}
	return res, args.Error(1)
}
