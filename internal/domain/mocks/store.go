package mocks

import (
	"context"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ExistingKeys(ctx context.Context, entity string, schema domain.Schema) (map[string]struct{}, error) {
	args := m.Called(ctx, entity, schema)

	var keys map[string]struct{}
	if args.Get(0) != nil {
		keys = args.Get(0).(map[string]struct{})
	}
	return keys, args.Error(1)
}

func (m *MockStore) AppendRows(ctx context.Context, entity string, schema domain.Schema, records []domain.Record) ([]domain.Record, error) {
	args := m.Called(ctx, entity, schema, records)

	var written []domain.Record
	if args.Get(0) != nil {
		written = args.Get(0).([]domain.Record)
	}
	return written, args.Error(1)
}
