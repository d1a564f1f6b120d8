package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dupcheck/internal/domain"
)

// MockReferenceStore is a mock implementation of port.ReferenceStore.
type MockReferenceStore struct {
	mock.Mock
}

func (m *MockReferenceStore) LoadReference(ctx context.Context) ([]domain.RawRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawRecord), args.Error(1)
}

func (m *MockReferenceStore) Append(ctx context.Context, records []domain.InvoiceRecord, mode domain.MergeMode) (*domain.MergeResult, error) {
	args := m.Called(ctx, records, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MergeResult), args.Error(1)
}

func (m *MockReferenceStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
