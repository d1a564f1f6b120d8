package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dupcheck/internal/domain"
	"dupcheck/internal/port"
)

// MockTableLoader is a mock implementation of port.TableLoader.
type MockTableLoader struct {
	mock.Mock
}

func (m *MockTableLoader) Load(ctx context.Context, src port.SourceRef) (*domain.Table, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Table), args.Error(1)
}
