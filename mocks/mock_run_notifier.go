package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dupcheck/internal/domain"
)

// MockRunNotifier is a mock implementation of port.RunNotifier.
type MockRunNotifier struct {
	mock.Mock
}

func (m *MockRunNotifier) SendRunSummary(ctx context.Context, run *domain.CheckRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
