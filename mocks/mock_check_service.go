package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"dupcheck/internal/domain"
	"dupcheck/internal/service"
)

// MockCheckService is a mock implementation of service.CheckService.
type MockCheckService struct {
	mock.Mock
}

func (m *MockCheckService) Run(ctx context.Context, input service.CheckInput) (*domain.CheckRun, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckRun), args.Error(1)
}

func (m *MockCheckService) Merge(ctx context.Context, run *domain.CheckRun, rows []int) (*domain.MergeResult, error) {
	args := m.Called(ctx, run, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MergeResult), args.Error(1)
}

func (m *MockCheckService) Export(run *domain.CheckRun, fileType domain.FileType, w io.Writer) error {
	args := m.Called(run, fileType, w)
	return args.Error(0)
}
