package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"

	"dupcheck/internal/domain"
)

// MockResultExporter is a mock implementation of port.ResultExporter.
type MockResultExporter struct {
	mock.Mock
}

func (m *MockResultExporter) Export(w io.Writer, run *domain.CheckRun) error {
	args := m.Called(w, run)
	return args.Error(0)
}

func (m *MockResultExporter) FileType() domain.FileType {
	args := m.Called()
	return args.Get(0).(domain.FileType)
}
