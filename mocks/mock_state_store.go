package mocks

import (
	"github.com/stretchr/testify/mock"

	"dupcheck/internal/port"
)

// MockStateStore is a mock implementation of port.StateStore.
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) Load() (*port.LastUsed, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.LastUsed), args.Error(1)
}

func (m *MockStateStore) Save(state *port.LastUsed) error {
	args := m.Called(state)
	return args.Error(0)
}
