package actuator

import (
	"context"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockBridge is a testify mock of the Bridge interface.
type MockBridge struct {
	mock.Mock
}

var _ Bridge = (*MockBridge)(nil)

func (m *MockBridge) Switch(ctx context.Context, cmd types.SwitchCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockBridge) Close() error {
	args := m.Called()
	return args.Error(0)
}
