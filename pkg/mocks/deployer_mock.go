package mocks

import (
	"context"

	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockDeployer is a mock implementation of deploy.Deployer interface.
type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) Deploy(ctx context.Context, definition *models.RoutingDefinition) (deploy.Handle, error) {
	args := m.Called(ctx, definition)

	return args.Get(0).(deploy.Handle), args.Error(1)
}
