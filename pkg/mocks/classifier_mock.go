package mocks

import (
	"context"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/stretchr/testify/mock"
)

// MockClassifier is a mock implementation of condition.IntentClassifier interface.
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Evaluate(ctx context.Context, description string, turn condition.TurnContext) (condition.Match, error) {
	args := m.Called(ctx, description, turn)

	return args.Get(0).(condition.Match), args.Error(1)
}
