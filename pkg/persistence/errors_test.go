package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowError(t *testing.T) {
	t.Parallel()

	t.Run("unwraps to the sentinel", func(t *testing.T) {
		err := persistence.NewWorkflowError("Load", "wf-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrWorkflowNotFound))
		assert.False(t, persistence.IsCorruptSnapshot(err))
	})

	t.Run("survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("open: %w", persistence.NewWorkflowError("Load", "wf-123", persistence.ErrCorruptSnapshot))

		assert.True(t, persistence.IsCorruptSnapshot(err))

		var workflowErr *persistence.WorkflowError
		assert.True(t, errors.As(err, &workflowErr))
		assert.Equal(t, "wf-123", workflowErr.WorkflowID)
	})

	t.Run("message carries context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Delete", "wf-9", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "wf-9")
		assert.Contains(t, err.Error(), "workflow not found")
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	snapshot := models.NewSnapshot(&models.Workflow{
		ID:    "wf-1",
		Name:  "Support",
		Nodes: []*models.Node{{ID: "t", Kind: models.NodeKindTrigger, Config: &models.TriggerConfig{}}},
	})

	summary := persistence.Summarize(snapshot)

	assert.Equal(t, "wf-1", summary.ID)
	assert.Equal(t, "Support", summary.Name)
	assert.Equal(t, 1, summary.NodeCount)
}
