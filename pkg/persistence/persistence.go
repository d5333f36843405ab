// Package persistence provides the storage abstraction for workflow snapshots.
package persistence

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/callflow/pkg/models"
)

// WorkflowSummary is the listing view of a stored workflow.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	SavedAt   time.Time `json:"saved_at"`
}

// Summarize builds the listing view of a snapshot.
func Summarize(snapshot *models.Snapshot) WorkflowSummary {
	return WorkflowSummary{
		ID:        snapshot.ID,
		Name:      snapshot.Name,
		NodeCount: len(snapshot.Nodes),
		SavedAt:   snapshot.SavedAt,
	}
}

// Persistence stores workflow snapshots keyed by workflow id.
// Save overwrites any existing snapshot with the same id; last write wins.
// Load and Delete return ErrWorkflowNotFound for unknown ids.
type Persistence interface {
	Load(ctx context.Context, id string) (*models.Snapshot, error)
	Save(ctx context.Context, snapshot *models.Snapshot) error
	Delete(ctx context.Context, id string) error
	// List returns summaries sorted by name, then id.
	List(ctx context.Context) ([]WorkflowSummary, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// SortSummaries orders summaries by name, then id.
func SortSummaries(summaries []WorkflowSummary) {
	slices.SortFunc(summaries, func(a, b WorkflowSummary) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}
