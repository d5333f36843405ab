// Package file provides file-based persistence for workflow snapshots.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
// A leading file:// scheme is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
	}
}

// Root returns the directory snapshots are stored under.
func (fp *Persistence) Root() string {
	return fp.root
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("persistence root %s: %w", fp.root, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("persistence root %s is not a directory", fp.root)
	}

	return nil
}

// Load returns the snapshot stored under id.
func (fp *Persistence) Load(ctx context.Context, id string) (*models.Snapshot, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

// Save writes the snapshot, replacing any previous one with the same id.
func (fp *Persistence) Save(ctx context.Context, snapshot *models.Snapshot) error {
	return fp.workflowRepo.Save(ctx, snapshot)
}

// Delete removes the snapshot stored under id.
func (fp *Persistence) Delete(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

// List returns summaries of every stored workflow.
func (fp *Persistence) List(ctx context.Context) ([]persistence.WorkflowSummary, error) {
	snapshots, err := fp.workflowRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]persistence.WorkflowSummary, 0, len(snapshots))
	for _, snapshot := range snapshots {
		summaries = append(summaries, persistence.Summarize(snapshot))
	}

	persistence.SortSummaries(summaries)

	return summaries, nil
}
