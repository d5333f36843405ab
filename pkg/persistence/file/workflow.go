package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository handles workflow-related file operations.
// Each snapshot lives in <root>/workflows/<id>.json.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, workflowsDir)
}

func (wr *WorkflowRepository) path(id string) (string, error) {
	if id == "" {
		return "", persistence.ErrMissingWorkflowID
	}

	if id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", persistence.ErrInvalidWorkflowID
	}

	return filepath.Join(wr.dir(), id+".json"), nil
}

// GetAll loads every snapshot on disk.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Snapshot, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	snapshots := make([]*models.Snapshot, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		snapshot, err := wr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// GetByID retrieves a snapshot by its workflow id.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Snapshot, error) {
	filePath, err := wr.path(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("Load", id, err)
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("Load", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var snapshot models.Snapshot

	err = json.Unmarshal(body, &snapshot)
	if err != nil {
		return nil, persistence.NewWorkflowError("Load", id, fmt.Errorf("%w: %w", persistence.ErrCorruptSnapshot, err))
	}

	return &snapshot, nil
}

// Save writes the snapshot atomically through a temporary file in the same directory.
func (wr *WorkflowRepository) Save(_ context.Context, snapshot *models.Snapshot) error {
	filePath, err := wr.path(snapshot.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", snapshot.ID, err)
	}

	err = os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", snapshot.ID, err)
	}

	tmp, err := os.CreateTemp(wr.dir(), "."+snapshot.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for workflow %s: %w", snapshot.ID, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write workflow %s: %w", snapshot.ID, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", snapshot.ID, err)
	}

	return os.Rename(tmp.Name(), filePath)
}

// Delete removes a snapshot by its workflow id.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	filePath, err := wr.path(id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	err = os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
