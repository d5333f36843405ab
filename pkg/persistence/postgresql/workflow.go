package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// List returns summaries ordered by name, then id.
func (r *WorkflowRepository) List(ctx context.Context) ([]persistence.WorkflowSummary, error) {
	query := `
		SELECT id, name, node_count, saved_at
		FROM workflows
		ORDER BY name ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	summaries := make([]persistence.WorkflowSummary, 0)

	for rows.Next() {
		var (
			summary persistence.WorkflowSummary
			savedAt sql.NullTime
		)

		err := rows.Scan(&summary.ID, &summary.Name, &summary.NodeCount, &savedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		if savedAt.Valid {
			summary.SavedAt = savedAt.Time.UTC()
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return summaries, nil
}

// GetByID retrieves a snapshot by its workflow id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Snapshot, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT snapshot FROM workflows WHERE id = $1", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("Load", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query workflow %s: %w", id, err)
	}

	var snapshot models.Snapshot

	err = json.Unmarshal(data, &snapshot)
	if err != nil {
		return nil, persistence.NewWorkflowError("Load", id, fmt.Errorf("%w: %w", persistence.ErrCorruptSnapshot, err))
	}

	return &snapshot, nil
}

// Save upserts a snapshot keyed by its workflow id.
func (r *WorkflowRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot.ID == "" {
		return persistence.NewWorkflowError("Save", snapshot.ID, persistence.ErrMissingWorkflowID)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", snapshot.ID, err)
	}

	var savedAt sql.NullTime
	if !snapshot.SavedAt.IsZero() {
		savedAt = sql.NullTime{Time: snapshot.SavedAt, Valid: true}
	}

	query := `
		INSERT INTO workflows (id, name, schema_version, snapshot, saved_at, node_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			schema_version = EXCLUDED.schema_version,
			snapshot = EXCLUDED.snapshot,
			saved_at = EXCLUDED.saved_at,
			node_count = EXCLUDED.node_count,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.Name,
		snapshot.SchemaVersion,
		string(data),
		savedAt,
		len(snapshot.Nodes),
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", snapshot.ID, err)
	}

	return nil
}

// Delete removes a snapshot by its workflow id.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for workflow %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
