// Package redis provides Redis persistence for workflow snapshots.
// Snapshots are stored as zstd-compressed JSON under <prefix>:workflow:<id>;
// the set <prefix>:workflows indexes the stored ids.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/persistence"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by the adapter.
const DefaultKeyPrefix = "callflow"

// Persistence implements the persistence layer on top of Redis.
type Persistence struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	prefix  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Option customizes a Persistence.
type Option func(*Persistence)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(p *Persistence) {
		p.prefix = prefix
	}
}

// NewPersistence connects to the Redis server at redisURL (redis:// or rediss://).
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string, opts ...Option) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewPersistenceWithClient(client, logger, opts...)
}

// NewPersistenceWithClient wraps an existing client. The client is closed by Close.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, opts ...Option) (*Persistence, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	p := &Persistence{
		client:  client,
		logger:  logger,
		prefix:  DefaultKeyPrefix,
		encoder: encoder,
		decoder: decoder,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func (p *Persistence) workflowKey(id string) string {
	return p.prefix + ":workflow:" + id
}

func (p *Persistence) indexKey() string {
	return p.prefix + ":workflows"
}

// Close releases the client and the codec.
func (p *Persistence) Close(_ context.Context) error {
	_ = p.encoder.Close()
	p.decoder.Close()

	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Load returns the snapshot stored under id.
func (p *Persistence) Load(ctx context.Context, id string) (*models.Snapshot, error) {
	data, err := p.client.Get(ctx, p.workflowKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewWorkflowError("Load", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	return p.decode(id, data)
}

func (p *Persistence) decode(id string, data []byte) (*models.Snapshot, error) {
	raw, err := p.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, persistence.NewWorkflowError("Load", id, fmt.Errorf("%w: %w", persistence.ErrCorruptSnapshot, err))
	}

	var snapshot models.Snapshot

	err = json.Unmarshal(raw, &snapshot)
	if err != nil {
		return nil, persistence.NewWorkflowError("Load", id, fmt.Errorf("%w: %w", persistence.ErrCorruptSnapshot, err))
	}

	return &snapshot, nil
}

// Save writes the snapshot and indexes its id in one transaction.
func (p *Persistence) Save(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot.ID == "" {
		return persistence.NewWorkflowError("Save", snapshot.ID, persistence.ErrMissingWorkflowID)
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", snapshot.ID, err)
	}

	data := p.encoder.EncodeAll(raw, nil)

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.workflowKey(snapshot.ID), data, 0)
		pipe.SAdd(ctx, p.indexKey(), snapshot.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", snapshot.ID, err)
	}

	p.logger.DebugContext(ctx, "Saved workflow", "workflow_id", snapshot.ID, "bytes", len(data), "raw_bytes", len(raw))

	return nil
}

// Delete removes the snapshot stored under id.
func (p *Persistence) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, p.workflowKey(id))
		pipe.SRem(ctx, p.indexKey(), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// List returns summaries of every indexed workflow. Index entries whose key has
// vanished are skipped.
func (p *Persistence) List(ctx context.Context) ([]persistence.WorkflowSummary, error) {
	ids, err := p.client.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	summaries := make([]persistence.WorkflowSummary, 0, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.workflowKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflows: %w", err)
	}

	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Indexed workflow is missing", "workflow_id", ids[i])

			continue
		}

		snapshot, err := p.decode(ids[i], []byte(data))
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, persistence.Summarize(snapshot))
	}

	persistence.SortSummaries(summaries)

	return summaries, nil
}
