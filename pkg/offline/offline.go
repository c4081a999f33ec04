// Package offline queues mutations made without connectivity and replays
// them in order once the network is back. The queue persists in a local
// SQLite file so entries survive app restarts; replay goes through an
// injected Backend so the store knows nothing about HTTP.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxAttempts failed replays move an entry to the dead letter set. Dead
// entries stay in the file for inspection but are never retried.
const maxAttempts = 5

// drainBatchSize caps one Apply call. Must not exceed the sync
// endpoint's per-request operation ceiling.
const drainBatchSize = 200

// ErrDrainInProgress is returned when a drain is already running; the
// caller can simply try again later, the running drain covers its work.
var ErrDrainInProgress = errors.New("offline: drain already in progress")

// Operation is one queued mutation, mirrored by the sync endpoint.
type Operation struct {
	Op         string          `json:"op"`
	Collection string          `json:"collection"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Result is the server verdict for one operation.
type Result struct {
	OK       bool   `json:"ok"`
	EntityID string `json:"entity_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Backend replays a FIFO slice of operations and reports one Result per
// operation, in the same order.
type Backend interface {
	Apply(ctx context.Context, ops []Operation) ([]Result, error)
}

// ConnectivitySource emits true when the network comes up and false when
// it goes away.
type ConnectivitySource interface {
	Events() <-chan bool
}

// SyncOperation is the persisted queue row.
type SyncOperation struct {
	ID         uint   `gorm:"primaryKey"`
	Op         string `gorm:"not null"`
	Collection string `gorm:"not null"`
	EntityID   string
	Payload    string `gorm:"type:text"`
	Attempts   int    `gorm:"not null;default:0"`
	Dead       bool   `gorm:"not null;default:false;index"`
	EnqueuedAt time.Time
}

// Queue is the offline mutation queue. Construct with Open and release
// with Close; both are explicit so callers control the file lifetime.
type Queue struct {
	db      *gorm.DB
	backend Backend

	drainMu sync.Mutex // held for the whole drain; TryLock keeps drains single
}

// Open creates or opens the queue file and prepares its schema.
func Open(path string, backend Backend) (*Queue, error) {
	if backend == nil {
		return nil, errors.New("offline: backend is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("offline: open queue db: %w", err)
	}
	if err := db.AutoMigrate(&SyncOperation{}); err != nil {
		return nil, fmt.Errorf("offline: migrate queue schema: %w", err)
	}
	return &Queue{db: db, backend: backend}, nil
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	sqlDB, err := q.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Enqueue appends a mutation. payload is marshalled as the operation body
// the sync endpoint will receive.
func (q *Queue) Enqueue(op, collection, entityID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("offline: marshal payload: %w", err)
	}
	return q.db.Create(&SyncOperation{
		Op:         op,
		Collection: collection,
		EntityID:   entityID,
		Payload:    string(raw),
		EnqueuedAt: time.Now(),
	}).Error
}

// Pending counts live (non-dead) entries.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&SyncOperation{}).Where("dead = ?", false).Count(&n).Error
	return n, err
}

// DeadLetters returns the entries that exhausted their attempts.
func (q *Queue) DeadLetters(ctx context.Context) ([]SyncOperation, error) {
	var rows []SyncOperation
	err := q.db.WithContext(ctx).Where("dead = ?", true).Order("id ASC").Find(&rows).Error
	return rows, err
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Applied int
	Failed  int
	Dead    int
}

// Drain replays all live entries FIFO, in batches no larger than the
// sync endpoint accepts. An entry is deleted only after the backend
// confirms it; a failed entry keeps its place, gets its attempt counter
// bumped, and the pass moves on. Entries that reach the attempt ceiling
// are dead-lettered. Only one drain runs at a time.
func (q *Queue) Drain(ctx context.Context) (DrainStats, error) {
	if !q.drainMu.TryLock() {
		return DrainStats{}, ErrDrainInProgress
	}
	defer q.drainMu.Unlock()

	var stats DrainStats

	var rows []SyncOperation
	if err := q.db.WithContext(ctx).
		Where("dead = ?", false).Order("id ASC").
		Find(&rows).Error; err != nil {
		return stats, fmt.Errorf("offline: load queue: %w", err)
	}

	for start := 0; start < len(rows); start += drainBatchSize {
		end := start + drainBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := q.drainBatch(ctx, rows[start:end], &stats); err != nil {
			// Earlier batches are already confirmed; the rest stays queued
			return stats, err
		}
	}
	return stats, nil
}

func (q *Queue) drainBatch(ctx context.Context, rows []SyncOperation, stats *DrainStats) error {
	ops := make([]Operation, 0, len(rows))
	for _, r := range rows {
		ops = append(ops, Operation{
			Op:         r.Op,
			Collection: r.Collection,
			EntityID:   r.EntityID,
			Payload:    json.RawMessage(r.Payload),
		})
	}

	results, err := q.backend.Apply(ctx, ops)
	if err != nil {
		// Transport failure: nothing in this batch was confirmed
		return fmt.Errorf("offline: replay batch: %w", err)
	}
	if len(results) != len(rows) {
		return fmt.Errorf("offline: backend returned %d results for %d operations", len(results), len(rows))
	}

	for i, res := range results {
		row := rows[i]
		if res.OK {
			if err := q.db.WithContext(ctx).Delete(&SyncOperation{}, row.ID).Error; err != nil {
				return fmt.Errorf("offline: delete confirmed entry: %w", err)
			}
			stats.Applied++
			continue
		}

		stats.Failed++
		updates := map[string]any{"attempts": row.Attempts + 1}
		if row.Attempts+1 >= maxAttempts {
			updates["dead"] = true
			stats.Dead++
		}
		if err := q.db.WithContext(ctx).Model(&SyncOperation{}).
			Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("offline: record failed attempt: %w", err)
		}
	}
	return nil
}

// drainInterval is the periodic retry cadence between connectivity
// events, for entries that failed while the network was nominally up.
const drainInterval = 5 * time.Minute

// Watch drains whenever the connectivity source reports the network is
// back, and periodically in between. Blocks until ctx is cancelled or
// the source closes its channel.
func (q *Queue) Watch(ctx context.Context, src ConnectivitySource) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-src.Events():
			if !ok {
				return
			}
			if !online {
				continue
			}
			if _, err := q.Drain(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
				// The next event or tick retries; entries are safe on disk
				continue
			}
		case <-ticker.C:
			_, _ = q.Drain(ctx)
		}
	}
}
