// Package progress publishes per-page pipeline progress through Redis so the
// browser progress bar can poll it while the worker grinds through a PDF.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyTTL = time.Hour

type Snapshot struct {
	PagesDone  int       `json:"pages_done"`
	PagesTotal int       `json:"pages_total"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Tracker struct {
	client *redis.Client
}

func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

func (t *Tracker) Set(ctx context.Context, jobID uuid.UUID, done, total int) error {
	data, err := json.Marshal(Snapshot{
		PagesDone:  done,
		PagesTotal: total,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return t.client.Set(ctx, key(jobID), data, keyTTL).Err()
}

// Get returns nil without error when no progress has been published, which
// callers treat as "not started yet or already expired".
func (t *Tracker) Get(ctx context.Context, jobID uuid.UUID) (*Snapshot, error) {
	val, err := t.client.Get(ctx, key(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &snap, nil
}

func (t *Tracker) Clear(ctx context.Context, jobID uuid.UUID) error {
	return t.client.Del(ctx, key(jobID)).Err()
}

func key(jobID uuid.UUID) string {
	return "textlift:progress:" + jobID.String()
}
