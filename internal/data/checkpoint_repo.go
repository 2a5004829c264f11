package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

const checkpointKeyPrefix = "statline:checkpoint:"

// CheckpointRepo stores the latest checkpoint snapshot per lane in Redis.
// Keying by lane rather than job id means resume needs no job-id argument:
// the one-running-job-per-lane invariant guarantees at most one snapshot.
type CheckpointRepo struct {
	client redis.UniversalClient
}

var _ core.CheckpointStore = (*CheckpointRepo)(nil)

// NewCheckpointRepo creates a CheckpointRepo with the given Redis client.
func NewCheckpointRepo(client redis.UniversalClient) *CheckpointRepo {
	return &CheckpointRepo{client: client}
}

func checkpointKey(lane model.Lane) string {
	return checkpointKeyPrefix + lane.String()
}

// Save overwrites the lane's snapshot. Snapshots carry no TTL: a failed run
// must stay resumable indefinitely.
func (r *CheckpointRepo) Save(ctx context.Context, snapshot *model.Checkpoint) error {
	if snapshot == nil {
		return errors.New("checkpoint snapshot is required")
	}
	if snapshot.JobID == "" {
		return errors.New("checkpoint requires a job id")
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, checkpointKey(snapshot.Lane()), raw, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", snapshot.Lane(), err)
	}
	return nil
}

// Load returns the lane's snapshot, or nil when none exists.
func (r *CheckpointRepo) Load(ctx context.Context, lane model.Lane) (*model.Checkpoint, error) {
	raw, err := r.client.Get(ctx, checkpointKey(lane)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", lane, err)
	}

	var snapshot model.Checkpoint
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", lane, err)
	}
	return &snapshot, nil
}

// Clear deletes the lane's snapshot. Called only on verified completion.
func (r *CheckpointRepo) Clear(ctx context.Context, lane model.Lane) error {
	if err := r.client.Del(ctx, checkpointKey(lane)).Err(); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", lane, err)
	}
	return nil
}
