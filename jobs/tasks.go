// Package jobs hosts the asynq task definitions and worker wiring.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/portalescola/portalescola/internal/auth"
	"github.com/portalescola/portalescola/internal/authz"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuthzInvalidate is the task type for dropping the cached
	// permission resolutions of every user assigned an edited role.
	TaskTypeAuthzInvalidate = "authz:invalidate"
)

// AuthzInvalidatePayload names the dynamic role whose assignees need a
// fresh resolution.
type AuthzInvalidatePayload struct {
	RoleID string `json:"roleId"`
}

// NewAuthzInvalidateTask constructs an Asynq task.
func NewAuthzInvalidateTask(payload AuthzInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuthzInvalidate, data), nil
}

// NewAuthzInvalidateHandler builds the handler for
// TaskTypeAuthzInvalidate. It looks up who carries the role and
// broadcasts per-user invalidations to every service instance; the
// cache TTL still bounds staleness when the fanout lags or fails.
func NewAuthzInvalidateHandler(index auth.AssignmentIndex, broadcaster *authz.CacheBroadcaster, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuthzInvalidatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		userIDs, err := index.ListUserIDsByDynamicRole(ctx, payload.RoleID)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			if err := broadcaster.Invalidate(ctx, userID); err != nil {
				return err
			}
		}
		logger.Info("permission cache invalidated",
			slog.String("role_id", payload.RoleID),
			slog.Int("users", len(userIDs)))
		return nil
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// RoleChanged enqueues an invalidation fanout for the role. Satisfies
// the role service's change notifier.
func (c *Client) RoleChanged(ctx context.Context, roleID string) error {
	task, err := NewAuthzInvalidateTask(AuthzInvalidatePayload{RoleID: roleID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
