package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/platform/db"
)

// Activity represents one domain action recorded in activity_logs. Old and
// new values are before/after snapshots of the mutated aggregate.
type Activity struct {
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
	Actor      Actor
	At         time.Time
}

// ActivityRecorder writes the durable append-only record of domain actions.
// Recording is synchronous and part of the triggering operation: a failure
// here propagates and aborts the caller's unit of work, and the row itself
// rides the caller's open transaction, so an aborted operation leaves no
// activity behind either.
type ActivityRecorder struct {
	pool *pgxpool.Pool
}

// NewActivityRecorder returns a new ActivityRecorder.
func NewActivityRecorder(pool *pgxpool.Pool) *ActivityRecorder {
	return &ActivityRecorder{pool: pool}
}

// Record persists the activity entry.
func (r *ActivityRecorder) Record(ctx context.Context, act Activity) error {
	if r == nil {
		return errors.New("activity recorder not initialised")
	}
	if act.Action == "" || act.EntityType == "" || act.EntityID == "" {
		return errors.New("activity requires action/entity_type/entity_id")
	}
	oldJSON, err := json.Marshal(act.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(act.NewValues)
	if err != nil {
		return err
	}
	_, err = db.ExecutorFrom(ctx, r.pool).Exec(ctx, `INSERT INTO activity_logs (action, entity_type, entity_id, old_values, new_values, actor_id, actor_ip, actor_user_agent, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		act.Action, act.EntityType, act.EntityID, oldJSON, newJSON, act.Actor.ID, act.Actor.IP, act.Actor.UserAgent, nullActivityTime(act.At))
	return err
}

func nullActivityTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
