// Package realtime carries per-table change notifications from writers to
// subscribers, and gives subscribers a merge function to apply each change
// to their local copy of the table.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action is the kind of row change.
type Action string

const (
	Insert Action = "INSERT"
	Update Action = "UPDATE"
	Delete Action = "DELETE"
)

// Change describes one committed row change. Record holds the full row as
// the read API returns it; for deletes the row's key is in OldRecord.
type Change struct {
	ID              string          `json:"id"`
	Table           string          `json:"table"`
	Type            Action          `json:"type"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// Publisher accepts changes for delivery.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

type keyRecord struct {
	ID string `json:"id"`
}

// NewChange builds an INSERT or UPDATE change carrying row.
func NewChange(table string, action Action, row any) (Change, error) {
	record, err := json.Marshal(row)
	if err != nil {
		return Change{}, fmt.Errorf("realtime.NewChange: marshal %s row: %w", table, err)
	}

	return Change{
		ID:              uuid.NewString(),
		Table:           table,
		Type:            action,
		Record:          record,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}

// NewDelete builds a DELETE change for the row with the given key.
func NewDelete(table, id string) Change {
	old, _ := json.Marshal(keyRecord{ID: id})

	return Change{
		ID:              uuid.NewString(),
		Table:           table,
		Type:            Delete,
		OldRecord:       old,
		CommitTimestamp: time.Now().UTC(),
	}
}

// Notify publishes an INSERT or UPDATE for row. Delivery failures are
// logged, not returned: the write has already committed.
func Notify(ctx context.Context, pub Publisher, log *zap.Logger, table string, action Action, row any) {
	change, err := NewChange(table, action, row)
	if err != nil {
		log.Error("failed to build change", zap.String("table", table), zap.Error(err))
		return
	}
	send(ctx, pub, log, change)
}

// NotifyDelete publishes a DELETE for the row with key id.
func NotifyDelete(ctx context.Context, pub Publisher, log *zap.Logger, table, id string) {
	send(ctx, pub, log, NewDelete(table, id))
}

func send(ctx context.Context, pub Publisher, log *zap.Logger, change Change) {
	if err := pub.Publish(ctx, change); err != nil {
		log.Warn("failed to publish change",
			zap.String("table", change.Table),
			zap.String("type", string(change.Type)),
			zap.Error(err))
	}
}
