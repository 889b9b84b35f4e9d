package realtime

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Keyed rows can be merged by Apply.
type Keyed interface {
	Key() string
}

// Apply returns rows with change applied; rows itself is not modified.
//
// INSERT and UPDATE upsert the decoded record by key, so a replayed or
// reordered notification never duplicates a row. DELETE removes the key
// and is a no-op when the row is already gone. When less is non-nil the
// result is re-sorted with it after an upsert.
func Apply[T Keyed](rows []T, change Change, less func(a, b T) bool) ([]T, error) {
	switch change.Type {
	case Insert, Update:
		if len(change.Record) == 0 {
			return nil, fmt.Errorf("realtime.Apply: %s %s without record", change.Table, change.Type)
		}

		var row T
		if err := json.Unmarshal(change.Record, &row); err != nil {
			return nil, fmt.Errorf("realtime.Apply: decode %s record: %w", change.Table, err)
		}

		out := slices.Clone(rows)
		if i := indexOf(out, row.Key()); i >= 0 {
			out[i] = row
		} else {
			out = append(out, row)
		}

		if less != nil {
			sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
		}
		return out, nil

	case Delete:
		var old keyRecord
		if err := json.Unmarshal(change.OldRecord, &old); err != nil {
			return nil, fmt.Errorf("realtime.Apply: decode %s old record: %w", change.Table, err)
		}

		i := indexOf(rows, old.ID)
		if i < 0 {
			return slices.Clone(rows), nil
		}
		return slices.Delete(slices.Clone(rows), i, i+1), nil

	default:
		return nil, fmt.Errorf("realtime.Apply: unknown change type %q", change.Type)
	}
}

func indexOf[T Keyed](rows []T, key string) int {
	return slices.IndexFunc(rows, func(r T) bool { return r.Key() == key })
}

// changeKey is the key of the row change touches, if it can be decoded.
func changeKey[T Keyed](change Change) (string, bool) {
	if change.Type == Delete {
		var old keyRecord
		if err := json.Unmarshal(change.OldRecord, &old); err != nil {
			return "", false
		}
		return old.ID, true
	}

	var row T
	if err := json.Unmarshal(change.Record, &row); err != nil {
		return "", false
	}
	return row.Key(), true
}

// Mirror is a concurrency-safe local copy of one table kept current by
// applying changes.
//
// The mirror remembers the commit time of the last change applied to each
// key and ignores anything older for that key, so a late UPDATE cannot
// overwrite a newer row and cannot bring back a deleted one.
type Mirror[T Keyed] struct {
	table string
	less  func(a, b T) bool

	mu      sync.RWMutex
	rows    []T
	applied map[string]time.Time
}

// NewMirror seeds a mirror of table with rows.
func NewMirror[T Keyed](table string, rows []T, less func(a, b T) bool) *Mirror[T] {
	m := &Mirror[T]{table: table, less: less}
	m.Reset(rows)
	return m
}

// Apply merges change into the mirror. Changes for other tables are
// rejected; stale changes are skipped without error.
func (m *Mirror[T]) Apply(change Change) error {
	if change.Table != m.table {
		return fmt.Errorf("realtime.Mirror: change for %q applied to %q", change.Table, m.table)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key, keyed := changeKey[T](change)
	if keyed && !change.CommitTimestamp.IsZero() {
		if last, ok := m.applied[key]; ok && change.CommitTimestamp.Before(last) {
			return nil
		}
	}

	rows, err := Apply(m.rows, change, m.less)
	if err != nil {
		return err
	}
	m.rows = rows
	if keyed && !change.CommitTimestamp.IsZero() {
		m.applied[key] = change.CommitTimestamp
	}
	return nil
}

// Reset replaces the mirror's contents, e.g. after a resubscribe.
func (m *Mirror[T]) Reset(rows []T) {
	rows = slices.Clone(rows)
	if m.less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return m.less(rows[i], rows[j]) })
	}

	m.mu.Lock()
	m.rows = rows
	m.applied = make(map[string]time.Time)
	m.mu.Unlock()
}

// Rows returns a copy of the current contents.
func (m *Mirror[T]) Rows() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rows)
}

// Table is the mirrored table name.
func (m *Mirror[T]) Table() string { return m.table }
