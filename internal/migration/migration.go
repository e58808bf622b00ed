// Package migration implements the background index-rebuild subsystem
// mentioned in §5 ("a Migration subsystem ... exposes a cancel_requested
// flag checked at batch boundaries of 100 vectors"). Grounded on the
// teacher's use of github.com/google/uuid for stable external handles,
// repurposed here to identify a running migration instead of a user
// session.
package migration

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// BatchSize is the cancellation check boundary fixed by §5.
const BatchSize = 100

// RowSource enumerates a Vector Store's live rows for rebuild, in
// ascending row order.
type RowSource func(fn func(row int, vec []float32) error) error

// IndexBuilder inserts one row into the index being rebuilt.
type IndexBuilder func(row int, vec []float32) error

// Status reports migration progress for polling callers.
type Status struct {
	ID        uuid.UUID
	Processed int
	Done      bool
	Cancelled bool
	Err       error
}

// Migration rebuilds an index from scratch by replaying a Vector Store's
// live rows into a fresh index builder, checking for cancellation every
// BatchSize rows.
type Migration struct {
	id              uuid.UUID
	cancelRequested atomic.Bool
	processed       atomic.Int64
	done            atomic.Bool
}

// New creates a migration with a fresh identifier.
func New() *Migration {
	return &Migration{id: uuid.New()}
}

// ID returns the migration's stable identifier.
func (m *Migration) ID() uuid.UUID { return m.id }

// Cancel requests cancellation; it takes effect at the next batch
// boundary, not mid-batch, per §5.
func (m *Migration) Cancel() {
	m.cancelRequested.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (m *Migration) Cancelled() bool {
	return m.cancelRequested.Load()
}

// Processed reports how many rows have been replayed so far.
func (m *Migration) Processed() int {
	return int(m.processed.Load())
}

// Done reports whether the migration has finished (successfully or via
// cancellation).
func (m *Migration) Done() bool {
	return m.done.Load()
}

// Run replays every live row from source into build, checking
// m.Cancelled() at each 100-row batch boundary. ctx cancellation is also
// honored between batches so a caller can bound the call with a timeout.
// A cancellation (either source) stops the replay cleanly and returns nil;
// callers distinguish a cancelled migration from a completed one via
// m.Cancelled().
func (m *Migration) Run(ctx context.Context, source RowSource, build IndexBuilder) error {
	defer m.done.Store(true)
	count := 0
	err := source(func(row int, vec []float32) error {
		if count > 0 && count%BatchSize == 0 {
			select {
			case <-ctx.Done():
				m.cancelRequested.Store(true)
				return errCancelled{}
			default:
			}
			if m.cancelRequested.Load() {
				return errCancelled{}
			}
		}
		if err := build(row, vec); err != nil {
			return err
		}
		count++
		m.processed.Store(int64(count))
		return nil
	})
	if err != nil {
		if _, ok := err.(errCancelled); ok {
			return nil // cancellation is a clean stop, not a failure
		}
		return err
	}
	return nil
}

type errCancelled struct{}

func (e errCancelled) Error() string { return "migration: cancelled" }
