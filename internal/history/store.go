package history

import (
	"context"
	"errors"
	"time"

	"visual-spec-compiler/internal/models"
)

// Sentinel errors, compared with errors.Is
var (
	ErrNotFound  = errors.New("generation record not found")
	ErrDuplicate = errors.New("generation record with this uuid already exists")
)

// opTimeout bounds every store operation.
const opTimeout = 5 * time.Second

// Store is the append-only log of generation attempts. Records are never
// updated or deleted.
type Store interface {
	// Append assigns ID, CreatedAt and (when empty) UUID, then persists rec.
	Append(ctx context.Context, rec models.GenerationHistory) (*models.GenerationHistory, error)
	GetByUUID(ctx context.Context, uuid string) (*models.GenerationHistory, error)
	// ListAll returns every record, newest first.
	ListAll(ctx context.Context) ([]models.GenerationHistory, error)
	Ping(ctx context.Context) error
	Close() error
}

// clock returns record timestamps. Stores keep millisecond precision in UTC
// so every backend round-trips the same value.
type clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}

func stamp(now clock) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}
