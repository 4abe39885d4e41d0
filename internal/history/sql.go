package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"visual-spec-compiler/internal/models"
)

// Dialect selects the DDL and error mapping for a database/sql backend. Both
// drivers accept $N placeholders, so queries are shared.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// The spec column is JSON (not JSONB) in Postgres so the stored text is kept
// byte for byte.
var schema = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS generation_history (
			id                  BIGSERIAL PRIMARY KEY,
			uuid                TEXT        NOT NULL,
			spec                JSON        NOT NULL,
			generated_image_url TEXT        NOT NULL DEFAULT '',
			status              TEXT        NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS generation_history_uuid_idx ON generation_history (uuid)`,
		`CREATE INDEX IF NOT EXISTS generation_history_created_at_idx ON generation_history (created_at DESC)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS generation_history (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid                TEXT     NOT NULL,
			spec                TEXT     NOT NULL,
			generated_image_url TEXT     NOT NULL DEFAULT '',
			status              TEXT     NOT NULL,
			created_at          DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS generation_history_uuid_idx ON generation_history (uuid)`,
		`CREATE INDEX IF NOT EXISTS generation_history_created_at_idx ON generation_history (created_at DESC)`,
	},
}

// SQLStore keeps history in a generation_history table.
type SQLStore struct {
	DB      *sql.DB
	dialect Dialect
	now     clock
}

// NewSQLStore creates the table and indexes if they do not exist yet.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	stmts, ok := schema[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create generation_history schema: %w", err)
		}
	}
	return &SQLStore{DB: db, dialect: dialect, now: systemClock}, nil
}

func (s *SQLStore) Append(ctx context.Context, rec models.GenerationHistory) (*models.GenerationHistory, error) {
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("invalid generation status %q", rec.Status)
	}
	if len(rec.Spec) == 0 {
		return nil, errors.New("generation record has no spec")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	rec.CreatedAt = stamp(s.now)

	query := `
		INSERT INTO generation_history (uuid, spec, generated_image_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.DB.QueryRowContext(ctx, query,
		rec.UUID,
		string(rec.Spec),
		rec.GeneratedImageURL,
		string(rec.Status),
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert generation record: %w", err)
	}

	return &rec, nil
}

func (s *SQLStore) GetByUUID(ctx context.Context, id string) (*models.GenerationHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, uuid, spec, generated_image_url, status, created_at
		FROM generation_history
		WHERE uuid = $1
	`

	rec, err := scanRecord(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation record: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]models.GenerationHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, uuid, spec, generated_image_url, status, created_at
		FROM generation_history
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list generation records: %w", err)
	}
	defer rows.Close()

	records := []models.GenerationHistory{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list generation records: %w", err)
	}
	return records, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.GenerationHistory, error) {
	rec := &models.GenerationHistory{}
	var spec []byte
	var status string

	err := row.Scan(
		&rec.ID,
		&rec.UUID,
		&spec,
		&rec.GeneratedImageURL,
		&status,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Spec = spec
	rec.Status = models.GenerationStatus(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
