package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

type AnswerCacheRepository struct {
	db *sql.DB
}

func NewAnswerCacheRepository(db *sql.DB) *AnswerCacheRepository {
	return &AnswerCacheRepository{db: db}
}

func (r *AnswerCacheRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS answer_cache (
	tenant_id TEXT NOT NULL,
	question_hash TEXT NOT NULL,
	payload JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, question_hash)
);

CREATE INDEX IF NOT EXISTS idx_answer_cache_expires_at ON answer_cache(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Get returns (nil, nil) on a miss. An entry past its expiry is treated
// as a miss; the janitor removes it later.
func (r *AnswerCacheRepository) Get(ctx context.Context, tenantID, questionHash string) (*domain.CacheEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload, expires_at
FROM answer_cache
WHERE tenant_id = $1 AND question_hash = $2
`, tenantID, questionHash)

	entry := domain.CacheEntry{
		TenantID:     tenantID,
		QuestionHash: questionHash,
	}
	if err := row.Scan(&entry.Payload, &entry.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrCacheUnavailable, "cache_get", err)
	}
	if entry.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return &entry, nil
}

// Put upserts last-writer-wins: concurrent identical questions each
// compute their own payload and the later write sticks.
func (r *AnswerCacheRepository) Put(ctx context.Context, entry domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO answer_cache (tenant_id, question_hash, payload, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, question_hash)
DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
`, entry.TenantID, entry.QuestionHash, entry.Payload, entry.ExpiresAt)
	if err != nil {
		return domain.WrapError(domain.ErrCacheUnavailable, "cache_put", err)
	}
	return nil
}

func (r *AnswerCacheRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM answer_cache
WHERE expires_at < $1
`, time.Now().UTC())
	if err != nil {
		return 0, domain.WrapError(domain.ErrCacheUnavailable, "cache_delete_expired", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
