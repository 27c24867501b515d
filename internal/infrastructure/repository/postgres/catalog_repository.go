package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS catalog_documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	title TEXT NOT NULL,
	filename TEXT NOT NULL,
	external_ref TEXT,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_documents_tenant ON catalog_documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_catalog_documents_created_at ON catalog_documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ListDocuments returns the tenant's indexed documents. A non-empty
// documentIDs slice narrows the set; only indexed documents count as
// searchable.
func (r *CatalogRepository) ListDocuments(ctx context.Context, tenantID string, documentIDs []string) ([]domain.CatalogDocument, error) {
	query := `
SELECT id, tenant_id, title, filename, COALESCE(external_ref, ''), status, created_at
FROM catalog_documents
WHERE tenant_id = $1 AND status = 'indexed'
`
	args := []any{tenantID}
	if len(documentIDs) > 0 {
		placeholders := make([]string, 0, len(documentIDs))
		for _, id := range documentIDs {
			args = append(args, id)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query += fmt.Sprintf("AND id IN (%s)\n", strings.Join(placeholders, ","))
	}
	query += "ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list catalog documents: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogDocument
	for rows.Next() {
		var doc domain.CatalogDocument
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.Filename, &doc.ExternalRef, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan catalog document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog documents: %w", err)
	}
	return out, nil
}
