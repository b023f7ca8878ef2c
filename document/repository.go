package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists document references.
type Repository interface {
	Insert(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	ListByClaim(ctx context.Context, claimID string) ([]Document, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const documentColumns = `
	id::text, claim_id::text, original_file_name, file_name, file_size, content_type,
	COALESCE(description, ''), uploaded_by, upload_date`

func (r *PGRepository) Insert(ctx context.Context, doc Document) error {
	const insertSQL = `
		INSERT INTO supporting_documents (id, claim_id, original_file_name, file_name, file_size,
			content_type, description, uploaded_by, upload_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var description any
	if doc.Description != "" {
		description = doc.Description
	}
	if _, err := r.pool.Exec(ctx, insertSQL,
		doc.ID,
		doc.ClaimID,
		doc.OriginalName,
		doc.StoredName,
		doc.Size,
		doc.ContentType,
		description,
		doc.UploadedBy,
		doc.UploadedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrClaimNotFound
		}
		return fmt.Errorf("document: insert: %w", err)
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT`+documentColumns+` FROM supporting_documents WHERE id = $1`, docID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: get: %w", err)
	}
	return doc, nil
}

func (r *PGRepository) ListByClaim(ctx context.Context, claimID string) ([]Document, error) {
	id, err := uuid.Parse(claimID)
	if err != nil {
		return []Document{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT`+documentColumns+`
		FROM supporting_documents
		WHERE claim_id = $1
		ORDER BY upload_date`, id)
	if err != nil {
		return nil, fmt.Errorf("document: list: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("document: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document: iterate: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ClaimID, &d.OriginalName, &d.StoredName, &d.Size, &d.ContentType, &d.Description, &d.UploadedBy, &d.UploadedAt)
	return d, err
}
