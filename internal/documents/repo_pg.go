package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const documentColumns = `id, processo_numero, nome_arquivo, tipo_documento, descricao, tamanho_bytes, mime_type, caminho_storage, status, texto_extraido, ocr_processado, ocr_processado_em, enviado_por, criado_em`

// PGRepo implements Repo on the processo_documentos table.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document row.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO processo_documentos (
    id,
    processo_numero,
    nome_arquivo,
    tipo_documento,
    descricao,
    tamanho_bytes,
    mime_type,
    caminho_storage,
    status,
    texto_extraido,
    ocr_processado,
    ocr_processado_em,
    enviado_por,
    criado_em
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	var description sql.NullString
	if doc.Description != "" {
		description = sql.NullString{String: doc.Description, Valid: true}
	}
	var extracted sql.NullString
	if doc.ExtractedText != nil {
		extracted = sql.NullString{String: *doc.ExtractedText, Valid: true}
	}
	var processedAt sql.NullTime
	if doc.OCRProcessedAt != nil {
		processedAt = sql.NullTime{Time: *doc.OCRProcessedAt, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.ProcessNumber,
		doc.FileName,
		string(doc.DocumentType),
		description,
		doc.FileSizeBytes,
		doc.MimeType,
		doc.StoragePath,
		string(doc.Status),
		extracted,
		doc.OCRProcessed,
		processedAt,
		doc.UploadedBy,
		doc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return err
	}
	return nil
}

// GetByID fetches one document.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM processo_documentos
WHERE id = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByProcess lists documents for a process ordered newest-first.
func (r *PGRepo) ListByProcess(ctx context.Context, processNumber string) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM processo_documentos
WHERE processo_numero = $1
ORDER BY criado_em DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, processNumber)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// Search calls search_documentos and keeps the ranking order it returns.
func (r *PGRepo) Search(ctx context.Context, query, processNumber string) ([]Document, error) {
	const stmt = `
SELECT s.id, s.processo_numero, s.nome_arquivo, s.tipo_documento, s.descricao, s.tamanho_bytes, s.mime_type, s.caminho_storage, s.status, s.texto_extraido, s.ocr_processado, s.ocr_processado_em, s.enviado_por, s.criado_em
FROM search_documentos($1, $2) WITH ORDINALITY AS s
ORDER BY s.ordinality`
	var processo sql.NullString
	if processNumber != "" {
		processo = sql.NullString{String: processNumber, Valid: true}
	}
	rows, err := r.DB.QueryContext(ctx, stmt, query, processo)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// UpdateStatus performs a compare-and-set on the status column.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	const query = `
UPDATE processo_documentos
SET status = $1
WHERE id = $2 AND status = $3`
	res, err := r.DB.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// Delete removes the row.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM processo_documentos WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByStoragePath reports whether a row references storagePath.
func (r *PGRepo) ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM processo_documentos WHERE caminho_storage = $1)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, storagePath).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var docType, status string
	var description sql.NullString
	var extracted sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.ProcessNumber,
		&doc.FileName,
		&docType,
		&description,
		&doc.FileSizeBytes,
		&doc.MimeType,
		&doc.StoragePath,
		&status,
		&extracted,
		&doc.OCRProcessed,
		&processedAt,
		&doc.UploadedBy,
		&doc.CreatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.DocumentType = Type(docType)
	doc.Status = Status(status)
	if description.Valid {
		doc.Description = description.String
	}
	if extracted.Valid {
		text := extracted.String
		doc.ExtractedText = &text
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.OCRProcessedAt = &t
	}
	return doc, nil
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
