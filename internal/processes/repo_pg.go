package processes

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const processColumns = `numero, tipo, assunto, interessado, relator, status, criado_por, criado_em, atualizado_em`

// PGRepo implements Repo on the processos table.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, p Process) error {
	const query = `
INSERT INTO processos (numero, tipo, assunto, interessado, relator, status, criado_por, criado_em, atualizado_em)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		p.Numero,
		string(p.Kind),
		p.Subject,
		nullableString(p.Interested),
		nullableString(p.Rapporteur),
		string(p.Status),
		p.CreatedBy,
		p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, numero string) (Process, error) {
	query := `SELECT ` + processColumns + `
FROM processos
WHERE numero = $1`
	p, err := scanProcess(r.DB.QueryRowContext(ctx, query, numero))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Process{}, ErrNotFound
		}
		return Process{}, err
	}
	return p, nil
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Process, error) {
	var where []string
	var args []any
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, "tipo = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + processColumns + `
FROM processos`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY criado_em DESC, numero DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Process, 0)
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, numero string, from, to Status) error {
	const query = `
UPDATE processos
SET status = $1, atualizado_em = now()
WHERE numero = $2 AND status = $3`
	res, err := r.DB.ExecContext(ctx, query, string(to), numero, string(from))
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
	if _, err := r.Get(ctx, numero); err != nil {
		return err
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (Process, error) {
	var p Process
	var kind, status string
	var interested, rapporteur sql.NullString
	if err := row.Scan(
		&p.Numero,
		&kind,
		&p.Subject,
		&interested,
		&rapporteur,
		&status,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Process{}, err
	}
	p.Kind = Kind(kind)
	p.Status = Status(status)
	if interested.Valid {
		p.Interested = interested.String
	}
	if rapporteur.Valid {
		p.Rapporteur = rapporteur.String
	}
	return p, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
