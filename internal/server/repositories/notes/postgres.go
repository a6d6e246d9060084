package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories"
)

const columns = `id, title, COALESCE(subject, ''), COALESCE(semester, ''), COALESCE(body, ''),
		COALESCE(created_by::text, ''), created_at, updated_at`

var (
	getQuery = `SELECT ` + columns + `
		FROM notes
		WHERE id = $1 AND ` + fmt.Sprintf(repositories.ActiveReader, "$2")

	listQuery = `SELECT ` + columns + `
		FROM notes
		WHERE ` + fmt.Sprintf(repositories.ActiveReader, "$1") + `
		  AND ($2 = '' OR subject = $2)
		  AND ($3 = '' OR semester = $3)
		  AND ($4 = '' OR title ILIKE '%' || $4 || '%' OR subject ILIKE '%' || $4 || '%')
		ORDER BY updated_at DESC, id
		LIMIT $5 OFFSET $6`

	createQuery = `INSERT INTO notes (title, subject, semester, body, created_by)
		SELECT $1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5
		WHERE ` + fmt.Sprintf(repositories.ActiveAdmin, "$5") + `
		RETURNING ` + columns

	updateQuery = `UPDATE notes SET
			title = COALESCE($2, title),
			subject = CASE WHEN $3::text IS NULL THEN subject ELSE NULLIF($3, '') END,
			semester = CASE WHEN $4::text IS NULL THEN semester ELSE NULLIF($4, '') END,
			body = CASE WHEN $5::text IS NULL THEN body ELSE NULLIF($5, '') END,
			updated_at = now()
		WHERE id = $1 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$6") + `
		RETURNING ` + columns

	deleteQuery = `DELETE FROM notes
		WHERE id = $1 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$2")
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*models.Note, error) {
	n := &models.Note{}
	err := row.Scan(&n.ID, &n.Title, &n.Subject, &n.Semester, &n.Body, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *PostgresRepository) Get(ctx context.Context, s *auth.Session, id string) (*models.Note, error) {
	if !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}

	n, err := scanNote(r.db.QueryRowContext(ctx, getQuery, id, repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, s *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, listQuery,
		repositories.CallerArg(s),
		strings.TrimSpace(filter.Subject),
		strings.TrimSpace(filter.Semester),
		strings.TrimSpace(filter.Query),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *auth.Session, n *models.Note) (*models.Note, error) {
	created, err := scanNote(r.db.QueryRowContext(ctx, createQuery,
		strings.TrimSpace(n.Title),
		strings.TrimSpace(n.Subject),
		strings.TrimSpace(n.Semester),
		n.Body,
		repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func trimmed(p *string) any {
	if p == nil {
		return nil
	}
	return strings.TrimSpace(*p)
}

func (r *PostgresRepository) Update(ctx context.Context, s *auth.Session, id string, patch models.NotePatch) (*models.Note, error) {
	if !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}

	var body any
	if patch.Body != nil {
		body = *patch.Body
	}

	updated, err := scanNote(r.db.QueryRowContext(ctx, updateQuery,
		id,
		trimmed(patch.Title),
		trimmed(patch.Subject),
		trimmed(patch.Semester),
		body,
		repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, s *auth.Session, id string) error {
	if !repositories.ValidID(id) {
		return common.ErrorNotFound
	}

	res, err := r.db.ExecContext(ctx, deleteQuery, id, repositories.CallerArg(s))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
