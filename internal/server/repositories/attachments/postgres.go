package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories"
)

const columns = `id, note_id, name, path, mime_type, created_at`

var (
	listQuery = `SELECT ` + columns + `
		FROM attachments
		WHERE note_id = $1 AND ` + fmt.Sprintf(repositories.ActiveReader, "$2") + `
		ORDER BY created_at ASC, id ASC`

	getQuery = `SELECT ` + columns + `
		FROM attachments
		WHERE note_id = $1 AND id = $2 AND ` + fmt.Sprintf(repositories.ActiveReader, "$3")

	createQuery = `INSERT INTO attachments (note_id, name, path, mime_type)
		SELECT n.id, $2, $3, $4
		FROM notes n
		WHERE n.id = $1 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$5") + `
		RETURNING ` + columns

	isAdminQuery = `SELECT ` + fmt.Sprintf(repositories.ActiveAdmin, "$1")

	deleteQuery = `DELETE FROM attachments
		WHERE note_id = $1 AND id = $2 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$3") + `
		RETURNING ` + columns

	pathsQuery = `SELECT path
		FROM attachments
		WHERE note_id = $1 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$2") + `
		ORDER BY created_at ASC, id ASC`
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

func scanAttachment(row scanner) (*models.Attachment, error) {
	a := &models.Attachment{}
	err := row.Scan(&a.ID, &a.NoteID, &a.Name, &a.Path, &a.MimeType, &a.CreatedAt)
	return a, err
}

func (r *PostgresRepository) ListByNote(ctx context.Context, s *auth.Session, noteID string) ([]*models.Attachment, error) {
	result := make([]*models.Attachment, 0)
	if !repositories.ValidID(noteID) {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, listQuery, noteID, repositories.CallerArg(s))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error) {
	if !repositories.ValidID(noteID) || !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}

	a, err := scanAttachment(r.db.QueryRowContext(ctx, getQuery, noteID, id, repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *auth.Session, a *models.Attachment) (*models.Attachment, error) {
	if !repositories.ValidID(a.NoteID) {
		return nil, common.ErrorNotFound
	}

	created, err := scanAttachment(r.db.QueryRowContext(ctx, createQuery,
		a.NoteID, a.Name, a.Path, a.MimeType, repositories.CallerArg(s)))
	if err == nil {
		return created, nil
	}
	if dbx.IsUniqueViolation(err) {
		return nil, common.ErrorAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// No row: either the note is gone or the caller is not an admin.
	var admin bool
	if err := r.db.QueryRowContext(ctx, isAdminQuery, repositories.CallerArg(s)).Scan(&admin); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !admin {
		return nil, common.ErrorForbidden
	}
	return nil, common.ErrorNotFound
}

func (r *PostgresRepository) Delete(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error) {
	if !repositories.ValidID(noteID) || !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}

	a, err := scanAttachment(r.db.QueryRowContext(ctx, deleteQuery, noteID, id, repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) PathsByNote(ctx context.Context, s *auth.Session, noteID string) ([]string, error) {
	paths := make([]string, 0)
	if !repositories.ValidID(noteID) {
		return paths, nil
	}

	rows, err := r.db.QueryContext(ctx, pathsQuery, noteID, repositories.CallerArg(s))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return paths, nil
}
