package activity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories"
)

var listQuery = `SELECT id, action, note_id, COALESCE(user_id::text, ''), created_at
		FROM activity_logs
		WHERE ($1::uuid IS NULL OR note_id = $1) AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$2") + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e *models.ActivityLogEntry) error {
	query := `
		INSERT INTO activity_logs (action, note_id, user_id)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, e.Action, e.NoteID, repositories.IDArg(e.UserID)); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, s *auth.Session, noteID string, limit int) ([]*models.ActivityLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, listQuery, repositories.IDArg(noteID), repositories.CallerArg(s), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.ActivityLogEntry, 0)
	for rows.Next() {
		e := &models.ActivityLogEntry{}
		if err := rows.Scan(&e.ID, &e.Action, &e.NoteID, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
