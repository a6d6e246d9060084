package profiles

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

const columns = `id, COALESCE(email, ''), COALESCE(phone, ''), name, COALESCE(avatar_url, ''),
		COALESCE(password_hash, ''), role, status, created_at`

var (
	listQuery = `SELECT ` + columns + `
		FROM profiles
		WHERE ` + fmt.Sprintf(repositories.ActiveAdmin, "$1") + `
		ORDER BY created_at ASC, id ASC`

	setRoleStatusQuery = `UPDATE profiles SET
			role = COALESCE($2, role),
			status = COALESCE($3, status)
		WHERE id = $1 AND ` + fmt.Sprintf(repositories.ActiveAdmin, "$4") + `
		RETURNING ` + columns

	isAdminQuery = `SELECT ` + fmt.Sprintf(repositories.ActiveAdmin, "$1")
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

func scanProfile(row scanner) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.Phone, &p.Name, &p.AvatarURL, &p.PasswordHash, &p.Role, &p.Status, &p.CreatedAt)
	return p, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (email, phone, name, avatar_url, password_hash, role, status)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		RETURNING ` + columns

	created, err := scanProfile(r.db.QueryRowContext(ctx, query,
		normalizeEmail(p.Email), strings.TrimSpace(p.Phone), p.Name, p.AvatarURL, p.PasswordHash, p.Role, p.Status))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.Profile, error) {
	query := `SELECT ` + columns + ` FROM profiles WHERE ` + column + ` = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getBy(ctx, "email", normalizeEmail(email))
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*models.Profile, error) {
	return r.getBy(ctx, "phone", strings.TrimSpace(phone))
}

func (r *PostgresRepository) UpsertByEmail(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (email, name, avatar_url, role, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url)
		RETURNING ` + columns

	got, err := scanProfile(r.db.QueryRowContext(ctx, query,
		normalizeEmail(p.Email), p.Name, p.AvatarURL, p.Role, p.Status))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	query := `
		UPDATE profiles SET password_hash = $2
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, repositories.IDArg(id), hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, s *auth.Session) ([]*models.Profile, error) {
	admin, err := r.IsAdmin(ctx, s.ID())
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, common.ErrorForbidden
	}

	rows, err := r.db.QueryContext(ctx, listQuery, repositories.CallerArg(s))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetRoleStatus(ctx context.Context, s *auth.Session, id string, role, status *string) (*models.Profile, error) {
	if !repositories.ValidID(id) {
		return nil, common.ErrorNotFound
	}

	var roleArg, statusArg any
	if role != nil {
		roleArg = *role
	}
	if status != nil {
		statusArg = *status
	}

	p, err := scanProfile(r.db.QueryRowContext(ctx, setRoleStatusQuery, id, roleArg, statusArg, repositories.CallerArg(s)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	var admin bool
	if err := r.db.QueryRowContext(ctx, isAdminQuery, repositories.IDArg(id)).Scan(&admin); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return admin, nil
}

func (r *PostgresRepository) Promote(ctx context.Context, id string) error {
	query := `
		UPDATE profiles SET role = 'admin', status = 'active'
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, repositories.IDArg(id))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("db error: %w", err)
	} else if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
