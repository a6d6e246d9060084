package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// CatalogService lists notes for the student dashboard.
type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager) *CatalogService {
	return &CatalogService{db: db, repomanager: m}
}

// ListNotes returns a page of the notes visible to sess, most recently
// updated first. Callers without read access get an empty page.
func (s *CatalogService) ListNotes(ctx context.Context, sess *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repomanager.Notes(s.db).List(ctx, sess, filter, limit, offset)
}
