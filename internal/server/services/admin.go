package services

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/objectstore"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
)

// MaxAttachmentSize is the largest accepted upload.
const MaxAttachmentSize = 50 << 20

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

var (
	ErrUnsupportedMediaType = fmt.Errorf("%w: only PDF and image files are allowed", common.ErrorValidation)
	ErrAttachmentTooLarge   = fmt.Errorf("%w: file exceeds 50 MB", common.ErrorValidation)
)

// ObjectStore is the part of the object storage the admin console writes to.
type ObjectStore interface {
	Put(ctx context.Context, path, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, path string) error
}

// AdminService backs the admin console. Every method re-checks the
// caller's role in the database.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	logger      logging.Logger
	now         func() time.Time
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, logger logging.Logger) *AdminService {
	return &AdminService{db: db, repomanager: m, store: store, logger: logger, now: time.Now}
}

func (s *AdminService) requireAdmin(ctx context.Context, sess *auth.Session) error {
	return requireAdmin(ctx, s.db, s.repomanager, sess)
}

func (s *AdminService) ListProfiles(ctx context.Context, sess *auth.Session) ([]*models.Profile, error) {
	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}
	return s.repomanager.Profiles(s.db).List(ctx, sess)
}

// SetProfileRoleStatus changes the role and/or status of a profile.
func (s *AdminService) SetProfileRoleStatus(ctx context.Context, sess *auth.Session, id string, role, status *string) (*models.Profile, error) {
	if role == nil && status == nil {
		return nil, fmt.Errorf("%w: nothing to change", common.ErrorValidation)
	}
	if role != nil && *role != common.RoleStudent && *role != common.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, *role)
	}
	if status != nil && *status != common.StatusPending && *status != common.StatusActive {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, *status)
	}
	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}

	p, err := s.repomanager.Profiles(s.db).SetRoleStatus(ctx, sess, id, role, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "profile updated", "admin_id", sess.ID(), "user_id", id, "role", p.Role, "status", p.Status)
	return p, nil
}

// NoteInput is the admin form for a new note.
type NoteInput struct {
	Title    string
	Subject  string
	Semester string
	Body     string
}

func (s *AdminService) CreateNote(ctx context.Context, sess *auth.Session, in NoteInput) (*models.Note, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}

	n, err := s.repomanager.Notes(s.db).Create(ctx, sess, &models.Note{
		Title:    title,
		Subject:  in.Subject,
		Semester: in.Semester,
		Body:     in.Body,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "note created", "admin_id", sess.ID(), "note_id", n.ID)
	return n, nil
}

func (s *AdminService) UpdateNote(ctx context.Context, sess *auth.Session, id string, patch models.NotePatch) (*models.Note, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", common.ErrorValidation)
	}
	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}
	return s.repomanager.Notes(s.db).Update(ctx, sess, id, patch)
}

// DeleteNote removes a note with its attachments. The rows go in one
// transaction and the objects are deleted after it commits, so a failed
// row delete leaves storage untouched. An object that cannot be deleted is
// logged and stays in the bucket with no row pointing at it.
func (s *AdminService) DeleteNote(ctx context.Context, sess *auth.Session, id string) error {
	if err := s.requireAdmin(ctx, sess); err != nil {
		return err
	}

	var paths []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		paths, err = s.repomanager.Attachments(tx).PathsByNote(ctx, sess, id)
		if err != nil {
			return fmt.Errorf("error listing attachment paths: %w", err)
		}
		return s.repomanager.Notes(tx).Delete(ctx, sess, id)
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil {
			s.logger.Warn(ctx, "orphaned attachment object", "note_id", id, "path", p, "error", err)
		}
	}

	s.logger.Info(ctx, "note deleted", "admin_id", sess.ID(), "note_id", id)
	return nil
}

// Upload is a file submitted through the admin console.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func allowedMediaType(ct string) bool {
	return ct == "application/pdf" || strings.HasPrefix(ct, "image/")
}

// sniff resolves the media type of u, reading its first bytes when the
// client sent none. The returned reader still yields the whole body.
func sniff(u Upload) (string, io.Reader) {
	ct := strings.TrimSpace(u.ContentType)
	if ct != "" && ct != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt, u.Body
		}
	}
	br := bufio.NewReaderSize(u.Body, 512)
	head, _ := br.Peek(512)
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mt, br
}

// UploadAttachment stores the file and then records it. When the row
// cannot be written the object is removed again.
func (s *AdminService) UploadAttachment(ctx context.Context, sess *auth.Session, noteID string, u Upload) (*models.Attachment, error) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}
	if u.Size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrorValidation)
	}
	if u.Size > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}

	mt, body := sniff(u)
	if !allowedMediaType(mt) {
		return nil, ErrUnsupportedMediaType
	}

	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Notes(s.db).Get(ctx, sess, noteID); err != nil {
		return nil, err
	}

	path := objectstore.ObjectPath(noteID, name, s.now())
	if err := s.store.Put(ctx, path, mt, body, u.Size); err != nil {
		return nil, fmt.Errorf("error storing object: %w", err)
	}

	a, err := s.repomanager.Attachments(s.db).Create(ctx, sess, &models.Attachment{
		NoteID:   noteID,
		Name:     name,
		Path:     path,
		MimeType: mt,
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			s.logger.Error(ctx, "orphaned object after failed insert", "path", path, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "attachment uploaded", "admin_id", sess.ID(), "note_id", noteID, "attachment_id", a.ID, "size", u.Size)
	return a, nil
}

// DeleteAttachment removes the object and then its row.
func (s *AdminService) DeleteAttachment(ctx context.Context, sess *auth.Session, noteID, id string) error {
	if err := s.requireAdmin(ctx, sess); err != nil {
		return err
	}

	a, err := s.repomanager.Attachments(s.db).Get(ctx, sess, noteID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, a.Path); err != nil {
		return fmt.Errorf("error deleting object: %w", err)
	}
	if _, err := s.repomanager.Attachments(s.db).Delete(ctx, sess, noteID, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// ListActivity returns recent activity, optionally for one note.
func (s *AdminService) ListActivity(ctx context.Context, sess *auth.Session, noteID string, limit int) ([]*models.ActivityLogEntry, error) {
	if err := s.requireAdmin(ctx, sess); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.repomanager.Activity(s.db).List(ctx, sess, noteID, limit)
}
