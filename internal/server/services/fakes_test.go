package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/activity"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/refreshtokens"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- profiles ---

type fakeProfiles struct {
	mu      sync.Mutex
	byID    map[string]*models.Profile
	nextID  int
	getErr  error
	created []*models.Profile
}

func newFakeProfiles(ps ...*models.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[string]*models.Profile{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.byID {
		if (p.Email != "" && q.Email == p.Email) || (p.Phone != "" && q.Phone == p.Phone) {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	cp := *p
	cp.ID = fmt.Sprintf("p%d", f.nextID)
	f.byID[cp.ID] = &cp
	f.created = append(f.created, &cp)
	return &cp, nil
}

func (f *fakeProfiles) find(match func(*models.Profile) bool) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, p := range f.byID {
		if match(p) {
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	return f.find(func(p *models.Profile) bool { return p.ID == id })
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return f.find(func(p *models.Profile) bool { return p.Email == email })
}

func (f *fakeProfiles) GetByPhone(_ context.Context, phone string) (*models.Profile, error) {
	return f.find(func(p *models.Profile) bool { return p.Phone == phone })
}

func (f *fakeProfiles) UpsertByEmail(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	if got, err := f.GetByEmail(ctx, p.Email); err == nil {
		if p.AvatarURL != "" {
			got.AvatarURL = p.AvatarURL
		}
		return got, nil
	}
	return f.Create(ctx, p)
}

func (f *fakeProfiles) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.PasswordHash = hash
	return nil
}

func (f *fakeProfiles) List(ctx context.Context, s *auth.Session) ([]*models.Profile, error) {
	if ok, _ := f.IsAdmin(ctx, s.ID()); !ok {
		return nil, common.ErrorForbidden
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Profile
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProfiles) SetRoleStatus(ctx context.Context, s *auth.Session, id string, role, status *string) (*models.Profile, error) {
	if ok, _ := f.IsAdmin(ctx, s.ID()); !ok {
		return nil, common.ErrorForbidden
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if role != nil {
		p.Role = *role
	}
	if status != nil {
		p.Status = *status
	}
	return p, nil
}

func (f *fakeProfiles) IsAdmin(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return false, f.getErr
	}
	p, ok := f.byID[id]
	return ok && p.IsAdmin(), nil
}

func (f *fakeProfiles) Promote(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.Role, p.Status = common.RoleAdmin, common.StatusActive
	return nil
}

// --- notes ---

type fakeNotes struct {
	byID      map[string]*models.Note
	createErr error
	deleteErr error
	deleted   []string
	lastList  struct {
		filter        models.NoteFilter
		limit, offset int
	}
}

func newFakeNotes(ns ...*models.Note) *fakeNotes {
	f := &fakeNotes{byID: map[string]*models.Note{}}
	for _, n := range ns {
		f.byID[n.ID] = n
	}
	return f
}

func (f *fakeNotes) Get(_ context.Context, _ *auth.Session, id string) (*models.Note, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

func (f *fakeNotes) List(_ context.Context, _ *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error) {
	f.lastList.filter, f.lastList.limit, f.lastList.offset = filter, limit, offset
	var out []*models.Note
	for _, n := range f.byID {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNotes) Create(_ context.Context, s *auth.Session, n *models.Note) (*models.Note, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *n
	cp.ID = fmt.Sprintf("n%d", len(f.byID)+1)
	cp.CreatedBy = s.ID()
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeNotes) Update(_ context.Context, _ *auth.Session, id string, patch models.NotePatch) (*models.Note, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if patch.Title != nil {
		n.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Body != nil {
		n.Body = *patch.Body
	}
	return n, nil
}

func (f *fakeNotes) Delete(_ context.Context, _ *auth.Session, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// --- attachments ---

type fakeAttachments struct {
	rows      []*models.Attachment
	createErr error
	deleted   []string
}

func (f *fakeAttachments) ListByNote(_ context.Context, _ *auth.Session, noteID string) ([]*models.Attachment, error) {
	var out []*models.Attachment
	for _, a := range f.rows {
		if a.NoteID == noteID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttachments) Get(_ context.Context, _ *auth.Session, noteID, id string) (*models.Attachment, error) {
	for _, a := range f.rows {
		if a.NoteID == noteID && a.ID == id {
			return a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAttachments) Create(_ context.Context, _ *auth.Session, a *models.Attachment) (*models.Attachment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *a
	cp.ID = fmt.Sprintf("a%d", len(f.rows)+1)
	f.rows = append(f.rows, &cp)
	return &cp, nil
}

func (f *fakeAttachments) Delete(_ context.Context, _ *auth.Session, noteID, id string) (*models.Attachment, error) {
	for i, a := range f.rows {
		if a.NoteID == noteID && a.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			f.deleted = append(f.deleted, id)
			return a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAttachments) PathsByNote(_ context.Context, _ *auth.Session, noteID string) ([]string, error) {
	var out []string
	for _, a := range f.rows {
		if a.NoteID == noteID {
			out = append(out, a.Path)
		}
	}
	return out, nil
}

// --- activity ---

type fakeActivityRepo struct {
	entries   []*models.ActivityLogEntry
	lastNote  string
	lastLimit int
}

func (f *fakeActivityRepo) Insert(_ context.Context, e *models.ActivityLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeActivityRepo) List(_ context.Context, _ *auth.Session, noteID string, limit int) ([]*models.ActivityLogEntry, error) {
	f.lastNote, f.lastLimit = noteID, limit
	return f.entries, nil
}

// --- refresh tokens ---

type fakeRefresh struct {
	mu            sync.Mutex
	tokens        map[string]*models.RefreshToken
	createErr     error
	consumeErr    error
	deletedByUser []string
}

func newFakeRefresh() *fakeRefresh {
	return &fakeRefresh{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefresh) Create(_ context.Context, userID, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefresh) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.tokens, token)
	return rt, nil
}

func (f *fakeRefresh) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefresh) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, rt := range f.tokens {
		if rt.UserID == userID {
			delete(f.tokens, k)
		}
	}
	f.deletedByUser = append(f.deletedByUser, userID)
	return nil
}

func (f *fakeRefresh) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// --- manager ---

type fakeRepoManager struct {
	p *fakeProfiles
	n *fakeNotes
	a *fakeAttachments
	l *fakeActivityRepo
	r *fakeRefresh
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		p: newFakeProfiles(),
		n: newFakeNotes(),
		a: &fakeAttachments{},
		l: &fakeActivityRepo{},
		r: newFakeRefresh(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository           { return m.p }
func (m *fakeRepoManager) Notes(dbx.DBTX) notes.Repository                 { return m.n }
func (m *fakeRepoManager) Attachments(dbx.DBTX) attachments.Repository     { return m.a }
func (m *fakeRepoManager) Activity(dbx.DBTX) activity.Repository           { return m.l }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }

// --- object store ---

type fakeObjectStore struct {
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) Put(_ context.Context, path, contentType string, body io.Reader, size int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("size mismatch")
	}
	f.objects[path] = b
	f.types[path] = contentType
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, path)
	f.deleted = append(f.deleted, path)
	return nil
}
