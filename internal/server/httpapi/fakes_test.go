package httpapi

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/services"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

type fakeIdentity struct {
	register     func(email, password, name string) (*models.Profile, error)
	login        func(email, password string) (*services.TokenPair, error)
	refresh      func(token string) (*services.TokenPair, error)
	logout       func(token string) error
	me           func(s *auth.Session) (*models.Profile, error)
	requireAdmin func(s *auth.Session) error
}

func (f *fakeIdentity) Register(_ context.Context, email, password, name string) (*models.Profile, error) {
	return f.register(email, password, name)
}
func (f *fakeIdentity) Login(_ context.Context, email, password string) (*services.TokenPair, error) {
	return f.login(email, password)
}
func (f *fakeIdentity) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	return f.refresh(token)
}
func (f *fakeIdentity) Logout(_ context.Context, token string) error { return f.logout(token) }
func (f *fakeIdentity) Me(_ context.Context, s *auth.Session) (*models.Profile, error) {
	return f.me(s)
}
func (f *fakeIdentity) RequireAdmin(_ context.Context, s *auth.Session) error {
	return f.requireAdmin(s)
}

type fakeOTP struct {
	sent   []string
	verify func(phone, code string) (*services.TokenPair, error)
}

func (f *fakeOTP) SendOTP(_ context.Context, phone string) error {
	f.sent = append(f.sent, phone)
	return nil
}
func (f *fakeOTP) VerifyOTP(_ context.Context, phone, code string) (*services.TokenPair, error) {
	return f.verify(phone, code)
}

type fakeOAuth struct {
	authURL  func(provider string) (string, error)
	callback func(provider, state, code string) (*services.TokenPair, error)
}

func (f *fakeOAuth) Providers() []string { return []string{"google"} }
func (f *fakeOAuth) AuthURL(provider string) (string, error) { return f.authURL(provider) }
func (f *fakeOAuth) Callback(_ context.Context, provider, state, code string) (*services.TokenPair, error) {
	return f.callback(provider, state, code)
}

type fakeReset struct {
	requested []string
	confirm   func(token, password string) error
}

func (f *fakeReset) RequestReset(_ context.Context, email string) error {
	f.requested = append(f.requested, email)
	return nil
}
func (f *fakeReset) ConfirmReset(_ context.Context, token, password string) error {
	return f.confirm(token, password)
}

type fakeCatalog struct {
	gotSession *auth.Session
	gotFilter  models.NoteFilter
	gotLimit   int
	gotOffset  int
	notes      []*models.Note
}

func (f *fakeCatalog) ListNotes(_ context.Context, s *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error) {
	f.gotSession, f.gotFilter, f.gotLimit, f.gotOffset = s, filter, limit, offset
	return f.notes, nil
}

type fakeViewer struct {
	gotSession *auth.Session
	gotNoteID  string
	view       *viewer.NoteView
	err        error

	open func(noteID string, att *viewer.SignedAttachment) (string, error)
}

func (f *fakeViewer) LoadNoteView(_ context.Context, noteID string, s *auth.Session) (*viewer.NoteView, error) {
	f.gotSession, f.gotNoteID = s, noteID
	return f.view, f.err
}
func (f *fakeViewer) OpenAttachment(_ context.Context, noteID string, att *viewer.SignedAttachment, s *auth.Session) (string, error) {
	f.gotSession = s
	return f.open(noteID, att)
}
func (f *fakeViewer) SignedURLTTL() time.Duration { return 10 * time.Minute }

type fakeAdmin struct {
	created  []services.NoteInput
	uploaded []services.Upload
	body     []byte
	deleted  []string
}

func (f *fakeAdmin) ListProfiles(context.Context, *auth.Session) ([]*models.Profile, error) {
	return []*models.Profile{{ID: "u1", Role: "student"}}, nil
}
func (f *fakeAdmin) SetProfileRoleStatus(_ context.Context, _ *auth.Session, id string, role, status *string) (*models.Profile, error) {
	p := &models.Profile{ID: id}
	if role != nil {
		p.Role = *role
	}
	if status != nil {
		p.Status = *status
	}
	return p, nil
}
func (f *fakeAdmin) CreateNote(_ context.Context, s *auth.Session, in services.NoteInput) (*models.Note, error) {
	f.created = append(f.created, in)
	return &models.Note{ID: "n1", Title: in.Title, CreatedBy: s.ID()}, nil
}
func (f *fakeAdmin) UpdateNote(_ context.Context, _ *auth.Session, id string, patch models.NotePatch) (*models.Note, error) {
	n := &models.Note{ID: id}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	return n, nil
}
func (f *fakeAdmin) DeleteNote(_ context.Context, _ *auth.Session, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeAdmin) UploadAttachment(_ context.Context, _ *auth.Session, noteID string, u services.Upload) (*models.Attachment, error) {
	b, err := io.ReadAll(u.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	f.uploaded = append(f.uploaded, u)
	return &models.Attachment{ID: "a1", NoteID: noteID, Name: u.Name, MimeType: "application/pdf"}, nil
}
func (f *fakeAdmin) DeleteAttachment(_ context.Context, _ *auth.Session, noteID, id string) error {
	f.deleted = append(f.deleted, noteID+"/"+id)
	return nil
}
func (f *fakeAdmin) ListActivity(context.Context, *auth.Session, string, int) ([]*models.ActivityLogEntry, error) {
	return nil, nil
}
