package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// fakeStore serves notes only to sessions listed in readers, mimicking
// the scoped SQL of the real repositories.
type fakeStore struct {
	mu          sync.Mutex
	notes       map[string]*models.Note
	attachments map[string][]*models.Attachment
	readers     map[string]bool

	noteErrs []error // returned by Get in order before falling through
	listErrs []error

	noteCalls   int
	listCalls   int
	getCalls    int
	lastSession *auth.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes:       map[string]*models.Note{},
		attachments: map[string][]*models.Attachment{},
		readers:     map[string]bool{},
	}
}

func (f *fakeStore) allowed(s *auth.Session) bool {
	return s != nil && f.readers[s.UserID]
}

func (f *fakeStore) Get(ctx context.Context, s *auth.Session, id string) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteCalls++
	f.lastSession = s
	if len(f.noteErrs) > 0 {
		err := f.noteErrs[0]
		f.noteErrs = f.noteErrs[1:]
		return nil, err
	}
	n, ok := f.notes[id]
	if !ok || !f.allowed(s) {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

func (f *fakeStore) ListByNote(ctx context.Context, s *auth.Session, noteID string) ([]*models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, err
	}
	if !f.allowed(s) {
		return []*models.Attachment{}, nil
	}
	return append([]*models.Attachment(nil), f.attachments[noteID]...), nil
}

func (f *fakeStore) GetAttachment(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if !f.allowed(s) {
		return nil, common.ErrorNotFound
	}
	for _, a := range f.attachments[noteID] {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, common.ErrorNotFound
}

// attachmentStore adapts fakeStore to AttachmentStore, whose Get clashes
// with NoteStore.Get.
type attachmentStore struct{ f *fakeStore }

func (a attachmentStore) ListByNote(ctx context.Context, s *auth.Session, noteID string) ([]*models.Attachment, error) {
	return a.f.ListByNote(ctx, s, noteID)
}

func (a attachmentStore) Get(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error) {
	return a.f.GetAttachment(ctx, s, noteID, id)
}

type fakeSigner struct {
	mu       sync.Mutex
	missing  map[string]bool
	delays   map[string]time.Duration
	calls    map[string]int
	serial   atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
	block    bool
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{missing: map[string]bool{}, delays: map[string]time.Duration{}, calls: map[string]int{}}
}

var errObjectMissing = errors.New("object not found")

func (f *fakeSigner) SignGetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[path]++
	delay := f.delays[path]
	missing := f.missing[path]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if missing {
		return "", errObjectMissing
	}
	return fmt.Sprintf("https://storage.local/%s?ttl=%d&n=%d", path, int(ttl.Seconds()), f.serial.Add(1)), nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []models.ActivityLogEntry
}

func (f *fakeActivity) Dispatch(ctx context.Context, e models.ActivityLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeActivity) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}
