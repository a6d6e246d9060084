// Package viewer assembles what a student sees when opening a note: the
// note, its attachments with freshly signed URLs, and the watermark label.
//
// The package performs no authorization itself. It reads through stores
// that scope every query to the caller and treats a denied row exactly like
// a missing one.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// Defaults applied to zero Options fields.
const (
	DefaultSignedURLTTL    = 600 * time.Second
	DefaultSignConcurrency = 8
	DefaultFetchRetryBase  = 100 * time.Millisecond
)

// NoteStore reads notes scoped to the caller.
type NoteStore interface {
	Get(ctx context.Context, s *auth.Session, id string) (*models.Note, error)
}

// AttachmentStore reads attachments scoped to the caller.
type AttachmentStore interface {
	ListByNote(ctx context.Context, s *auth.Session, noteID string) ([]*models.Attachment, error)
	Get(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error)
}

// Signer issues time-limited read URLs for stored objects.
type Signer interface {
	SignGetURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ActivityDispatcher records access facts without blocking.
type ActivityDispatcher interface {
	Dispatch(ctx context.Context, e models.ActivityLogEntry)
}

// Options tunes the orchestrator.
type Options struct {
	SignedURLTTL    time.Duration
	SignConcurrency int64
	// FetchRetries is the number of extra attempts for metadata reads.
	// Negative disables retries.
	FetchRetries   int
	FetchRetryBase time.Duration
}

// SignedAttachment is an attachment with a URL valid until ExpiresAt.
type SignedAttachment struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	SignedAt  time.Time `json:"signed_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Watermark describes the overlay drawn over viewed content.
type Watermark struct {
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
}

// NoteView is the renderable state of one note.
type NoteView struct {
	Note        *models.Note              `json:"note"`
	Attachments []SignedAttachment        `json:"attachments"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Watermark   Watermark                 `json:"watermark"`
	Partial     *PartialAttachmentFailure `json:"-"`
}

// Service is the note access orchestrator.
type Service struct {
	notes       NoteStore
	attachments AttachmentStore
	signer      Signer
	activity    ActivityDispatcher
	logger      logging.Logger
	opts        Options
	tracer      trace.Tracer
	now         func() time.Time
}

func New(notes NoteStore, attachments AttachmentStore, signer Signer, activity ActivityDispatcher, logger logging.Logger, opts Options) *Service {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = DefaultSignedURLTTL
	}
	if opts.SignConcurrency <= 0 {
		opts.SignConcurrency = DefaultSignConcurrency
	}
	if opts.FetchRetryBase <= 0 {
		opts.FetchRetryBase = DefaultFetchRetryBase
	}
	if opts.FetchRetries < 0 {
		opts.FetchRetries = 0
	}
	return &Service{
		notes:       notes,
		attachments: attachments,
		signer:      signer,
		activity:    activity,
		logger:      logger,
		opts:        opts,
		tracer:      otel.Tracer("github.com/dmitrijs2005/securenotes/internal/server/viewer"),
		now:         time.Now,
	}
}

// SignedURLTTL is the validity of URLs handed out by this service.
func (s *Service) SignedURLTTL() time.Duration {
	return s.opts.SignedURLTTL
}

func (s *Service) backoff() retry.Backoff {
	return retry.WithMaxRetries(uint64(s.opts.FetchRetries), retry.NewExponential(s.opts.FetchRetryBase))
}

// fetch runs a metadata read with bounded retries. Not-found is final,
// and so is cancellation of ctx. Any other error is retried and becomes
// ErrTransientNetwork once the retries are used up.
func fetch[T any](ctx context.Context, s *Service, what string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out     T
		attempt int
	)
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		switch {
		case err == nil:
			out = v
			return nil
		case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorForbidden):
			return ErrNotFoundOrForbidden
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.logger.Debug(ctx, "metadata read failed", "what", what, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
	})
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if errors.Is(err, ErrNotFoundOrForbidden) {
		return out, ErrNotFoundOrForbidden
	}
	return out, fmt.Errorf("%w: %s: %v", ErrTransientNetwork, what, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LoadNoteView fetches the note visible to session, logs the view, and
// signs every attachment. A nil session is anonymous.
//
// The returned error is one of ErrInvalidRequest, ErrNotFoundOrForbidden,
// ErrTransientNetwork, or the context error when ctx ends first; in every
// error case the view is nil. Attachments that fail to sign are left out
// and listed in NoteView.Partial.
func (s *Service) LoadNoteView(ctx context.Context, noteID string, session *auth.Session) (view *NoteView, err error) {
	ctx, span := s.tracer.Start(ctx, "viewer.LoadNoteView", trace.WithAttributes(attribute.String("note.id", noteID)))
	defer func() { endSpan(span, err) }()

	if noteID == "" {
		return nil, ErrInvalidRequest
	}

	note, err := fetch(ctx, s, "note", func(ctx context.Context) (*models.Note, error) {
		return s.notes.Get(ctx, session, noteID)
	})
	if err != nil {
		return nil, err
	}

	s.activity.Dispatch(ctx, models.ActivityLogEntry{
		Action: common.ActionNoteView,
		NoteID: note.ID,
		UserID: session.ID(),
	})

	list, err := fetch(ctx, s, "attachments", func(ctx context.Context) ([]*models.Attachment, error) {
		return s.attachments.ListByNote(ctx, session, note.ID)
	})
	if err != nil {
		return nil, err
	}

	signed, partial, err := s.signAll(ctx, list)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	generatedAt := s.now()
	view = &NoteView{
		Note:        note,
		Attachments: signed,
		GeneratedAt: generatedAt,
		Watermark: Watermark{
			Label:     session.Label(),
			Timestamp: generatedAt.UTC().Format(time.RFC3339),
		},
		Partial: partial,
	}

	if partial != nil {
		s.logger.Warn(ctx, "note view is missing attachments",
			"note_id", note.ID, "dropped", partial.Dropped, "error", partial)
	}
	span.SetAttributes(
		attribute.Int("attachments.total", len(list)),
		attribute.Int("attachments.signed", len(signed)),
	)

	return view, nil
}

// signAll signs attachments concurrently. Results are placed by input
// index, so the output keeps the order of list whatever order the signer
// answers in.
func (s *Service) signAll(ctx context.Context, list []*models.Attachment) ([]SignedAttachment, *PartialAttachmentFailure, error) {
	ctx, span := s.tracer.Start(ctx, "viewer.signAttachments", trace.WithAttributes(attribute.Int("attachments.count", len(list))))
	defer span.End()

	type result struct {
		att SignedAttachment
		err error
	}
	results := make([]result, len(list))

	sem := semaphore.NewWeighted(s.opts.SignConcurrency)
	done := make(chan struct{}, len(list))
	started := 0

	for i, a := range list {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		go func(i int, a *models.Attachment) {
			defer func() {
				sem.Release(1)
				done <- struct{}{}
			}()
			att, err := s.sign(ctx, a)
			results[i] = result{att: att, err: err}
		}(i, a)
	}
	for range started {
		<-done
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	signed := make([]SignedAttachment, 0, len(list))
	var partial *PartialAttachmentFailure
	for i, r := range results {
		if r.err != nil {
			if partial == nil {
				partial = &PartialAttachmentFailure{}
			}
			partial.Dropped = append(partial.Dropped, list[i].ID)
			partial.Causes = append(partial.Causes, fmt.Errorf("attachment %s: %w", list[i].ID, r.err))
			continue
		}
		signed = append(signed, r.att)
	}
	return signed, partial, nil
}

func (s *Service) sign(ctx context.Context, a *models.Attachment) (SignedAttachment, error) {
	signedAt := s.now()
	url, err := s.signer.SignGetURL(ctx, a.Path, s.opts.SignedURLTTL)
	if err != nil {
		return SignedAttachment{}, err
	}
	if url == "" {
		return SignedAttachment{}, errors.New("signer returned an empty url")
	}
	return SignedAttachment{
		ID:        a.ID,
		NoteID:    a.NoteID,
		Name:      a.Name,
		MimeType:  a.MimeType,
		CreatedAt: a.CreatedAt,
		URL:       url,
		SignedAt:  signedAt,
		ExpiresAt: signedAt.Add(s.opts.SignedURLTTL),
	}, nil
}

// OpenAttachment confirms the attachment is visible to session, logs the
// open, and returns a URL for it. The URL minted with the view is reused
// while it is fresh; a stale URL, or one whose SignedAt lies in the future,
// is signed again.
func (s *Service) OpenAttachment(ctx context.Context, noteID string, att *SignedAttachment, session *auth.Session) (url string, err error) {
	ctx, span := s.tracer.Start(ctx, "viewer.OpenAttachment", trace.WithAttributes(attribute.String("note.id", noteID)))
	defer func() { endSpan(span, err) }()

	if noteID == "" || att == nil || att.ID == "" {
		return "", ErrInvalidRequest
	}

	a, err := fetch(ctx, s, "attachment", func(ctx context.Context) (*models.Attachment, error) {
		return s.attachments.Get(ctx, session, noteID, att.ID)
	})
	if err != nil {
		return "", err
	}

	s.activity.Dispatch(ctx, models.ActivityLogEntry{
		Action: common.ActionAttachmentOpen,
		NoteID: a.NoteID,
		UserID: session.ID(),
	})

	if s.fresh(att) {
		return att.URL, nil
	}

	span.SetAttributes(attribute.Bool("url.reminted", true))

	signed, err := s.sign(ctx, a)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn(ctx, "re-signing attachment failed", "note_id", noteID, "attachment_id", a.ID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrAttachmentUnavailable, err)
	}

	*att = signed
	return signed.URL, nil
}

// fresh reports whether att still carries a usable URL. A SignedAt ahead
// of the clock was not issued by this service and counts as expired.
func (s *Service) fresh(att *SignedAttachment) bool {
	if att.URL == "" || att.SignedAt.IsZero() {
		return false
	}
	now := s.now()
	if att.SignedAt.After(now) {
		return false
	}
	return now.Sub(att.SignedAt) <= s.opts.SignedURLTTL
}
