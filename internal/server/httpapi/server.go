// Package httpapi is the JSON API the browser application talks to.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/services"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

type Identity interface {
	Register(ctx context.Context, email, password, name string) (*models.Profile, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, sess *auth.Session) (*models.Profile, error)
	RequireAdmin(ctx context.Context, sess *auth.Session) error
}

type OTP interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*services.TokenPair, error)
}

type OAuth interface {
	Providers() []string
	AuthURL(provider string) (string, error)
	Callback(ctx context.Context, provider, state, code string) (*services.TokenPair, error)
}

type PasswordReset interface {
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, password string) error
}

type Catalog interface {
	ListNotes(ctx context.Context, sess *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error)
}

type Viewer interface {
	LoadNoteView(ctx context.Context, noteID string, sess *auth.Session) (*viewer.NoteView, error)
	OpenAttachment(ctx context.Context, noteID string, att *viewer.SignedAttachment, sess *auth.Session) (string, error)
	SignedURLTTL() time.Duration
}

type Admin interface {
	ListProfiles(ctx context.Context, sess *auth.Session) ([]*models.Profile, error)
	SetProfileRoleStatus(ctx context.Context, sess *auth.Session, id string, role, status *string) (*models.Profile, error)
	CreateNote(ctx context.Context, sess *auth.Session, in services.NoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, sess *auth.Session, id string, patch models.NotePatch) (*models.Note, error)
	DeleteNote(ctx context.Context, sess *auth.Session, id string) error
	UploadAttachment(ctx context.Context, sess *auth.Session, noteID string, u services.Upload) (*models.Attachment, error)
	DeleteAttachment(ctx context.Context, sess *auth.Session, noteID, id string) error
	ListActivity(ctx context.Context, sess *auth.Session, noteID string, limit int) ([]*models.ActivityLogEntry, error)
}

// WatermarkRenderer draws the overlay tile.
type WatermarkRenderer interface {
	Render(label, timestamp string) ([]byte, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Identity      Identity
	OTP           OTP
	OAuth         OAuth
	PasswordReset PasswordReset
	Catalog       Catalog
	Viewer        Viewer
	Admin         Admin
	Watermarks    WatermarkRenderer
}

type handlers struct {
	Deps
	logger    logging.Logger
	jwtSecret []byte
	now       func() time.Time
}

// NewRouter builds the API routes.
func NewRouter(d Deps, logger logging.Logger, secretKey string) http.Handler {
	h := &handlers{Deps: d, logger: logger, jwtSecret: []byte(secretKey), now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.session)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
			r.Post("/otp/send", h.sendOTP)
			r.Post("/otp/verify", h.verifyOTP)
			r.Get("/oauth", h.oauthProviders)
			r.Get("/oauth/{provider}", h.oauthURL)
			r.Get("/oauth/{provider}/callback", h.oauthCallback)
			r.Post("/password/forgot", h.forgotPassword)
			r.Post("/password/reset", h.resetPassword)
			r.Post("/password/strength", h.passwordStrength)
		})

		r.Get("/me", h.me)

		r.Get("/notes", h.listNotes)
		r.Get("/notes/{id}", h.noteView)
		r.Post("/notes/{id}/attachments/{attachmentID}/open", h.openAttachment)
		r.Get("/notes/{id}/watermark.png", h.watermark)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/profiles", h.adminListProfiles)
			r.Patch("/profiles/{id}", h.adminSetProfile)
			r.Post("/notes", h.adminCreateNote)
			r.Patch("/notes/{id}", h.adminUpdateNote)
			r.Delete("/notes/{id}", h.adminDeleteNote)
			r.Post("/notes/{id}/attachments", h.adminUploadAttachment)
			r.Delete("/notes/{id}/attachments/{attachmentID}", h.adminDeleteAttachment)
			r.Get("/activity", h.adminListActivity)
		})
	})

	return r
}

type HTTPServer struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewHTTPServer(address string, handler http.Handler, l logging.Logger) *HTTPServer {
	return &HTTPServer{address: address, handler: handler, logger: l.With("module", "http_server")}
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
