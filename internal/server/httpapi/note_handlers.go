package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fieldErrors{name: "must be a number"}
	}
	return n, nil
}

func (h *handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	list, err := h.Catalog.ListNotes(r.Context(), auth.FromContext(r.Context()), models.NoteFilter{
		Subject:  q.Get("subject"),
		Semester: q.Get("semester"),
		Query:    q.Get("q"),
	}, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": list})
}

type partialFailure struct {
	Message string   `json:"message"`
	Dropped []string `json:"dropped"`
}

type noteViewResponse struct {
	*viewer.NoteView
	PartialFailure *partialFailure `json:"partial_failure,omitempty"`
}

func (h *handlers) noteView(w http.ResponseWriter, r *http.Request) {
	view, err := h.Viewer.LoadNoteView(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := noteViewResponse{NoteView: view}
	if view.Partial != nil {
		resp.PartialFailure = &partialFailure{
			Message: viewer.ErrPartialAttachmentFailure.Error(),
			Dropped: view.Partial.Dropped,
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

type openAttachmentRequest struct {
	URL      string    `json:"url"`
	SignedAt time.Time `json:"signed_at"`
}

type openAttachmentResponse struct {
	URL       string    `json:"url"`
	SignedAt  time.Time `json:"signed_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) openAttachment(w http.ResponseWriter, r *http.Request) {
	var req openAttachmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	att := &viewer.SignedAttachment{
		ID:       chi.URLParam(r, "attachmentID"),
		NoteID:   chi.URLParam(r, "id"),
		URL:      req.URL,
		SignedAt: req.SignedAt,
	}
	url, err := h.Viewer.OpenAttachment(r.Context(), att.NoteID, att, auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, openAttachmentResponse{
		URL:       url,
		SignedAt:  att.SignedAt,
		ExpiresAt: att.SignedAt.Add(h.Viewer.SignedURLTTL()),
	})
}

// watermark serves the overlay tile for the caller. The timestamp should
// be the one returned with the note view, so the tile matches it.
func (h *handlers) watermark(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") == "" {
		h.writeError(w, r, viewer.ErrInvalidRequest)
		return
	}

	ts := r.URL.Query().Get("ts")
	if ts == "" {
		ts = h.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		h.writeError(w, r, fieldErrors{"ts": "must be an RFC 3339 timestamp"})
		return
	}

	png, err := h.Watermarks.Render(auth.FromContext(r.Context()).Label(), ts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
