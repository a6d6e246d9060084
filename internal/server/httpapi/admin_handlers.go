package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/services"
)

func (h *handlers) adminListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.Admin.ListProfiles(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list})
}

type setProfileRequest struct {
	Role   *string `json:"role" validate:"omitnil,oneof=student admin"`
	Status *string `json:"status" validate:"omitnil,oneof=pending active"`
}

func (h *handlers) adminSetProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.Admin.SetProfileRoleStatus(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), req.Role, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createNoteRequest struct {
	Title    string `json:"title" validate:"required,max=300"`
	Subject  string `json:"subject" validate:"max=200"`
	Semester string `json:"semester" validate:"max=100"`
	Body     string `json:"body"`
}

func (h *handlers) adminCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.Admin.CreateNote(r.Context(), auth.FromContext(r.Context()), services.NoteInput{
		Title:    req.Title,
		Subject:  req.Subject,
		Semester: req.Semester,
		Body:     req.Body,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *handlers) adminUpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch models.NotePatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.Admin.UpdateNote(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handlers) adminDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteNote(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) adminUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, services.ErrAttachmentTooLarge)
			return
		}
		h.writeError(w, r, fieldErrors{"file": "is required"})
		return
	}
	defer file.Close()

	a, err := h.Admin.UploadAttachment(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), services.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handlers) adminDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	err := h.Admin.DeleteAttachment(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) adminListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.Admin.ListActivity(r.Context(), auth.FromContext(r.Context()), r.URL.Query().Get("note_id"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.ActivityLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": list})
}

