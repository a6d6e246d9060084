package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps a service error to its status code and the message shown
// to the client. Unknown errors are internal and keep their text private.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, viewer.ErrNotFoundOrForbidden):
		return http.StatusNotFound, viewer.ErrNotFoundOrForbidden.Error()
	case errors.Is(err, viewer.ErrInvalidRequest):
		return http.StatusBadRequest, viewer.ErrInvalidRequest.Error()
	case errors.Is(err, viewer.ErrTransientNetwork):
		return http.StatusServiceUnavailable, viewer.ErrTransientNetwork.Error()
	case errors.Is(err, viewer.ErrAttachmentUnavailable):
		return http.StatusServiceUnavailable, viewer.ErrAttachmentUnavailable.Error()

	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrInvalidResetToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrInvalidOTP),
		errors.Is(err, common.ErrInvalidOAuthState):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, common.ErrorForbidden.Error()
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrUnknownProvider):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, common.ErrorAlreadyExists.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, common.ErrTooManyAttempts.Error()

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, common.ErrorInternal.Error()
}

// rootMessage returns the text of the sentinel err wraps, hiding driver
// detail appended by lower layers.
func rootMessage(err error) string {
	for _, s := range []error{
		common.ErrorUnauthorized, common.ErrInvalidToken, common.ErrTokenExpired,
		common.ErrRefreshTokenExpired, common.ErrInvalidOTP, common.ErrInvalidOAuthState,
		common.ErrorNotFound, common.ErrUnknownProvider,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields fieldErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: common.ErrorValidation.Error(), Fields: fields})
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
