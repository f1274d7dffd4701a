package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/quake-sync/internal/auth"
)

type sessionKey struct{}

type credentials struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for clients that cannot set headers (WebSocket).
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(auth.Session)
	return s, ok
}

func (h *handlers) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.auth.Restore(r.Context(), bearerToken(r))
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				h.logger.Error("restore session", "error", err)
			}
			writeError(w, http.StatusUnauthorized, auth.ErrNoSession.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.auth.Register(r.Context(), c.Email, c.Password, c.PasswordConfirm)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, id)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s, err := h.auth.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		h.logger.Error("sign out", "error", err)
		writeError(w, http.StatusInternalServerError, "sign out failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	s, err := h.auth.Restore(r.Context(), bearerToken(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s)
}

func (h *handlers) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("auth backend failure", "error", err)
		writeError(w, http.StatusBadGateway, "authentication service unavailable")
	}
}
