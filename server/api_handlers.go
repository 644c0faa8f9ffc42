package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/events"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

const msgPasswordsDiffer = "Passwords do not match"

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type identityResponse struct {
	User *auth.Identity `json:"user"`
}

type sessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code,omitempty"`
}

// LoginHandler signs in with a username (local) or email (remote)
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		key := req.Username
		if key == "" {
			key = req.Email
		}

		id, err := s.manager.Login(r.Context(), auth.Credentials{Key: key, Secret: req.Password})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, identityResponse{User: id})
	}
}

// RegisterHandler creates an account and signs it in
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Password != req.ConfirmPassword {
			s.rejectMismatch(w)
			return
		}

		id, err := s.manager.Register(r.Context(), auth.Profile{
			IdentityKey: req.Username,
			Secret:      req.Password,
			Email:       req.Email,
			DisplayName: req.DisplayName,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, identityResponse{User: id})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.manager.Logout(r.Context(), true)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
			s.rejectMismatch(w)
			return
		}

		if err := s.manager.ChangePassword(r.Context(), req.OldPassword, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionHandler is the authenticated-operation check. A live session is
// slid forward; otherwise the auth form is shown.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.manager.RequireAuth(r.Context()) {
			writeJSON(w, http.StatusUnauthorized, sessionResponse{Authenticated: false})
			return
		}
		status := s.manager.Current()
		if status.Session == nil {
			writeJSON(w, http.StatusUnauthorized, sessionResponse{Authenticated: false})
			return
		}
		expiresAt := status.Session.ExpiresAt
		writeJSON(w, http.StatusOK, sessionResponse{
			Authenticated: true,
			User:          status.Session.Identity,
			ExpiresAt:     &expiresAt,
		})
	}
}

func (s *Server) UserDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.manager.UserData(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) SaveUserDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update userdata.Update
		if !decodeBody(w, r, &update) {
			return
		}
		data, err := s.manager.SaveUserData(r.Context(), update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) rejectMismatch(w http.ResponseWriter) {
	s.manager.Bus().Publish(events.Notification{Message: msgPasswordsDiffer, Level: events.LevelError})
	writeError(w, auth.ValidationFailed("confirmPassword", msgPasswordsDiffer))
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	switch {
	case errors.As(err, &authErr):
		writeJSON(w, statusForKind(authErr.Kind), errorResponse{
			Error: authErr.Error(),
			Kind:  string(authErr.Kind),
			Field: authErr.Field,
			Code:  authErr.Code,
		})
	case errors.Is(err, sessions.ErrBusy), errors.Is(err, sessions.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Err(err).Msg("Unclassified request failure")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func statusForKind(kind auth.ErrorKind) int {
	switch kind {
	case auth.KindInvalidCredentials, auth.KindSessionExpired:
		return http.StatusUnauthorized
	case auth.KindAlreadyExists:
		return http.StatusConflict
	case auth.KindValidationFailed:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindNetworkFailure, auth.KindMalformedStore:
		return http.StatusServiceUnavailable
	case auth.KindProviderError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
