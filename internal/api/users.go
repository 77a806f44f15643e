package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/storage"
)

type authResponse struct {
	Token string       `json:"token"`
	User  storage.User `json:"user"`
}

type userResponse struct {
	User storage.User `json:"user"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	db := "connected"
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("database ping failed")
		db = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "db": db})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = trimmed(req.Username)
	req.Email = strings.ToLower(trimmed(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Fill in all fields")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 4 characters")
		return
	}
	if len([]rune(req.Username)) < 2 {
		writeError(w, http.StatusBadRequest, "Username must be at least 2 characters")
		return
	}

	ctx := r.Context()
	if taken, err := s.emailTaken(ctx, req.Email, ""); err != nil {
		s.internalError(w, err, "Registration error")
		return
	} else if taken {
		writeError(w, http.StatusBadRequest, "This email is already registered")
		return
	}
	if taken, err := s.usernameTaken(ctx, req.Username, ""); err != nil {
		s.internalError(w, err, "Registration error")
		return
	} else if taken {
		writeError(w, http.StatusBadRequest, "This username is already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, err, "Registration error")
		return
	}
	user, err := s.store.CreateUser(ctx, storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsAdmin:      strings.EqualFold(req.Username, "admin"),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "This username or email is already taken")
			return
		}
		s.internalError(w, err, "Registration error")
		return
	}

	s.issueSession(w, http.StatusCreated, user, "Registration error")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if trimmed(req.Credential) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Fill in all fields")
		return
	}

	user, err := s.store.GetUserByLogin(r.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid email/username or password")
			return
		}
		s.internalError(w, err, "Login error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email/username or password")
		return
	}

	s.issueSession(w, http.StatusOK, user, "Login error")
}

func (s *Server) issueSession(w http.ResponseWriter, status int, user storage.User, failure string) {
	token, err := s.issuer.Sign(user.ID)
	if err != nil {
		s.internalError(w, err, failure)
		return
	}
	s.guard.SetCookie(w, token)
	writeJSON(w, status, authResponse{Token: token, User: user})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	s.guard.ClearCookie(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		City     *string `json:"city"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	if req.Username != nil {
		if name := trimmed(*req.Username); name != "" && name != user.Username {
			taken, err := s.usernameTaken(ctx, name, user.ID)
			if err != nil {
				s.internalError(w, err, "Failed to update profile")
				return
			}
			if taken {
				writeError(w, http.StatusBadRequest, "This username is already taken")
				return
			}
			user.Username = name
		}
	}
	if req.Email != nil {
		if email := strings.ToLower(trimmed(*req.Email)); email != "" && email != user.Email {
			taken, err := s.emailTaken(ctx, email, user.ID)
			if err != nil {
				s.internalError(w, err, "Failed to update profile")
				return
			}
			if taken {
				writeError(w, http.StatusBadRequest, "This email is already registered")
				return
			}
			user.Email = email
		}
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.City != nil {
		user.City = *req.City
	}

	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "This username or email is already taken")
			return
		}
		s.internalError(w, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.internalError(w, err, "Failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.internalError(w, err, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// usernameTaken reports whether another user (not exceptID) owns name.
func (s *Server) usernameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	return s.loginTaken(ctx, name, exceptID, func(u storage.User) bool { return u.Username == name })
}

func (s *Server) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	return s.loginTaken(ctx, email, exceptID, func(u storage.User) bool { return u.Email == email })
}

func (s *Server) loginTaken(ctx context.Context, credential, exceptID string, match func(storage.User) bool) (bool, error) {
	existing, err := s.store.GetUserByLogin(ctx, credential)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != exceptID && match(existing), nil
}

func (s *Server) internalError(w http.ResponseWriter, err error, message string) {
	s.logger.Error().Err(err).Msg(message)
	writeError(w, http.StatusInternalServerError, message)
}
