package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

type createUserRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.UserName == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, core.ErrInvalidInput)
		return
	}

	role := libstore.Role(req.Role)
	if req.Role == "" {
		role = libstore.RoleUser
	}
	if !role.IsValid() {
		writeError(w, core.ErrInvalidInput)
		return
	}

	existing, err := s.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing != nil {
		writeError(w, core.ErrEmailAlreadyRegistered)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	user := libstore.User{
		ID:           uuid.New(),
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.InsertUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := s.store.FindUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, core.ErrUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

type updateUserRequest struct {
	UserName *string `json:"userName"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.store.FindUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, core.ErrUserNotFound)
		return
	}

	if req.UserName != nil {
		user.UserName = *req.UserName
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		role := libstore.Role(*req.Role)
		if !role.IsValid() {
			writeError(w, core.ErrInvalidInput)
			return
		}
		user.Role = role
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			writeError(w, core.ErrInvalidInput)
			return
		}

		hash, hashErr := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			writeError(w, hashErr)
			return
		}
		user.PasswordHash = string(hash)
	}

	updated, err := s.store.UpdateUser(r.Context(), *user)
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, core.ErrUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrUserNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
