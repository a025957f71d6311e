package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type UserService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
}

type TokenIssuer interface {
	IssueToken(userID string, role models.Role) (string, error)
}

type AuthHandler struct {
	users  UserService
	tokens TokenIssuer
}

func NewAuthHandler(users UserService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := h.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}
