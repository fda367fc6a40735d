package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/nuggs-ai/nuggs/internal/application/user"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/middleware"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// AuthHandlers serves registration, login, and account endpoints
type AuthHandlers struct {
	users    *user.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthHandlers creates auth handlers
func NewAuthHandlers(users *user.Service, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type authResponse struct {
	Account *user.Account   `json:"account"`
	Tokens  *user.TokenPair `json:"tokens"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, apperrors.NewValidationError(err.Error()))
		return
	}

	account, tokens, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Account: account, Tokens: tokens})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, apperrors.NewInvalidCredentialsError())
		return
	}

	account, tokens, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Account: account, Tokens: tokens})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, h.logger, apperrors.NewBadRequestError("refreshToken is required"))
		return
	}

	tokens, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

// Profile handles GET /api/v1/auth/profile
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return
	}

	account, err := h.users.Me(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}
