package handler

import (
	"context"
	"errors"
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewAuthHandler(userService *service.UserService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "Register", err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, "Register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, model.AudiencePublic, h.userService.Login)
}

// StaffLogin handles POST /admin/auth/login; plain users are refused.
func (h *AuthHandler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, model.AudienceAdmin, h.userService.LoginStaff)
}

func (h *AuthHandler) login(
	w http.ResponseWriter,
	r *http.Request,
	audience model.Audience,
	authenticate func(context.Context, *model.LoginRequest) (*model.User, error),
) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "Login", err)
		return
	}

	user, err := authenticate(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, "Login", err)
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(r.Context(), user, audience, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "Login", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.LoginResponse{User: user, TokenPair: *tokenPair})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, "Me", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.refresh(w, r, model.AudiencePublic)
}

// StaffRefresh handles POST /admin/auth/refresh
func (h *AuthHandler) StaffRefresh(w http.ResponseWriter, r *http.Request) {
	h.refresh(w, r, model.AudienceAdmin)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request, audience model.Audience) {
	var req model.TokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "Refresh", err)
		return
	}

	tokenPair, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken, audience, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRefreshTokenExpired):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Refresh token has expired")
		case errors.Is(err, model.ErrRefreshTokenReused):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")
		default:
			httputil.WriteServiceError(w, r, "Refresh", err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenPair)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.TokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "Logout", err)
		return
	}

	err := h.authService.RevokeRefreshToken(r.Context(), req.RefreshToken)
	// An unknown or already revoked token still logs out.
	if err != nil && !errors.Is(err, model.ErrRefreshTokenNotFound) {
		httputil.WriteServiceError(w, r, "Logout", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// LogoutAll handles POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userID); err != nil {
		httputil.WriteServiceError(w, r, "LogoutAll", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out from all devices"})
}
