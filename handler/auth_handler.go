package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"bookstore-api/common"
	"bookstore-api/logger"
	"bookstore-api/model"
	"bookstore-api/service"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// Register creates a new member account.
//
//	@Summary  Register a new user
//	@Accept   json
//	@Produce  json
//	@Param    request body model.RegisterRequest true "registration payload"
//	@Success  201 {object} model.User
//	@Router   /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	user, err := h.userService.Register(req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return common.NewAppError(http.StatusConflict, "Email is already registered", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not create user", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
	return nil
}

// Login exchanges credentials for an access/refresh token pair.
//
//	@Summary  Log in
//	@Accept   json
//	@Produce  json
//	@Param    request body model.LoginRequest true "credentials"
//	@Success  200 {object} service.TokenPair
//	@Failure  401 {object} common.AppError
//	@Router   /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	pair, err := h.authService.Login(req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return common.NewAppError(http.StatusUnauthorized, "Invalid email or password", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not process login", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
	return nil
}

// Refresh rotates a refresh token into a new token pair.
//
//	@Summary  Refresh the session
//	@Accept   json
//	@Produce  json
//	@Param    request body model.RefreshRequest true "refresh token"
//	@Success  200 {object} service.TokenPair
//	@Failure  401 {object} common.AppError
//	@Router   /refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	pair, err := h.authService.Refresh(req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			// The same message covers expiry, bad signature and detected
			// reuse; the client's only recourse in every case is to log in
			// again.
			return common.NewAppError(http.StatusUnauthorized, "Re-authentication required", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not refresh session", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
	return nil
}

// Logout revokes all of the caller's active refresh tokens.
//
//	@Summary  Log out
//	@Security BearerAuth
//	@Success  204
//	@Router   /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	if err := h.authService.Logout(userID); err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not log out", err)
	}

	logger.Log.WithField("user_id", userID).Info("Logout request completed")
	w.WriteHeader(http.StatusNoContent)
	return nil
}
