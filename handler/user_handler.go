package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bookstore-api/common"
	"bookstore-api/model"
	"bookstore-api/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve user", err)
	}

	writeJSON(w, http.StatusOK, user)
	return nil
}

// UpdateMe applies a profile update for the authenticated caller.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	var req model.UpdateUserRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	user, err := h.userService.UpdateUser(userID, req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not update user", err)
	}

	writeJSON(w, http.StatusOK, user)
	return nil
}

// GetAllUsers lists all live users. Admin only.
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) *common.AppError {
	users, err := h.userService.GetAllUsers()
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve users", err)
	}

	writeJSON(w, http.StatusOK, users)
	return nil
}

// GetUserByID returns a single user for admin-facing lookups. A missing user
// is a 404 here, distinct from the auth failure responses.
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}

	user, err := h.userService.GetUserByID(id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve user", err)
	}

	writeJSON(w, http.StatusOK, user)
	return nil
}

// UpdateUserRole changes a user's role. Admin only.
func (h *UserHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}

	var req model.UpdateUserRoleRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	if err := h.userService.UpdateUserRole(id, req.Role); err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			return common.NewAppError(http.StatusBadRequest, "Invalid role specified", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not update role", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DeleteUser soft-deletes a user and revokes their sessions. Admin only.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := pathID(r)
	if appErr != nil {
		return appErr
	}

	if err := h.userService.DeleteUser(id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not delete user", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func pathID(r *http.Request) (int, *common.AppError) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, common.NewAppError(http.StatusBadRequest, "Invalid user ID", nil)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
