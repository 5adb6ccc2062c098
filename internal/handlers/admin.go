// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/loginflow/internal/auth"
	"codeberg.org/oliverandrich/loginflow/internal/models"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
)

// AdminHandlers contains handlers for user administration.
type AdminHandlers struct {
	repo *repository.Repository
}

// NewAdmin creates a new AdminHandlers instance.
func NewAdmin(repo *repository.Repository) *AdminHandlers {
	return &AdminHandlers{repo: repo}
}

// ListUsers returns all users.
func (h *AdminHandlers) ListUsers(c echo.Context) error {
	users, err := h.repo.ListUsers(c.Request().Context())
	if err != nil {
		slog.Error("list_users_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	list := make([]map[string]any, 0, len(users))
	for i := range users {
		list = append(list, userJSON(&users[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"users": list,
		"count": len(list),
	})
}

// SetRoleRequest is the request body for role changes.
type SetRoleRequest struct {
	Role string `json:"role" form:"role"`
}

// SetRole changes a user's role.
func (h *AdminHandlers) SetRole(c echo.Context) error {
	userID := c.Param("id")

	var req SetRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid role"})
	}

	if err := h.repo.SetUserRole(c.Request().Context(), userID, req.Role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
		}
		slog.Error("set_role_failed", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	slog.Info("role_changed", "user_id", userID, "role", req.Role)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteUser removes a user account. Admins cannot delete themselves.
func (h *AdminHandlers) DeleteUser(c echo.Context) error {
	userID := c.Param("id")

	current := auth.GetUser(c.Request().Context())
	if current != nil && current.ID == userID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "cannot delete own account"})
	}

	if err := h.repo.DeleteUser(c.Request().Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
		}
		slog.Error("delete_user_failed", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	slog.Info("user_deleted", "user_id", userID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
