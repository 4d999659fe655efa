package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"

	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/middleware"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/pkg/dto"
)

// AdminHandler exposes moderation operations. Routes mounting it must be
// gated by middleware.RequireRole.
type AdminHandler struct {
	userService UserServiceInterface
	log         zerolog.Logger
}

func NewAdminHandler(userService UserServiceInterface, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{userService: userService, log: log}
}

func (h *AdminHandler) GetUser(c *drift.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	user, err := h.userService.GetByID(context.Background(), id)
	if err != nil {
		c.NotFound("user not found")
		return
	}

	_ = c.JSON(200, toUserResponse(user))
}

func (h *AdminHandler) SetRole(c *drift.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	var req dto.SetRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	switch req.Role {
	case models.RoleUser, models.RoleModerator, models.RoleAdmin:
	default:
		c.BadRequest("unknown role: " + req.Role)
		return
	}

	if id == middleware.GetUserID(c) {
		c.BadRequest("cannot change your own role")
		return
	}

	user, err := h.userService.SetRole(context.Background(), id, req.Role)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.NotFound("user not found")
			return
		}
		c.InternalServerError("failed to set role")
		return
	}

	h.log.Info().
		Stringer("user_id", user.ID).
		Str("role", user.Role).
		Stringer("actor_id", middleware.GetUserID(c)).
		Msg("role changed")

	_ = c.JSON(200, toUserResponse(user))
}

func (h *AdminHandler) Ban(c *drift.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	var req dto.BanRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Reason == "" {
		c.BadRequest("reason is required")
		return
	}

	if id == middleware.GetUserID(c) {
		c.BadRequest("cannot ban yourself")
		return
	}

	user, err := h.userService.Ban(context.Background(), id, req.Reason)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.NotFound("user not found")
			return
		}
		c.InternalServerError("failed to ban user")
		return
	}

	h.log.Warn().
		Stringer("user_id", user.ID).
		Str("reason", req.Reason).
		Stringer("actor_id", middleware.GetUserID(c)).
		Msg("user banned")

	_ = c.JSON(200, toUserResponse(user))
}

func (h *AdminHandler) Unban(c *drift.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	user, err := h.userService.Unban(context.Background(), id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.NotFound("user not found")
			return
		}
		c.InternalServerError("failed to unban user")
		return
	}

	h.log.Info().
		Stringer("user_id", user.ID).
		Stringer("actor_id", middleware.GetUserID(c)).
		Msg("user unbanned")

	_ = c.JSON(200, toUserResponse(user))
}
