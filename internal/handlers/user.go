package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"

	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/middleware"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/pkg/dto"
)

type UserHandler struct {
	userService UserServiceInterface
}

func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	user, err := h.userService.GetByID(context.Background(), userID)
	if err != nil {
		c.NotFound("user not found")
		return
	}

	_ = c.JSON(200, toUserResponse(user))
}

func (h *UserHandler) UpdateMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(context.Background(), userID, req.FirstName, req.LastName, req.Bio)
	if err != nil {
		c.InternalServerError("failed to update profile")
		return
	}

	_ = c.JSON(200, toUserResponse(user))
}

func toUserResponse(user *models.User) dto.UserResponse {
	linked := make([]string, 0, len(identity.Providers))
	for _, p := range identity.Providers {
		if identity.SubjectOf(user, p) != "" {
			linked = append(linked, string(p))
		}
	}

	return dto.UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Username:        user.Username,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Phone:           user.Phone,
		Bio:             user.Bio,
		ProfilePicture:  user.ProfilePicture,
		Role:            user.Role,
		IsActive:        user.IsActive,
		IsBanned:        user.IsBanned,
		BanReason:       user.BanReason,
		LinkedProviders: linked,
		LastLoginAt:     user.LastLoginAt,
		LoginCount:      user.LoginCount,
		CreatedAt:       user.CreatedAt,
	}
}
