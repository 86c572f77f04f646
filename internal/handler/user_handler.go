package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/profile"
)

type UserHandler struct {
	profiles inbox.ProfileLookup
}

func NewUserHandler(profiles inbox.ProfileLookup) *UserHandler {
	return &UserHandler{profiles: profiles}
}

type PublicUserResponse struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	p, err := h.profiles.Lookup(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, profile.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
		}
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_error", "failed to fetch user"))
	}
	return c.JSON(http.StatusOK, PublicUserResponse{
		UID:         uid,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	})
}
