package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
)

type LikeHandler struct {
	svc service.LikeService
}

func NewLikeHandler(svc service.LikeService) *LikeHandler {
	return &LikeHandler{svc: svc}
}

type LikeStatusResponse struct {
	ItemID uint64 `json:"itemId"`
	Liked  bool   `json:"liked"`
}

func (h *LikeHandler) Like(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if err := h.svc.Like(c.Request().Context(), sess, id); err != nil {
		return writeError(c, err, "failed to like item")
	}
	return c.JSON(http.StatusOK, LikeStatusResponse{ItemID: id, Liked: true})
}

func (h *LikeHandler) Unlike(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if err := h.svc.Unlike(c.Request().Context(), sess, id); err != nil {
		return writeError(c, err, "failed to unlike item")
	}
	return c.JSON(http.StatusOK, LikeStatusResponse{ItemID: id, Liked: false})
}

func (h *LikeHandler) Status(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	liked, err := h.svc.IsLiked(c.Request().Context(), sess, id)
	if err != nil {
		return writeError(c, err, "failed to fetch like")
	}
	return c.JSON(http.StatusOK, LikeStatusResponse{ItemID: id, Liked: liked})
}

func (h *LikeHandler) List(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	items, err := h.svc.List(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err, "failed to fetch liked items")
	}
	resp := ItemListResponse{Items: make([]ItemResponse, 0, len(items)), Total: int64(len(items))}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}
