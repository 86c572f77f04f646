package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
)

type MessageHandler struct {
	messages service.MessageService
	inbox    service.InboxService
}

func NewMessageHandler(messages service.MessageService, inbox service.InboxService) *MessageHandler {
	return &MessageHandler{messages: messages, inbox: inbox}
}

type InboxResponse struct {
	State         string               `json:"state"`
	Conversations []inbox.Conversation `json:"conversations"`
	Error         *errorPayload        `json:"error,omitempty"`
}

type ThreadResponse struct {
	ItemID   uint64          `json:"itemId"`
	Messages []model.Message `json:"messages"`
}

type SendMessageRequest struct {
	ReceiverUID string `json:"receiverUid"`
	Body        string `json:"body"`
}

// Inbox answers with the conversation list. A failed load keeps the same
// shape with state "error" so clients can tell it from an empty inbox.
func (h *MessageHandler) Inbox(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	res := h.inbox.Load(c.Request().Context(), sess)
	resp := InboxResponse{State: res.State.String(), Conversations: res.Conversations}
	if res.Err != nil {
		status, code, msg := classify(res.Err, "failed to load inbox")
		resp.Error = &errorPayload{Code: code, Message: msg}
		return c.JSON(status, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) Thread(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	msgs, err := h.messages.FetchThread(c.Request().Context(), itemID)
	if err != nil {
		return writeError(c, err, "failed to fetch messages")
	}
	view, _ := inbox.NewThreadView(itemID).Apply(inbox.Loaded(msgs))
	out := view.Messages
	if out == nil {
		out = []model.Message{}
	}
	return c.JSON(http.StatusOK, ThreadResponse{ItemID: itemID, Messages: out})
}

func (h *MessageHandler) Send(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.messages.SendMessage(c.Request().Context(), sess, req.ReceiverUID, itemID, req.Body)
	if err != nil {
		return writeError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	n, err := h.messages.MarkThreadRead(c.Request().Context(), sess, itemID)
	if err != nil {
		return writeError(c, err, "failed to mark messages read")
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}
