package app

import (
	"errors"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHTTPHandler REST 介面, 與 websocket 共用 use case
type ChatHTTPHandler struct {
	messageUC      *MessageUseCase
	conversationUC *ConversationUseCase
	attachmentUC   *AttachmentUseCase
}

// NewChatHTTPHandler attachmentUC may be nil when object storage is disabled
func NewChatHTTPHandler(messageUC *MessageUseCase, conversationUC *ConversationUseCase, attachmentUC *AttachmentUseCase) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		messageUC:      messageUC,
		conversationUC: conversationUC,
		attachmentUC:   attachmentUC,
	}
}

// ErrorBody error response
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// CreateDirectRequest POST /api/chats/direct
type CreateDirectRequest struct {
	OtherUserID string `json:"otherUserId"`
}

// PresignRequest POST /api/attachments/presign
type PresignRequest struct {
	FileName string                `json:"fileName"`
	Type     domain.AttachmentType `json:"type"`
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		logger.Log.Error("http handler", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorBody{Code: domain.ErrorCode(err), Error: err.Error()})
}

// ListChats list conversations of the caller
// @Summary List conversations
// @Description Conversations of the authenticated user, most recent first
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.ConversationView
// @Failure 401 {object} ErrorBody
// @Router /api/chats [get]
func (h *ChatHTTPHandler) ListChats(c *fiber.Ctx) error {
	views, err := h.conversationUC.List(c.UserContext(), middlewares.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(views)
}

// CreateDirect find or create a direct conversation
// @Summary Create direct conversation
// @Description Returns the existing conversation between the two users or creates it
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDirectRequest true "counterpart"
// @Success 200 {object} domain.ConversationView
// @Failure 400 {object} ErrorBody
// @Router /api/chats/direct [post]
func (h *ChatHTTPHandler) CreateDirect(c *fiber.Ctx) error {
	var req CreateDirectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Code: domain.CodeValidation, Error: err.Error()})
	}
	view, err := h.conversationUC.CreateDirect(c.UserContext(), middlewares.UserID(c), req.OtherUserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

// DeleteChat delete a conversation and its messages
// @Summary Delete conversation
// @Tags Chat
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Success 204
// @Failure 403 {object} ErrorBody
// @Failure 404 {object} ErrorBody
// @Router /api/chats/{id} [delete]
func (h *ChatHTTPHandler) DeleteChat(c *fiber.Ctx) error {
	if err := h.conversationUC.Delete(c.UserContext(), middlewares.UserID(c), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListMessages one page of history
// @Summary Conversation history
// @Description Page 1 is the newest page, messages inside a page are oldest first
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(50)
// @Success 200 {array} domain.Message
// @Failure 403 {object} ErrorBody
// @Failure 404 {object} ErrorBody
// @Router /api/chats/{id}/messages [get]
func (h *ChatHTTPHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.messageUC.History(c.UserContext(), middlewares.UserID(c), c.Params("id"),
		c.QueryInt("page", 1), c.QueryInt("limit", DefaultPageLimit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(msgs)
}

// PresignAttachment upload url for one attachment
// @Summary Presign attachment upload
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PresignRequest true "file"
// @Success 200 {object} UploadTicket
// @Failure 400 {object} ErrorBody
// @Failure 503 {object} ErrorBody
// @Router /api/attachments/presign [post]
func (h *ChatHTTPHandler) PresignAttachment(c *fiber.Ctx) error {
	if !h.attachmentUC.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorBody{Code: domain.CodeInternal, Error: "attachment storage disabled"})
	}
	var req PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Code: domain.CodeValidation, Error: err.Error()})
	}
	ticket, err := h.attachmentUC.PresignUpload(c.UserContext(), middlewares.UserID(c), req.FileName, req.Type)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(ticket)
}
