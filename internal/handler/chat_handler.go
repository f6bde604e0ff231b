package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/auth"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/service"
)

const streamHeartbeat = 25 * time.Second

// region --- DTOs ---

// OpenChatInput names the chat partner.
type OpenChatInput struct {
	PartnerID string `json:"partner_id" binding:"required,max=64"`
}

// SendMessageInput is a chat message body.
type SendMessageInput struct {
	Text string `json:"text" binding:"required,max=4000" example:"Want to jam on Saturday?"`
}

// ChatResponse is a chat as listed for the caller.
type ChatResponse struct {
	models.Chat
	PartnerID string          `json:"partner_id"`
	Partner   *models.Profile `json:"partner,omitempty"`
}

// endregion

type ChatHandler struct {
	log      *logger.Logger
	chats    *service.ChatService
	requests *service.RequestService
}

func NewChatHandler(log *logger.Logger, chats *service.ChatService, requests *service.RequestService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chats: chats, requests: requests}
}

// List godoc
// @Summary      List chats
// @Description  Chats of the caller, most recently active first.
// @Tags         chats
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   ChatResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /chats [get]
func (h *ChatHandler) List(c *gin.Context) {
	userID := auth.UserID(c)
	chats, err := h.chats.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]ChatResponse, len(chats))
	for i, s := range chats {
		out[i] = ChatResponse{Chat: s.Chat, PartnerID: s.PartnerID, Partner: s.Partner}
	}
	c.JSON(http.StatusOK, out)
}

// Open godoc
// @Summary      Open a chat
// @Description  Returns the chat with a connected user, creating it if needed. Calling it again returns the same chat.
// @Tags         chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body OpenChatInput true "Partner"
// @Success      200  {object}  models.Chat
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Users are not connected"
// @Router       /chats [post]
func (h *ChatHandler) Open(c *gin.Context) {
	var input OpenChatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	ok, err := h.requests.Connected(ctx, userID, input.PartnerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !ok {
		respondError(c, h.log, apperr.New(apperr.KindForbidden, "not_connected", "you can only chat with accepted connections"))
		return
	}

	chat, err := h.chats.GetOrCreate(ctx, userID, input.PartnerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// Messages godoc
// @Summary      Current messages
// @Description  The 200 most recent messages, oldest first.
// @Tags         chats
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Chat ID"
// @Success      200  {array}   models.Message
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{id}/messages [get]
func (h *ChatHandler) Messages(c *gin.Context) {
	ctx := c.Request.Context()
	chat, err := h.chats.Get(ctx, auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	msgs, err := h.chats.Messages(ctx, chat.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// History godoc
// @Summary      Message history
// @Description  Full history, oldest first, paginated.
// @Tags         chats
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true   "Chat ID"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(50)
// @Success      200   {object}  PaginatedResponse[models.Message]
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /chats/{id}/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	chat, err := h.chats.Get(ctx, auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	page, limit := pageParams(c, 50)
	resp, err := Paginate[models.Message](h.chats.HistoryQuery(ctx, chat.ID), page, limit)
	if err != nil {
		respondError(c, h.log, apperr.Unavailable(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Send godoc
// @Summary      Send a message
// @Description  Blank messages are rejected. On failure the client should keep the composed text.
// @Tags         chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Chat ID"
// @Param        input body      SendMessageInput  true  "Message"
// @Success      201   {object}  models.Message
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /chats/{id}/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	if strings.TrimSpace(input.Text) == "" {
		respondError(c, h.log, apperr.ErrEmptyMessage)
		return
	}

	msg, err := h.chats.Send(c.Request.Context(), c.Param("id"), auth.UserID(c), input.Text)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Stream godoc
// @Summary      Live messages
// @Description  Server-sent events. Each "messages" event carries the full current snapshot; the first one is sent right away.
// @Tags         chats
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id   path      string  true  "Chat ID"
// @Success      200  {array}   models.Message
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{id}/stream [get]
func (h *ChatHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	// holds only the newest undelivered snapshot
	latest := make(chan []models.Message, 1)
	stop, err := h.chats.Subscribe(ctx, auth.UserID(c), chatID, func(msgs []models.Message) {
		select {
		case <-latest:
		default:
		}
		latest <- msgs
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	h.log.Debug("chat stream open", "chat_id", chatID)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msgs := <-latest:
			if msgs == nil {
				msgs = []models.Message{}
			}
			c.SSEvent("messages", msgs)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
	h.log.Debug("chat stream closed", "chat_id", chatID)
}
