package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/auth"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/service"
)

// region --- DTOs ---

// SendRequestInput names the user to connect with.
type SendRequestInput struct {
	ReceiverID string `json:"receiver_id" binding:"required,max=64" example:"9b2f0c1e-4d0a-4c55-9f0e-3d1f5c7a2b11"`
}

// RequestResponse is a request together with the other side's profile.
type RequestResponse struct {
	models.ConnectionRequest
	Counterpart   *models.Profile `json:"counterpart,omitempty"`
	CounterpartID string          `json:"counterpart_id"`
}

// AcceptResponse carries the chat provisioned by an accept.
type AcceptResponse struct {
	Request models.ConnectionRequest `json:"request"`
	ChatID  string                   `json:"chat_id" example:"alice_bob"`
}

// endregion

type RequestHandler struct {
	log      *logger.Logger
	requests *service.RequestService
}

func NewRequestHandler(log *logger.Logger, requests *service.RequestService) *RequestHandler {
	return &RequestHandler{log: log.With("handler", "RequestHandler"), requests: requests}
}

// Send godoc
// @Summary      Send a connection request
// @Description  Creates a pending request. Any earlier request to the same user, whatever its status, is a duplicate.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body SendRequestInput true "Receiver"
// @Success      201  {object}  models.ConnectionRequest
// @Failure      400  {object}  ErrorResponse "Invalid input or request to self"
// @Failure      403  {object}  ErrorResponse "Sender has no profile"
// @Failure      404  {object}  ErrorResponse "Receiver not found"
// @Failure      409  {object}  ErrorResponse "Request already exists"
// @Failure      503  {object}  ErrorResponse
// @Router       /requests [post]
func (h *RequestHandler) Send(c *gin.Context) {
	var input SendRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	req, err := h.requests.Send(c.Request.Context(), auth.UserID(c), input.ReceiverID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// Accept godoc
// @Summary      Accept a connection request
// @Description  Accepts a pending request addressed to the caller and opens the chat for the pair.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  AcceptResponse
// @Failure      403  {object}  ErrorResponse "Caller is not the receiver"
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Request is no longer pending"
// @Router       /requests/{id}/accept [post]
func (h *RequestHandler) Accept(c *gin.Context) {
	req, chatID, err := h.requests.Accept(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, AcceptResponse{Request: *req, ChatID: chatID})
}

// Decline godoc
// @Summary      Decline a connection request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  models.ConnectionRequest
// @Failure      403  {object}  ErrorResponse "Caller is not the receiver"
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Request is no longer pending"
// @Router       /requests/{id}/decline [post]
func (h *RequestHandler) Decline(c *gin.Context) {
	req, err := h.requests.Decline(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Inbound godoc
// @Summary      Pending requests received
// @Description  Newest first, at most 50.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RequestResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /requests/inbound [get]
func (h *RequestHandler) Inbound(c *gin.Context) {
	h.list(c, h.requests.Inbound)
}

// Accepted godoc
// @Summary      Accepted connections
// @Description  Requests the caller sent or received that were accepted, newest first.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RequestResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /requests/accepted [get]
func (h *RequestHandler) Accepted(c *gin.Context) {
	h.list(c, h.requests.Accepted)
}

// Outbound godoc
// @Summary      Pending requests sent
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RequestResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /requests/outbound [get]
func (h *RequestHandler) Outbound(c *gin.Context) {
	h.list(c, h.requests.OutboundPending)
}

func (h *RequestHandler) list(c *gin.Context, query func(context.Context, string) ([]models.ConnectionRequest, error)) {
	ctx := c.Request.Context()
	viewerID := auth.UserID(c)

	reqs, err := query(ctx, viewerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	enriched, err := h.requests.WithProfiles(ctx, viewerID, reqs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]RequestResponse, len(enriched))
	for i, r := range enriched {
		out[i] = RequestResponse{ConnectionRequest: r.Request, Counterpart: r.Counterpart, CounterpartID: r.CounterpartID}
	}
	c.JSON(http.StatusOK, out)
}
