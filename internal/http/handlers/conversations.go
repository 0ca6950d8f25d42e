package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type ChatService interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (chat.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	SendMessage(ctx context.Context, conversationID, text, senderID string) (chat.Message, error)
	SubscribeMessages(ctx context.Context, conversationID string, onSnapshot func([]chat.Message)) (*backend.Subscription, error)
}

type ConversationsHandler struct {
	svc      ChatService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewConversationsHandler takes the origins allowed to open a live socket.
// Requests without an Origin header (non-browser clients) are accepted.
func NewConversationsHandler(svc ChatService, allowedOrigins []string, log *slog.Logger) *ConversationsHandler {
	if log == nil {
		log = slog.Default()
	}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &ConversationsHandler{
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *ConversationsHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	convs, err := h.svc.ListConversationsForUser(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list conversations")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": convs,
		"count": len(convs),
	})
}

// Start opens the conversation between the caller and a counterpart. Asking
// twice, from either side, yields the same conversation.
func (h *ConversationsHandler) Start(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req chat.StartConversationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.svc.FindOrCreateConversation(cctx, userID, req.CounterpartID)
	if err != nil {
		respondServiceError(ctx, err, "Could not start conversation")
		return
	}

	ctx.JSON(http.StatusOK, c)
}

func (h *ConversationsHandler) Messages(ctx *gin.Context) {
	c, ok := h.participantConversation(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	msgs, err := h.svc.ListMessages(cctx, c.ID)
	if err != nil {
		respondServiceError(ctx, err, "Could not list messages")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": msgs,
		"count": len(msgs),
	})
}

func (h *ConversationsHandler) Send(ctx *gin.Context) {
	var req chat.SendMessageRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, ok := h.participantConversation(ctx)
	if !ok {
		return
	}
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	m, err := h.svc.SendMessage(cctx, c.ID, req.Text, userID)
	if err != nil {
		respondServiceError(ctx, err, "Could not send message")
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

// participantConversation loads the path's conversation and answers the
// request itself when the caller may not see it.
func (h *ConversationsHandler) participantConversation(ctx *gin.Context) (chat.Conversation, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return chat.Conversation{}, false
	}

	convID := ctx.Param("id")
	ctx.Set(middlewares.CtxConversationID, convID)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.svc.GetConversation(cctx, convID)
	if err != nil {
		respondServiceError(ctx, err, "Could not fetch conversation")
		return chat.Conversation{}, false
	}

	// a stranger learns nothing about whether the id exists
	if !c.HasParticipant(userID) {
		RespondNotFound(ctx, "Conversation not found")
		return chat.Conversation{}, false
	}

	return c, true
}
