package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/federated"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}
	// routes mounted without the RequestID middleware, as in handler tests
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// respondServiceError maps the facade's sentinel errors onto the envelope.
// Anything unrecognised is a 500 with the given fallback message.
func respondServiceError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, chat.ErrConversationNotFound):
		RespondNotFound(ctx, "Conversation not found")
	case errors.Is(err, user.ErrNotTeacher):
		RespondNotFound(ctx, "Teacher not found")
	case errors.Is(err, chat.ErrNotParticipant):
		RespondForbidden(ctx, "Not a participant of this conversation")
	case errors.Is(err, chat.ErrSelfConversation):
		RespondBadRequest(ctx, "A conversation needs two different users", nil)
	case errors.Is(err, chat.ErrEmptyMessage):
		RespondBadRequest(ctx, "Message text must not be empty", gin.H{"field": "text"})
	case errors.Is(err, user.ErrInvalidField), errors.Is(err, user.ErrInvalidRole), errors.Is(err, backend.ErrInvalidRequest):
		RespondBadRequest(ctx, "Invalid request", gin.H{"reason": err.Error()})
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, user.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, federated.ErrExchangeFailed):
		RespondUnAuthorized(ctx, "federated_exchange_failed", "Could not verify the sign-in with the identity provider.")
	case errors.Is(err, user.ErrProviderUnavailable), errors.Is(err, federated.ErrCircuitOpen):
		RespondError(ctx, http.StatusServiceUnavailable, "provider_unavailable", "Federated sign-in is unavailable.", nil)
	default:
		RespondInternal(ctx, fallback)
	}
}
