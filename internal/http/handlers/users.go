package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ProfileService interface {
	GetUserProfile(ctx context.Context, id string) (user.Profile, bool, error)
	UpdateUserProfile(ctx context.Context, id string, patch user.Patch) (user.Profile, error)
}

type UsersHandler struct {
	svc       ProfileService
	directory *Directory
}

func NewUsersHandler(svc ProfileService, directory *Directory) *UsersHandler {
	return &UsersHandler{svc: svc, directory: directory}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, found, err := h.svc.GetUserProfile(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not fetch profile")
		return
	}
	if !found {
		// signed in, but the profile step of sign-up never completed
		RespondError(ctx, http.StatusNotFound, "profile_missing", "This account has no profile yet.", nil)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// UpdateMe accepts a partial profile. Identity fields may be sent back with
// the rest of a profile; they are ignored.
func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var patch user.Patch
	if !BindJSON(ctx, &patch) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.svc.UpdateUserProfile(cctx, userID, patch)
	if err != nil {
		respondServiceError(ctx, err, "Could not update profile")
		return
	}

	h.directory.Invalidate()

	ctx.JSON(http.StatusOK, p)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	all, err := h.directory.All(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": all,
		"count": len(all),
	})
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, found, err := h.svc.GetUserProfile(cctx, id)
	if err != nil {
		RespondInternal(ctx, "Could not fetch user")
		return
	}
	if !found {
		RespondNotFound(ctx, "User not found")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}
