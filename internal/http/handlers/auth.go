package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (backend.AuthResult, error)
	SignUpWithPassword(ctx context.Context, req user.SignUpRequest) (backend.AuthResult, error)
	SignInWithFederatedProvider(ctx context.Context, code, state string) (backend.AuthResult, error)
}

// RefreshTokenStore persists refresh token rows. Rotate must run check and the
// swap atomically so a token can be redeemed once.
type RefreshTokenStore interface {
	Create(ctx context.Context, row auth.RefreshToken) error
	Rotate(ctx context.Context, id string, check func(auth.RefreshToken) error, next auth.RefreshToken) error
	Revoke(ctx context.Context, id string) error
}

const refreshCookie = "refresh_token"

type AuthHandler struct {
	svc          Authenticator
	jwt          *auth.Manager
	refreshStore RefreshTokenStore
	cfg          config.Config
	log          *slog.Logger
}

func NewAuthHandler(svc Authenticator, jwtManager *auth.Manager, refreshStore RefreshTokenStore, cfg config.Config, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		svc:          svc,
		jwt:          jwtManager,
		refreshStore: refreshStore,
		cfg:          cfg,
		log:          log,
	}
}

type authResponse struct {
	AccessToken string       `json:"accessToken"`
	UserID      string       `json:"userId"`
	User        user.Profile `json:"user"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	res, err := h.svc.SignUpWithPassword(cctx, req)
	if err != nil {
		respondServiceError(ctx, err, "Could not create user")
		return
	}

	h.startSession(ctx, cctx, http.StatusCreated, res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.SignInRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	res, err := h.svc.SignInWithPassword(cctx, req.Email, req.Password)
	if err != nil {
		respondServiceError(ctx, err, "Could not sign in")
		return
	}

	h.startSession(ctx, cctx, http.StatusOK, res)
}

func (h *AuthHandler) Federated(ctx *gin.Context) {
	var req user.FederatedSignInRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// the provider round trip dominates here
	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	res, err := h.svc.SignInWithFederatedProvider(cctx, req.Code, req.State)
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "federated sign-in failed", "err", err)
		respondServiceError(ctx, err, "Could not sign in")
		return
	}

	h.startSession(ctx, cctx, http.StatusOK, res)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookie)

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	subject := auth.Subject{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}

	newRaw, newRow, err := h.jwt.GenerateRefreshToken(subject)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.refreshStore.Rotate(cctx, claims.JTI, func(row auth.RefreshToken) error {
		return h.jwt.CheckPresented(row, raw, time.Now().UTC())
	}, newRow)

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	case errors.Is(err, auth.ErrRefreshTokenRevoked),
		errors.Is(err, auth.ErrRefreshTokenNotFound),
		errors.Is(err, auth.ErrRefreshTokenMismatch):
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	default:
		h.log.ErrorContext(ctx.Request.Context(), "refresh rotation failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(subject)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newRow.ExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookie)

	if err != nil || raw == "" {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// idempotent
	if err := h.refreshStore.Revoke(cctx, claims.JTI); err != nil {
		h.log.WarnContext(ctx.Request.Context(), "refresh revoke failed", "err", err)
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) startSession(ctx *gin.Context, cctx context.Context, status int, res backend.AuthResult) {
	subject := auth.Subject{UserID: res.Identity.ID, Email: res.Identity.Email}
	if res.Profile != nil {
		subject.Role = string(res.Profile.Account().Role)
	}

	accessToken, err := h.jwt.GenerateAccessToken(subject)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	rawRefresh, row, err := h.jwt.GenerateRefreshToken(subject)
	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	if err := h.refreshStore.Create(cctx, row); err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, rawRefresh, row.ExpiresAt)

	ctx.JSON(status, authResponse{
		AccessToken: accessToken,
		UserID:      res.Identity.ID,
		User:        res.Profile,
	})
}

// The refresh cookie is only sent to /auth routes.
func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	h.writeRefreshCookie(ctx, raw, int(time.Until(expiresAt).Seconds()))
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	h.writeRefreshCookie(ctx, "", -1)
}

func (h *AuthHandler) writeRefreshCookie(ctx *gin.Context, raw string, maxAge int) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookie, raw, maxAge, "/auth", "", h.cfg.Env == "prod", true)
}
