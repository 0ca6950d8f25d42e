package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TeacherService interface {
	GetUserProfile(ctx context.Context, id string) (user.Profile, bool, error)
	RecordProfileView(ctx context.Context, teacherID string) error
	AddReview(ctx context.Context, teacherID string, req user.NewReviewRequest) (*user.Teacher, error)
}

type TeachersHandler struct {
	svc       TeacherService
	directory *Directory
	log       *slog.Logger
}

func NewTeachersHandler(svc TeacherService, directory *Directory, log *slog.Logger) *TeachersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TeachersHandler{svc: svc, directory: directory, log: log}
}

// ReviewRequest is what a student posts. The reviewer's name comes from
// their own profile, not from the body.
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"omitempty,max=2000"`
}

func (h *TeachersHandler) Search(ctx *gin.Context) {
	term := ctx.Query("q")
	subject := ctx.Query("subject")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hits, err := h.directory.SearchTeachers(cctx, term, subject)
	if err != nil {
		RespondInternal(ctx, "Could not search teachers")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": hits,
		"count": len(hits),
	})
}

// Get returns a teacher profile and counts the visit.
func (h *TeachersHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.svc.RecordProfileView(cctx, id); err != nil {
		respondServiceError(ctx, err, "Could not fetch teacher")
		return
	}

	p, found, err := h.svc.GetUserProfile(cctx, id)
	if err != nil {
		RespondInternal(ctx, "Could not fetch teacher")
		return
	}

	t, ok := p.(*user.Teacher)
	if !found || !ok {
		RespondNotFound(ctx, "Teacher not found")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TeachersHandler) AddReview(ctx *gin.Context) {
	teacherID := ctx.Param("id")

	studentID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ReviewRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	me, found, err := h.svc.GetUserProfile(cctx, studentID)
	if err != nil {
		RespondInternal(ctx, "Could not add review")
		return
	}
	if !found {
		RespondError(ctx, http.StatusNotFound, "profile_missing", "This account has no profile yet.", nil)
		return
	}

	t, err := h.svc.AddReview(cctx, teacherID, user.NewReviewRequest{
		StudentName: me.Account().Name,
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	if err != nil {
		respondServiceError(ctx, err, "Could not add review")
		return
	}

	h.directory.Invalidate()

	ctx.JSON(http.StatusCreated, t)
}
