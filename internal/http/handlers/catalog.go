package handlers

import (
	"net/http"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Catalog lists the fixed choices the profile forms offer.
func Catalog(ctx *gin.Context) {
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"gradeLevels":       user.GradeLevels(),
		"subjects":          user.AllSubjects(),
		"defaultGradeLevel": user.DefaultGradeLevel(),
	})
}
