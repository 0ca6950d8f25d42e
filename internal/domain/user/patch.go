package user

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Patch is a partial profile update. A nil field means "not provided" and is
// never written. ID, Email and Role are accepted so a full profile can be sent
// back as-is, but Sanitize always removes them.
type Patch struct {
	ID    *string `json:"id,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *Role   `json:"role,omitempty"`

	Name      *string `json:"name,omitempty" binding:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatarUrl,omitempty" binding:"omitempty,max=2048"`

	GradeLevel    *string `json:"gradeLevel,omitempty"`
	LearningGoals *string `json:"learningGoals,omitempty" binding:"omitempty,max=2000"`

	Headline   *string   `json:"headline,omitempty" binding:"omitempty,max=200"`
	Subjects   *[]string `json:"subjects,omitempty"`
	Bio        *string   `json:"bio,omitempty" binding:"omitempty,max=5000"`
	HourlyRate *float64  `json:"hourlyRate,omitempty" binding:"omitempty,gt=0"`
	ResumeURL  *string   `json:"resumeUrl,omitempty" binding:"omitempty,max=2048"`
}

// Sanitize drops the write-once identity fields.
func (p Patch) Sanitize() Patch {
	p.ID = nil
	p.Email = nil
	p.Role = nil
	return p
}

// ForRole keeps only the fields that belong to the given variant.
func (p Patch) ForRole(r Role) Patch {
	switch r {
	case RoleStudent:
		p.Headline = nil
		p.Subjects = nil
		p.Bio = nil
		p.HourlyRate = nil
		p.ResumeURL = nil
	case RoleTeacher:
		p.GradeLevel = nil
		p.LearningGoals = nil
	}
	return p
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.AvatarURL == nil &&
		p.GradeLevel == nil && p.LearningGoals == nil &&
		p.Headline == nil && p.Subjects == nil && p.Bio == nil &&
		p.HourlyRate == nil && p.ResumeURL == nil
}

func fieldError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidField, field, reason)
}

// Validate checks the provided values. Identity fields are not inspected.
func (p Patch) Validate() error {
	var errs []error

	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs = append(errs, fieldError("name", "must not be blank"))
	}
	if p.GradeLevel != nil && !IsGradeLevel(*p.GradeLevel) {
		errs = append(errs, fieldError("gradeLevel", "is not a known grade level"))
	}
	if p.HourlyRate != nil && !(*p.HourlyRate > 0 && !math.IsInf(*p.HourlyRate, 1)) {
		errs = append(errs, fieldError("hourlyRate", "must be a positive finite number"))
	}

	return errors.Join(errs...)
}

// Normalize sanitizes the patch for the stored role, validates it and
// canonicalises subjects. The result is what a store should persist.
func (p Patch) Normalize(r Role) (Patch, error) {
	out := p.Sanitize().ForRole(r)

	if err := out.Validate(); err != nil {
		return Patch{}, err
	}

	if out.Name != nil {
		name := strings.TrimSpace(*out.Name)
		out.Name = &name
	}
	if out.Subjects != nil {
		subjects := NormalizeSubjects(*out.Subjects)
		out.Subjects = &subjects
	}
	return out, nil
}

// Apply merges a normalized patch into a copy of the profile.
func Apply(prof Profile, p Patch) Profile {
	out := Clone(prof)
	base := out.Account()

	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.AvatarURL != nil {
		base.AvatarURL = *p.AvatarURL
	}

	switch v := out.(type) {
	case *Student:
		if p.GradeLevel != nil {
			v.GradeLevel = *p.GradeLevel
		}
		if p.LearningGoals != nil {
			v.LearningGoals = *p.LearningGoals
		}
	case *Teacher:
		if p.Headline != nil {
			v.Headline = *p.Headline
		}
		if p.Subjects != nil {
			v.Subjects = append([]string{}, (*p.Subjects)...)
		}
		if p.Bio != nil {
			v.Bio = *p.Bio
		}
		if p.HourlyRate != nil {
			v.HourlyRate = *p.HourlyRate
		}
		if p.ResumeURL != nil {
			v.ResumeURL = *p.ResumeURL
		}
	}

	base.UpdatedAt = time.Now().UTC()
	return out
}

// PatchFrom turns a full profile into a patch, as a profile form would send it.
func PatchFrom(prof Profile) Patch {
	b := prof.Account()
	id, email, role := b.ID, b.Email, b.Role
	p := Patch{
		ID:        &id,
		Email:     &email,
		Role:      &role,
		Name:      strPtr(b.Name),
		AvatarURL: strPtr(b.AvatarURL),
	}

	switch v := prof.(type) {
	case *Student:
		p.GradeLevel = strPtr(v.GradeLevel)
		p.LearningGoals = strPtr(v.LearningGoals)
	case *Teacher:
		subjects := append([]string{}, v.Subjects...)
		rate := v.HourlyRate
		p.Headline = strPtr(v.Headline)
		p.Subjects = &subjects
		p.Bio = strPtr(v.Bio)
		p.HourlyRate = &rate
		p.ResumeURL = strPtr(v.ResumeURL)
	}
	return p
}

func strPtr(s string) *string { return &s }

type NewReviewRequest struct {
	StudentName string `json:"studentName" binding:"required,min=1,max=120"`
	Rating      int    `json:"rating" binding:"required,min=1,max=5"`
	Comment     string `json:"comment" binding:"omitempty,max=2000"`
}

// AddReview appends a review and recomputes the teacher's rating as the mean.
func AddReview(t *Teacher, req NewReviewRequest) (*Teacher, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fieldError("rating", "must be between 1 and 5")
	}
	if strings.TrimSpace(req.StudentName) == "" {
		return nil, fieldError("studentName", "must not be blank")
	}

	out := Clone(t).(*Teacher)

	nextID := 1
	for _, r := range out.Reviews {
		if r.ID >= nextID {
			nextID = r.ID + 1
		}
	}

	out.Reviews = append(out.Reviews, Review{
		ID:          nextID,
		StudentName: strings.TrimSpace(req.StudentName),
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	out.Rating = AverageRating(out.Reviews)
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
