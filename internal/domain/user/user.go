package user

import (
	"errors"
	"time"
)

type Role string

const (
	RoleStudent Role = "Student"
	RoleTeacher Role = "Teacher"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidField = errors.New("invalid profile field")
	ErrNotTeacher   = errors.New("user is not a teacher")
)

// Base holds the fields every account has. ID, Email and Role are write-once.
type Base struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is either a *Student or a *Teacher. The unexported method keeps the
// set closed so a type switch over the two variants is exhaustive.
type Profile interface {
	Account() *Base
	isProfile()
}

type Student struct {
	Base
	GradeLevel    string `json:"gradeLevel"`
	LearningGoals string `json:"learningGoals,omitempty"`
}

type Review struct {
	ID          int    `json:"id"`
	StudentName string `json:"studentName"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
}

type Teacher struct {
	Base
	Headline     string   `json:"headline"`
	Subjects     []string `json:"subjects"`
	Bio          string   `json:"bio"`
	Rating       float64  `json:"rating"`
	Reviews      []Review `json:"reviews"`
	HourlyRate   float64  `json:"hourlyRate"`
	ResumeURL    string   `json:"resumeUrl,omitempty"`
	ProfileViews int      `json:"profileViews"`
}

func (s *Student) Account() *Base { return &s.Base }
func (t *Teacher) Account() *Base { return &t.Base }

func (*Student) isProfile() {}
func (*Teacher) isProfile() {}

// Identity is what the auth layer knows about an account before it has a profile.
type Identity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

type NewProfileRequest struct {
	Name string
	Role Role
}

const (
	DefaultTeacherHeadline = "New Teacher! Ready to inspire students."
	DefaultHourlyRate      = 20
)

// NewProfile builds the default record for a freshly created account.
func NewProfile(id Identity, req NewProfileRequest) (Profile, error) {
	now := time.Now().UTC()

	base := Base{
		ID:        id.ID,
		Name:      req.Name,
		Email:     id.Email,
		Role:      req.Role,
		AvatarURL: id.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch req.Role {
	case RoleTeacher:
		return &Teacher{
			Base:         base,
			Headline:     DefaultTeacherHeadline,
			Subjects:     []string{},
			Reviews:      []Review{},
			HourlyRate:   DefaultHourlyRate,
			ProfileViews: 0,
		}, nil
	case RoleStudent:
		return &Student{
			Base:       base,
			GradeLevel: DefaultGradeLevel(),
		}, nil
	default:
		return nil, ErrInvalidRole
	}
}

// Clone returns a deep copy so callers can hand profiles out without sharing slices.
func Clone(p Profile) Profile {
	switch v := p.(type) {
	case *Student:
		c := *v
		return &c
	case *Teacher:
		c := *v
		c.Subjects = append([]string(nil), v.Subjects...)
		c.Reviews = append([]Review(nil), v.Reviews...)
		if c.Subjects == nil {
			c.Subjects = []string{}
		}
		if c.Reviews == nil {
			c.Reviews = []Review{}
		}
		return &c
	default:
		return nil
	}
}

// Teachers filters a directory snapshot down to teacher profiles, keeping order.
func Teachers(all []Profile) []*Teacher {
	out := make([]*Teacher, 0, len(all))
	for _, p := range all {
		if t, ok := p.(*Teacher); ok {
			out = append(out, t)
		}
	}
	return out
}

// Find looks a profile up by id in a directory snapshot.
func Find(all []Profile, id string) (Profile, bool) {
	for _, p := range all {
		if p.Account().ID == id {
			return p, true
		}
	}
	return nil, false
}
