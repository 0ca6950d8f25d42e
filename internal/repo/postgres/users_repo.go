package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Both variants share one table. Columns that belong to the other variant are
// left at their zero value and ignored on read.
const userColumns = `id, role, name, email, avatar_url,
	grade_level, learning_goals,
	headline, subjects, bio, rating, reviews, hourly_rate, resume_url, profile_views,
	created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

type userRow struct {
	ID            string
	Role          string
	Name          string
	Email         string
	AvatarURL     string
	GradeLevel    string
	LearningGoals string
	Headline      string
	Subjects      []string
	Bio           string
	Rating        float64
	Reviews       []byte
	HourlyRate    float64
	ResumeURL     string
	ProfileViews  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (row *userRow) dest() []any {
	return []any{
		&row.ID, &row.Role, &row.Name, &row.Email, &row.AvatarURL,
		&row.GradeLevel, &row.LearningGoals,
		&row.Headline, &row.Subjects, &row.Bio, &row.Rating, &row.Reviews, &row.HourlyRate, &row.ResumeURL, &row.ProfileViews,
		&row.CreatedAt, &row.UpdatedAt,
	}
}

func (row userRow) profile() (user.Profile, error) {
	base := user.Base{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Role:      user.Role(row.Role),
		AvatarURL: row.AvatarURL,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	switch base.Role {
	case user.RoleStudent:
		return &user.Student{Base: base, GradeLevel: row.GradeLevel, LearningGoals: row.LearningGoals}, nil
	case user.RoleTeacher:
		reviews := []user.Review{}
		if len(row.Reviews) > 0 {
			if err := json.Unmarshal(row.Reviews, &reviews); err != nil {
				return nil, fmt.Errorf("decode reviews for %s: %w", row.ID, err)
			}
		}
		subjects := row.Subjects
		if subjects == nil {
			subjects = []string{}
		}
		return &user.Teacher{
			Base:         base,
			Headline:     row.Headline,
			Subjects:     subjects,
			Bio:          row.Bio,
			Rating:       row.Rating,
			Reviews:      reviews,
			HourlyRate:   row.HourlyRate,
			ResumeURL:    row.ResumeURL,
			ProfileViews: row.ProfileViews,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", user.ErrInvalidRole, row.Role)
	}
}

func rowFromProfile(p user.Profile) (userRow, error) {
	b := p.Account()
	row := userRow{
		ID:        b.ID,
		Role:      string(b.Role),
		Name:      b.Name,
		Email:     b.Email,
		AvatarURL: b.AvatarURL,
		Subjects:  []string{},
		Reviews:   []byte("[]"),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}

	switch v := p.(type) {
	case *user.Student:
		row.GradeLevel = v.GradeLevel
		row.LearningGoals = v.LearningGoals
	case *user.Teacher:
		reviews, err := json.Marshal(nonNilReviews(v.Reviews))
		if err != nil {
			return userRow{}, err
		}
		row.Headline = v.Headline
		if v.Subjects != nil {
			row.Subjects = v.Subjects
		}
		row.Bio = v.Bio
		row.Rating = v.Rating
		row.Reviews = reviews
		row.HourlyRate = v.HourlyRate
		row.ResumeURL = v.ResumeURL
		row.ProfileViews = v.ProfileViews
	}
	return row, nil
}

func nonNilReviews(in []user.Review) []user.Review {
	if in == nil {
		return []user.Review{}
	}
	return in
}

func (r *UsersRepo) Get(ctx context.Context, id string) (user.Profile, error) {
	var row userRow

	err := r.prom.ObserveDB(ctx, "users.get", func() error {
		return r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).Scan(row.dest()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return row.profile()
}

// Create inserts p. When a row with the same id already exists it is returned
// untouched with created=false.
func (r *UsersRepo) Create(ctx context.Context, p user.Profile) (user.Profile, bool, error) {
	row, err := rowFromProfile(p)
	if err != nil {
		return nil, false, err
	}

	var out userRow
	err = r.prom.ObserveDB(ctx, "users.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (id) DO NOTHING
			RETURNING `+userColumns,
			row.ID, row.Role, row.Name, row.Email, row.AvatarURL,
			row.GradeLevel, row.LearningGoals,
			row.Headline, row.Subjects, row.Bio, row.Rating, row.Reviews, row.HourlyRate, row.ResumeURL, row.ProfileViews,
			row.CreatedAt, row.UpdatedAt,
		).Scan(out.dest()...)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.Get(ctx, row.ID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}

	created, err := out.profile()
	return created, true, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.Profile, error) {
	out := make([]user.Profile, 0)

	err := r.prom.ObserveDB(ctx, "users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY lower(name) ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row userRow
			if err := rows.Scan(row.dest()...); err != nil {
				return err
			}
			p, err := row.profile()
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes only the fields present in an already normalized patch.
func (r *UsersRepo) Update(ctx context.Context, id string, patch user.Patch) (user.Profile, error) {
	var sets []string
	var args []any
	argsPosition := 2

	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argsPosition))
		args = append(args, v)
		argsPosition++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.GradeLevel != nil {
		add("grade_level", *patch.GradeLevel)
	}
	if patch.LearningGoals != nil {
		add("learning_goals", *patch.LearningGoals)
	}
	if patch.Headline != nil {
		add("headline", *patch.Headline)
	}
	if patch.Subjects != nil {
		add("subjects", *patch.Subjects)
	}
	if patch.Bio != nil {
		add("bio", *patch.Bio)
	}
	if patch.HourlyRate != nil {
		add("hourly_rate", *patch.HourlyRate)
	}
	if patch.ResumeURL != nil {
		add("resume_url", *patch.ResumeURL)
	}

	sets = append(sets, "updated_at = NOW()")
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns

	var row userRow
	err := r.prom.ObserveDB(ctx, "users.update", func() error {
		return r.pool.QueryRow(ctx, query, append([]any{id}, args...)...).Scan(row.dest()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return row.profile()
}

// AddReview locks the teacher row so concurrent reviews each see the previous
// one when computing the next id and the mean rating.
func (r *UsersRepo) AddReview(ctx context.Context, teacherID string, req user.NewReviewRequest) (*user.Teacher, error) {
	var updated *user.Teacher

	err := r.prom.ObserveDB(ctx, "users.add_review", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var row userRow
		err = tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, teacherID).Scan(row.dest()...)
		if err != nil {
			return err
		}

		p, err := row.profile()
		if err != nil {
			return err
		}
		t, ok := p.(*user.Teacher)
		if !ok {
			return user.ErrNotTeacher
		}

		updated, err = user.AddReview(t, req)
		if err != nil {
			return err
		}

		reviews, err := json.Marshal(updated.Reviews)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET reviews = $2, rating = $3, updated_at = $4
			WHERE id = $1`,
			teacherID, reviews, updated.Rating, updated.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (r *UsersRepo) IncrementProfileViews(ctx context.Context, teacherID string) error {
	var role string

	err := r.prom.ObserveDB(ctx, "users.increment_views", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE users SET profile_views = profile_views + 1
			WHERE id = $1 AND role = 'Teacher'
			RETURNING role`, teacherID).Scan(&role)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, teacherID); getErr != nil {
			return getErr
		}
		return user.ErrNotTeacher
	}
	return err
}
