package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CredentialsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCredentialsRepo(pool *pgxpool.Pool, prom *observability.Prom) *CredentialsRepo {
	return &CredentialsRepo{pool: pool, prom: prom}
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *CredentialsRepo) Create(ctx context.Context, c user.Credential) (user.Credential, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	err := r.prom.ObserveDB(ctx, "credentials.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO credentials (id, email, password_hash, provider, subject, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.Email, c.PasswordHash, c.Provider, c.Subject, c.CreatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			if c.Provider == user.ProviderPassword {
				return user.Credential{}, user.ErrEmailTaken
			}
			return user.Credential{}, user.ErrCredentialExists
		}
		return user.Credential{}, err
	}
	return c, nil
}

func (r *CredentialsRepo) GetByEmail(ctx context.Context, email string) (user.Credential, error) {
	return r.getOne(ctx, "credentials.get_by_email", `
		SELECT id, email, password_hash, provider, subject, created_at
		FROM credentials
		WHERE provider = 'password' AND lower(email) = lower($1)`, email)
}

func (r *CredentialsRepo) GetByProviderSubject(ctx context.Context, provider, subject string) (user.Credential, error) {
	return r.getOne(ctx, "credentials.get_by_subject", `
		SELECT id, email, password_hash, provider, subject, created_at
		FROM credentials
		WHERE provider = $1 AND subject = $2`, provider, subject)
}

func (r *CredentialsRepo) getOne(ctx context.Context, op, query string, args ...any) (user.Credential, error) {
	var c user.Credential

	err := r.prom.ObserveDB(ctx, op, func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(
			&c.ID,
			&c.Email,
			&c.PasswordHash,
			&c.Provider,
			&c.Subject,
			&c.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Credential{}, user.ErrCredentialNotFound
		}
		return user.Credential{}, err
	}
	return c, nil
}
