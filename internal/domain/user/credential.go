package user

import (
	"errors"
	"time"
)

var (
	ErrEmailTaken          = errors.New("email is already in use")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrCredentialExists    = errors.New("credential already exists for this provider subject")
	ErrInvalidCredentials  = errors.New("email or password is incorrect")
	ErrProviderUnavailable = errors.New("federated sign-in is not configured")
)

// Credential is a sign-in identity. Its ID is the account id the profile is
// stored under. Password credentials carry a hash; federated ones carry the
// provider and the provider's subject.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	Provider     string
	Subject      string
	CreatedAt    time.Time
}

const ProviderPassword = "password"

func (c Credential) Identity() Identity {
	return Identity{ID: c.ID, Email: c.Email}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     Role   `json:"role" binding:"required,oneof=Student Teacher"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type FederatedSignInRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state"`
}
