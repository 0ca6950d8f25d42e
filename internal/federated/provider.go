package federated

import (
	"context"
	"errors"
)

var ErrExchangeFailed = errors.New("federated code exchange failed")

// Identity is what a provider vouches for after a successful code exchange.
type Identity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

type Provider interface {
	Name() string
	Exchange(ctx context.Context, code, state string) (Identity, error)
}
