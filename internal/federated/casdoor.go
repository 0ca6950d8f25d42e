package federated

import (
	"context"
	"errors"
	"fmt"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"golang.org/x/oauth2"
)

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

type Casdoor struct {
	client *casdoorsdk.Client
}

func NewCasdoor(cfg CasdoorConfig) *Casdoor {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)

	return &Casdoor{client: client}
}

func (c *Casdoor) Name() string { return "casdoor" }

// Exchange trades an authorization code for a token and reads the user out of
// the signed token claims. The SDK calls are not context aware, so ctx only
// short-circuits an already cancelled request.
func (c *Casdoor) Exchange(ctx context.Context, code, state string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	token, err := c.client.GetOAuthToken(code, state)
	if err != nil {
		// the token endpoint answered and refused the code
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
		}
		return Identity{}, fmt.Errorf("casdoor token request: %w", err)
	}

	claims, err := c.client.ParseJwtToken(token.AccessToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid token: %v", ErrExchangeFailed, err)
	}

	subject := claims.User.Id
	if subject == "" {
		subject = claims.Subject
	}

	return Identity{
		Provider:    c.Name(),
		Subject:     subject,
		Email:       claims.User.Email,
		DisplayName: claims.User.DisplayName,
		AvatarURL:   claims.User.Avatar,
	}, nil
}
