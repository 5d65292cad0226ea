package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	appLog "attendfill/internal/log"
	"attendfill/internal/model"
)

const (
	tokenEndpoint  = "/auth/token"
	revokeEndpoint = "/auth/revoke"
	meEndpoint     = "/user-account-db/user-accounts/me"
)

type accountResponse struct {
	OwnerID string `json:"ownerId"`
}

// Login obtains a bearer token with the password grant and resolves the
// user identity. Calling Login on an established session is a no-op.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.LoggedIn() {
		return nil
	}

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + tokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	octx := context.WithValue(ctx, oauth2.HTTPClient, c.plain)

	tok, err := conf.PasswordCredentialsToken(octx, username, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return &APIError{
				Method:     http.MethodPost,
				Endpoint:   tokenEndpoint,
				StatusCode: rerr.Response.StatusCode,
				Status:     rerr.Response.Status,
				Body:       strings.TrimSpace(string(rerr.Body)),
			}
		}
		return fmt.Errorf("remote: login: %w", err)
	}

	authed := oauth2.NewClient(octx, oauth2.StaticTokenSource(tok))
	authed.Timeout = c.plain.Timeout

	var acct accountResponse
	if err := c.send(ctx, authed, meEndpoint, nil, &acct); err != nil {
		return err
	}
	if acct.OwnerID == "" {
		return &DataShapeError{Endpoint: meEndpoint, Field: "ownerId"}
	}

	c.token = tok
	c.authed = authed
	c.userID = model.UserID(acct.OwnerID)

	appLog.Info("logged in", "user_id", acct.OwnerID)
	return nil
}

// Logout revokes the token. The local session is cleared even when the
// revocation call fails. Logging out without a session is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	if !c.LoggedIn() {
		return nil
	}
	err := c.send(ctx, c.authed, revokeEndpoint, map[string]string{"token": c.token.AccessToken}, nil)

	c.token = nil
	c.authed = nil
	c.userID = ""

	if err != nil {
		return err
	}
	appLog.Info("logged out")
	return nil
}
