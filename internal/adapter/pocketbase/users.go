package pocketbase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/quake-sync/internal/auth"
)

type authRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type userRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	Token  string     `json:"token"`
	Record userRecord `json:"record"`
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// SignIn authenticates against the users collection. It implements
// auth.Authenticator.
func (c *Client) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, c.collectionURL(usersCollection)+"/auth-with-password",
		authRequest{Identity: email, Password: password}, &resp, false)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return auth.Session{}, auth.ErrInvalidCredentials
		}
		return auth.Session{}, fmt.Errorf("sign in: %w", err)
	}
	return auth.Session{
		Token: resp.Token,
		User:  auth.Identity{UserID: resp.Record.ID, Email: resp.Record.Email},
	}, nil
}

// SignUp creates a users record. The server checks the confirmation too.
func (c *Client) SignUp(ctx context.Context, email, password, confirm string) (auth.Identity, error) {
	var rec userRecord
	err := c.do(ctx, http.MethodPost, c.recordsURL(usersCollection),
		signUpRequest{Email: email, Password: password, PasswordConfirm: confirm}, &rec, false)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			switch {
			case apiErr.fieldCode("email") == "validation_not_unique":
				return auth.Identity{}, auth.ErrUserExists
			case apiErr.fieldCode("passwordConfirm") != "":
				return auth.Identity{}, auth.ErrPasswordMismatch
			case apiErr.fieldCode("password") != "", apiErr.fieldCode("email") != "":
				return auth.Identity{}, fmt.Errorf("%w: %s", auth.ErrInvalidInput, apiErr.Error())
			}
		}
		return auth.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	if rec.Email == "" {
		rec.Email = email
	}
	return auth.Identity{UserID: rec.ID, Email: rec.Email}, nil
}
