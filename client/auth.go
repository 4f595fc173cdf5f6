package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/memorial"
)

// CurrentUser returns the signed-in user, or nil when there is no valid
// token. Lookups are cached per token for a minute.
func (c *Client) CurrentUser(ctx context.Context) (*memorial.User, error) {
	token := c.Token()
	if token == "" {
		return nil, nil
	}

	cacheKey := "me:" + token
	if x, found := c.cache.Get(cacheKey); found {
		user := x.(memorial.User)
		return &user, nil
	}

	req, err := c.newJSONRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.send(req)
	if err != nil {
		if StatusCode(err) == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}

	var user memorial.User
	if err := decodeInto(body, &user); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, user, cache.DefaultExpiration)
	return &user, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, result any) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	body, err := c.send(req)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return decodeInto(body, result)
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) (memorial.SignUpResult, error) {
	var result memorial.SignUpResult
	err := c.postJSON(ctx, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, &result)
	return result, err
}

// SignIn authenticates and keeps the issued token for later requests. An
// unconfirmed account yields an error matching memorial.ErrUserNotConfirmed.
func (c *Client) SignIn(ctx context.Context, email, password string) (memorial.SignInResult, error) {
	var result memorial.SignInResult
	err := c.postJSON(ctx, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return result, err
	}
	if result.Token == "" {
		return result, errors.New("sign-in returned no token")
	}

	c.SetToken(result.Token)
	c.cache.Set("me:"+result.Token, result.User, cache.DefaultExpiration)
	return result, nil
}

func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	return c.postJSON(ctx, "/api/auth/confirm", map[string]string{
		"email": email,
		"code":  code,
	}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/api/auth/reset", map[string]string{
		"email": email,
	}, nil)
}

func (c *Client) ConfirmResetPassword(ctx context.Context, email, code, newPassword string) error {
	return c.postJSON(ctx, "/api/auth/reset/confirm", map[string]string{
		"email":    email,
		"code":     code,
		"password": newPassword,
	}, nil)
}

// SignOut forgets the local token. Tokens are stateless, so the server call
// only exists for symmetry and its failure is ignored.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}
	_ = c.postJSON(ctx, "/api/auth/signout", nil, nil)

	c.cache.Delete("me:" + token)
	c.SetToken("")
	return nil
}
