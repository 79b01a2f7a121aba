package apiclient

import (
	"context"
	"net/http"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for the user's identity.
func (c *Client) Login(ctx context.Context, email, password string) (*rbac.Identity, error) {
	var identity rbac.Identity
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Register creates an account and returns its identity.
func (c *Client) Register(ctx context.Context, name, email, password string) (*rbac.Identity, error) {
	var identity rbac.Identity
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, registerRequest{Nombre: name, Email: email, Password: password}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
