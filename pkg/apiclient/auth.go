package apiclient

import "time"

// User mirrors the daemon's sanitized user representation.
type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Role             string     `json:"role"`
	SigningPublicKey string     `json:"signing_public_key"`
	BoxPublicKey     string     `json:"box_public_key"`
	Enabled          bool       `json:"enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
}

// LoginResponse is the token pair returned on login or refresh.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates and returns a token pair. The client keeps the
// access token for subsequent requests.
func (c *Client) Login(username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.post("/api/v1/auth/login", loginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// Refresh trades a refresh token for a fresh pair. The old refresh
// token is dead after this call.
func (c *Client) Refresh(refreshToken string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.post("/api/v1/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// Logout revokes the session behind refreshToken. With an empty token
// the daemon revokes every session of the calling user.
func (c *Client) Logout(refreshToken string) error {
	return c.post("/api/v1/auth/logout", logoutRequest{RefreshToken: refreshToken}, nil)
}

// Me returns the authenticated user.
func (c *Client) Me() (*User, error) {
	var user User
	if err := c.get("/api/v1/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
