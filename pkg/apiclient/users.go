package apiclient

import "net/url"

// CreateUserRequest mints a new identity on the daemon (admin only).
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// CreateUser creates a user with fresh keypairs (admin only).
func (c *Client) CreateUser(req CreateUserRequest) (*User, error) {
	var user User
	if err := c.post("/api/v1/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users (admin only).
func (c *Client) ListUsers() ([]User, error) {
	var users []User
	if err := c.get("/api/v1/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one user by username (admin only).
func (c *Client) GetUser(username string) (*User, error) {
	var user User
	if err := c.get("/api/v1/users/"+url.PathEscape(username), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserEnabled enables or disables a user (admin only). Disabling
// also revokes the user's live sessions.
func (c *Client) SetUserEnabled(username string, enabled bool) error {
	path := "/api/v1/users/" + url.PathEscape(username) + "/enabled"
	return c.put(path, setEnabledRequest{Enabled: enabled}, nil)
}

// DeleteUser removes a user (admin only).
func (c *Client) DeleteUser(username string) error {
	return c.delete("/api/v1/users/" + url.PathEscape(username))
}
