// Package credentials persists nvctl login sessions on disk.
//
// Sessions are kept as named contexts in a single JSON file under the
// user config directory, so one machine can talk to several vault
// daemons. Tokens are written with owner-only permissions.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	configDirName  = "nvctl"
	configFileName = "config.json"

	filePerm = 0o600
	dirPerm  = 0o700
)

var (
	// ErrNoCurrentContext means no context has been selected yet.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound means the named context does not exist.
	ErrContextNotFound = errors.New("context not found")
	// ErrNotLoggedIn means the current context has no usable tokens.
	ErrNotLoggedIn = errors.New("not logged in, run 'nvctl login' first")
)

// Session is one saved connection to a vault daemon.
type Session struct {
	ServerURL    string    `json:"server_url"`
	Username     string    `json:"username,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// TokenExpired reports whether the access token needs refreshing.
// A token within a minute of expiry counts as expired.
func (s *Session) TokenExpired() bool {
	if s.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(time.Minute).After(s.ExpiresAt)
}

// LoggedIn reports whether the session carries any credentials.
func (s *Session) LoggedIn() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

type fileConfig struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Session `json:"contexts"`
}

// Store reads and writes the nvctl credentials file.
type Store struct {
	path string
	cfg  *fileConfig
}

// NewStore opens the credentials file, creating an empty store when the
// file does not exist yet.
func NewStore() (*Store, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return newStoreAt(path)
}

func newStoreAt(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cfg = &fileConfig{Contexts: make(map[string]*Session)}
			return s, nil
		}
		return nil, err
	}

	s.cfg = &fileConfig{}
	if err := json.Unmarshal(data, s.cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.cfg.Contexts == nil {
		s.cfg.Contexts = make(map[string]*Session)
	}
	return s, nil
}

func configPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, configDirName, configFileName), nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, filePerm)
}

// Path returns the location of the credentials file.
func (s *Store) Path() string { return s.path }

// Current returns the selected session.
func (s *Store) Current() (*Session, error) {
	if s.cfg.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	sess, ok := s.cfg.Contexts[s.cfg.CurrentContext]
	if !ok {
		return nil, ErrContextNotFound
	}
	return sess, nil
}

// Context returns the session saved under name.
func (s *Store) Context(name string) (*Session, error) {
	sess, ok := s.cfg.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return sess, nil
}

// CurrentName returns the name of the selected context, or "".
func (s *Store) CurrentName() string { return s.cfg.CurrentContext }

// ContextNames lists all saved context names.
func (s *Store) ContextNames() []string {
	names := make([]string, 0, len(s.cfg.Contexts))
	for name := range s.cfg.Contexts {
		names = append(names, name)
	}
	return names
}

// SetContext saves a session under name and makes it current.
func (s *Store) SetContext(name string, sess *Session) error {
	s.cfg.Contexts[name] = sess
	s.cfg.CurrentContext = name
	return s.save()
}

// UseContext switches the current context.
func (s *Store) UseContext(name string) error {
	if _, ok := s.cfg.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.cfg.CurrentContext = name
	return s.save()
}

// DeleteContext removes a saved context.
func (s *Store) DeleteContext(name string) error {
	if _, ok := s.cfg.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	delete(s.cfg.Contexts, name)
	if s.cfg.CurrentContext == name {
		s.cfg.CurrentContext = ""
	}
	return s.save()
}

// UpdateTokens stores fresh tokens on the current session.
func (s *Store) UpdateTokens(access, refresh string, expiresAt time.Time) error {
	sess, err := s.Current()
	if err != nil {
		return err
	}
	sess.AccessToken = access
	sess.RefreshToken = refresh
	sess.ExpiresAt = expiresAt
	return s.save()
}

// ClearTokens drops the tokens from the current session but keeps the
// server URL, so the next login does not need --server again.
func (s *Store) ClearTokens() error {
	sess, err := s.Current()
	if err != nil {
		return err
	}
	sess.AccessToken = ""
	sess.RefreshToken = ""
	sess.ExpiresAt = time.Time{}
	return s.save()
}

// ContextNameFor derives a context name from a server URL, e.g.
// "vault.example.com:8419". Falls back to "default".
func ContextNameFor(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "default"
	}
	return strings.ToLower(u.Host)
}
