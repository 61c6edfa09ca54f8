package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tailtrail/internal/client"
	"tailtrail/internal/files"
	"tailtrail/internal/models"
	"tailtrail/internal/utils"
)

var (
	// ErrNotLoggedIn is returned by calls that need a stored token.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrMissingAccessToken is returned when login succeeds without a token.
	ErrMissingAccessToken = errors.New("login response has no access token")
)

// Store is the credential store the manager keeps its token in.
type Store interface {
	Save(token string) error
	Token() (string, error)
	Delete() error
	HasToken() bool
}

// Manager tracks the signed-in user and owns the API client.
type Manager struct {
	store  Store
	client *client.Client
	log    *utils.Logger

	mu       sync.RWMutex
	loggedIn bool
	user     *models.User
}

// NewManager creates a Manager for the API at baseURL. The client it builds
// reads its bearer token from store and logs out when the token expires.
func NewManager(baseURL string, store Store, log *utils.Logger, opts ...client.Option) *Manager {
	if log == nil {
		log = utils.Discard()
	}
	m := &Manager{
		store:    store,
		log:      log,
		loggedIn: store.HasToken(),
	}
	opts = append([]client.Option{client.WithLogger(log)}, opts...)
	opts = append(opts, client.WithExpiredHandler(m.expired))
	m.client = client.New(baseURL, m, opts...)
	return m
}

// Client returns the API client bound to this manager.
func (m *Manager) Client() *client.Client { return m.client }

// Token implements client.TokenSource. No stored token yields "".
func (m *Manager) Token() (string, error) {
	token, err := m.store.Token()
	if errors.Is(err, files.ErrTokenNotFound) {
		return "", nil
	}
	return token, err
}

// IsLoggedIn reports whether a token is held.
func (m *Manager) IsLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loggedIn
}

// CurrentUser returns the user from the last login or profile fetch.
func (m *Manager) CurrentUser() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Login exchanges email and password for an access token and stores it.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	var resp models.TokenResponse
	err := m.client.PostJSON(ctx, "/api/v1/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if err := m.store.Save(resp.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	m.mu.Lock()
	m.loggedIn = true
	m.user = &resp.User
	m.mu.Unlock()

	m.log.Infof("logged in as %s", resp.User.Email)
	return nil
}

// Register creates an account and logs straight into it.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	req := models.SignupRequest{
		Email:     email,
		Password:  password,
		FirstName: "New",
		LastName:  "User",
	}
	if err := m.client.PostJSON(ctx, "/api/v1/signup", req, nil); err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	return m.Login(ctx, email, password)
}

// FetchProfile loads the signed-in user's profile.
func (m *Manager) FetchProfile(ctx context.Context) (*models.User, error) {
	if !m.store.HasToken() {
		return nil, ErrNotLoggedIn
	}
	var u models.User
	if err := m.client.GetJSON(ctx, "/api/v1/users/me", &u); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	m.mu.Lock()
	m.user = &u
	m.mu.Unlock()
	return &u, nil
}

// Logout forgets the token and the user.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.loggedIn = false
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Delete(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// DeleteAccount deletes the account on the server, then logs out locally.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	if !m.store.HasToken() {
		return ErrNotLoggedIn
	}
	if err := m.client.Delete(ctx, "/api/v1/users/me"); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return m.Logout()
}

func (m *Manager) expired() {
	m.log.Warn("session expired, logging out")
	if err := m.Logout(); err != nil {
		m.log.Errorf("logout after expiry: %v", err)
	}
}
