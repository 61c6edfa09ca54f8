package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tailtrail/internal/models"
)

const usersFileName = "users.json"

var (
	// ErrUserExists is returned when registering an email twice.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSelfBlock is returned when a user tries to block themselves.
	ErrSelfBlock = errors.New("cannot block yourself")
	// ErrNotBlocked is returned when unblocking a user that is not blocked.
	ErrNotBlocked = errors.New("user is not blocked")
)

type storedUser struct {
	models.User
	PasswordHash string   `json:"password_hash"`
	Blocked      []string `json:"blocked,omitempty"`
}

// UserStore persists backend accounts with bcrypt password hashes.
type UserStore struct {
	filePath string
	mu       sync.RWMutex
}

// NewUserStore creates a UserStore keeping its file in dir.
func NewUserStore(dir string) (*UserStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &UserStore{filePath: filepath.Join(dir, usersFileName)}, nil
}

// Register creates an account. Emails are compared case-insensitively.
func (s *UserStore) Register(req models.SignupRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return nil, ErrUserExists
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := storedUser{
		User: models.User{
			ID:        uuid.NewString(),
			Email:     email,
			Phone:     req.Phone,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		PasswordHash: string(hash),
	}
	users = append(users, u)
	if err := s.write(users); err != nil {
		return nil, err
	}
	return &u.User, nil
}

// Authenticate checks the password for email.
func (s *UserStore) Authenticate(email, password string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	for _, u := range users {
		if u.Email != email {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return &u.User, nil
	}
	return nil, ErrInvalidCredentials
}

// Get returns the user with id.
func (s *UserStore) Get(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u.User, nil
		}
	}
	return nil, ErrUserNotFound
}

// Delete removes the user with id.
func (s *UserStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	idx := indexOfUser(users, id)
	if idx < 0 {
		return ErrUserNotFound
	}
	users = append(users[:idx], users[idx+1:]...)
	for i := range users {
		users[i].Blocked = removeID(users[i].Blocked, id)
	}
	return s.write(users)
}

// Block records that userID no longer wants to see blockedID. Blocking twice
// is not an error.
func (s *UserStore) Block(userID, blockedID string) error {
	if userID == blockedID {
		return ErrSelfBlock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 || indexOfUser(users, blockedID) < 0 {
		return ErrUserNotFound
	}
	for _, id := range users[idx].Blocked {
		if id == blockedID {
			return nil
		}
	}
	users[idx].Blocked = append(users[idx].Blocked, blockedID)
	return s.write(users)
}

// Unblock lifts a block placed with Block.
func (s *UserStore) Unblock(userID, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 {
		return ErrUserNotFound
	}
	kept := removeID(users[idx].Blocked, blockedID)
	if len(kept) == len(users[idx].Blocked) {
		return ErrNotBlocked
	}
	users[idx].Blocked = kept
	return s.write(users)
}

// Blocked returns the users blocked by userID in the order they were blocked.
func (s *UserStore) Blocked(userID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	out := make([]models.User, 0, len(users[idx].Blocked))
	for _, id := range users[idx].Blocked {
		if j := indexOfUser(users, id); j >= 0 {
			out = append(out, users[j].User)
		}
	}
	return out, nil
}

func indexOfUser(users []storedUser, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func removeID(ids []string, id string) []string {
	var out []string
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *UserStore) load() ([]storedUser, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var users []storedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", usersFileName, err)
	}
	return users, nil
}

func (s *UserStore) write(users []storedUser) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
