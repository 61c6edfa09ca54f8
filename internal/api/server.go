package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"tailtrail/internal/files"
	"tailtrail/internal/models"
	"tailtrail/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ctxKey int

const userIDKey ctxKey = iota

// Config wires the backend to its stores.
type Config struct {
	Users          *files.UserStore
	Posts          *files.PostStore
	Logger         *utils.Logger
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

// Server is a development implementation of the TailTrail API.
type Server struct {
	users     *files.UserStore
	posts     *files.PostStore
	log       *utils.Logger
	tokenTTL  time.Duration
	maxUpload int64

	mu       sync.RWMutex
	now      func() time.Time
	sessions map[string]models.Session
}

// NewServer creates a Server. Zero TTL and upload limits get defaults.
func NewServer(cfg Config) *Server {
	s := &Server{
		users:     cfg.Users,
		posts:     cfg.Posts,
		log:       cfg.Logger,
		tokenTTL:  cfg.TokenTTL,
		maxUpload: cfg.MaxUploadBytes,
		now:       time.Now,
		sessions:  make(map[string]models.Session),
	}
	if s.log == nil {
		s.log = utils.Discard()
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	return s
}

func (s *Server) issueToken(userID string) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	sess := models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	s.sessions[sess.Token] = sess
	return sess
}

func (s *Server) revokeUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
}

// requireAuth rejects requests without a live bearer token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.mu.RLock()
		sess, ok := s.sessions[token]
		now := s.now()
		s.mu.RUnlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if now.After(sess.ExpiresAt) {
			s.mu.Lock()
			delete(s.sessions, token)
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired!"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, sess.UserID)))
	}
}

// optionalUserID returns the user behind a live bearer token, or "" for
// anonymous and expired requests.
func (s *Server) optionalUserID(r *http.Request) string {
	token := extractToken(r)
	if token == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.ExpiresAt) {
		return ""
	}
	return sess.UserID
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// extractToken extracts the token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
