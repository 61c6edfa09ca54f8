package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter registers the API routes of s.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/signup", s.handleSignup).Methods("POST")
	v1.HandleFunc("/login", s.handleLogin).Methods("POST")
	v1.HandleFunc("/users/me", s.requireAuth(s.handleMe)).Methods("GET")
	v1.HandleFunc("/users/me", s.requireAuth(s.handleDeleteMe)).Methods("DELETE")
	for _, p := range []string{"/users/block", "/users/block/"} {
		v1.HandleFunc(p, s.requireAuth(s.handleBlock)).Methods("POST")
		v1.HandleFunc(p, s.requireAuth(s.handleListBlocked)).Methods("GET")
	}
	v1.HandleFunc("/users/block/{id}", s.requireAuth(s.handleUnblock)).Methods("DELETE")
	for _, p := range []string{"/posts", "/posts/"} {
		v1.HandleFunc(p, s.requireAuth(s.handleCreatePost)).Methods("POST")
		v1.HandleFunc(p, s.handleListPosts).Methods("GET")
	}
	v1.HandleFunc("/posts/{id}", s.handleGetPost).Methods("GET")
	v1.HandleFunc("/posts/{id}/complaint", s.requireAuth(s.handleComplaint)).Methods("POST")

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.posts.UploadsDir()))),
	).Methods("GET")
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
