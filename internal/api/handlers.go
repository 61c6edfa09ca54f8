package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tailtrail/internal/files"
	"tailtrail/internal/models"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Register(req)
	switch {
	case errors.Is(err, files.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Infof("signup %s", u.Email)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Authenticate(req.Email, req.Password)
	if errors.Is(err, files.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.log.Errorf("login: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	sess := s.issueToken(u.ID)
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: sess.Token, User: *u})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(userIDFrom(r))
	if errors.Is(err, files.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	id := userIDFrom(r)
	if err := s.users.Delete(id); err != nil {
		if errors.Is(err, files.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if err := s.posts.DeleteByUser(id); err != nil {
		s.log.Errorf("delete posts of %s: %v", id, err)
	}
	s.revokeUser(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	post, err := postFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	post.ID = s.posts.NewID()
	post.UserID = userIDFrom(r)

	for i, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		url, err := s.posts.SaveImage(post.ID, i, fh.Filename, data)
		if err != nil {
			s.log.Errorf("save image: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to save image")
			return
		}
		post.Images = append(post.Images, url)
	}

	if err := s.posts.Save(post); err != nil {
		s.log.Errorf("save post: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save post")
		return
	}
	s.log.Infof("post %s created with %d image(s)", post.ID, len(post.Images))
	writeJSON(w, http.StatusCreated, models.CreatePostResponse{Post: *post})
}

// handleListPosts serves the feed. Signed-in callers do not see posts by
// users they blocked.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load posts")
		return
	}
	if uid := s.optionalUserID(r); uid != "" {
		blocked, err := s.users.Blocked(uid)
		if err != nil && !errors.Is(err, files.ErrUserNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load blocked users")
			return
		}
		hidden := make(map[string]bool, len(blocked))
		for _, u := range blocked {
			hidden[u.ID] = true
		}
		visible := posts[:0]
		for _, p := range posts {
			if !hidden[p.UserID] {
				visible = append(visible, p)
			}
		}
		posts = visible
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleComplaint(w http.ResponseWriter, r *http.Request) {
	var req models.ComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Complaint) == "" {
		writeError(w, http.StatusBadRequest, "complaint is required")
		return
	}
	c, err := s.posts.AddComplaint(mux.Vars(r)["id"], userIDFrom(r), req.Complaint)
	if errors.Is(err, files.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Errorf("save complaint: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save complaint")
		return
	}
	s.log.Infof("post %s reported by %s", c.PostID, c.ReporterID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req models.BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BlockedID == "" {
		writeError(w, http.StatusBadRequest, "blocked_id is required")
		return
	}
	err := s.users.Block(userIDFrom(r), req.BlockedID)
	switch {
	case errors.Is(err, files.ErrSelfBlock):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, files.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to block user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"blocked_id": req.BlockedID})
}

func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.Blocked(userIDFrom(r))
	if errors.Is(err, files.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load blocked users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	err := s.users.Unblock(userIDFrom(r), mux.Vars(r)["id"])
	if errors.Is(err, files.ErrNotBlocked) || errors.Is(err, files.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unblock user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(mux.Vars(r)["id"])
	if errors.Is(err, files.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// postFromForm maps the text parts of a create-post form onto a Post.
func postFromForm(r *http.Request) (*models.Post, error) {
	v := func(k string) string { return strings.TrimSpace(r.FormValue(k)) }

	p := &models.Post{
		PetName:      v("pet_name"),
		Species:      v("pet_species"),
		Breed:        v("pet_breed"),
		Gender:       v("gender"),
		Color:        v("color"),
		LocationName: v("location_name"),
		Description:  v("description"),
		ContactPhone: v("contact_phone"),
		Status:       v("status"),
	}
	if p.Status == "" {
		p.Status = "lost"
	}
	if age := v("age"); age != "" {
		f, err := strconv.ParseFloat(age, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid age %q", age)
		}
		p.Age = f
	}
	lat, lon := v("latitude"), v("longitude")
	if lat != "" || lon != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lon, 64)
		if err1 != nil || err2 != nil {
			return nil, errors.New("latitude and longitude must both be numbers")
		}
		p.LastSeenLocation = &models.Coordinate{Latitude: la, Longitude: lo}
	}
	return p, nil
}
