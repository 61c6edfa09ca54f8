package files

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailtrail/internal/models"
)

const (
	postsFileName      = "posts.json"
	complaintsFileName = "complaints.json"
	uploadsDir         = "uploads"
)

// ErrPostNotFound is returned by Get for an unknown id.
var ErrPostNotFound = errors.New("post not found")

// PostStore manages the storage and retrieval of posts and their images.
type PostStore struct {
	dir string
	mu  sync.RWMutex
}

// NewPostStore creates a PostStore rooted at dir.
func NewPostStore(dir string) (*PostStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, uploadsDir), 0700); err != nil {
		return nil, err
	}
	return &PostStore{dir: dir}, nil
}

// UploadsDir is the directory image files are written to.
func (s *PostStore) UploadsDir() string { return filepath.Join(s.dir, uploadsDir) }

// NewID returns a fresh post id.
func (s *PostStore) NewID() string { return uuid.NewString() }

// SaveImage stores one image for a post and returns its URL path under /uploads/.
func (s *PostStore) SaveImage(postID string, index int, fileName string, data []byte) (string, error) {
	name := fmt.Sprintf("%d_%s", index, filepath.Base(fileName))
	dir := filepath.Join(s.UploadsDir(), postID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
		return "", err
	}
	return path.Join("/uploads", postID, name), nil
}

// Save stores a post, setting its timestamps. An empty ID is generated.
func (s *PostStore) Save(p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load()
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Images == nil {
		p.Images = []string{}
	}
	posts = append(posts, *p)
	return s.write(posts)
}

// Get returns the post with id.
func (s *PostStore) Get(id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == id {
			return &posts[i], nil
		}
	}
	return nil, ErrPostNotFound
}

// List returns all posts, newest first.
func (s *PostStore) List() ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// DeleteByUser removes every post owned by userID. The posts are dropped
// even when removing their images fails; those failures are returned.
func (s *PostStore) DeleteByUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load()
	if err != nil {
		return err
	}
	var errs []error
	kept := posts[:0]
	for _, p := range posts {
		if p.UserID == userID {
			if err := os.RemoveAll(filepath.Join(s.UploadsDir(), p.ID)); err != nil {
				errs = append(errs, fmt.Errorf("remove images of post %s: %w", p.ID, err))
			}
			continue
		}
		kept = append(kept, p)
	}
	if err := s.write(kept); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// AddComplaint stores a report by reporterID against the post with postID.
func (s *PostStore) AddComplaint(postID, reporterID, text string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load()
	if err != nil {
		return nil, err
	}
	found := false
	for i := range posts {
		if posts[i].ID == postID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrPostNotFound
	}

	complaints, err := s.loadComplaints()
	if err != nil {
		return nil, err
	}
	c := models.Complaint{
		ID:         uuid.NewString(),
		PostID:     postID,
		ReporterID: reporterID,
		Complaint:  text,
		CreatedAt:  time.Now().UTC(),
	}
	complaints = append(complaints, c)
	data, err := json.MarshalIndent(complaints, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, complaintsFileName), data, 0600); err != nil {
		return nil, err
	}
	return &c, nil
}

// Complaints returns the reports filed against postID.
func (s *PostStore) Complaints(postID string) ([]models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadComplaints()
	if err != nil {
		return nil, err
	}
	var out []models.Complaint
	for _, c := range all {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *PostStore) loadComplaints() ([]models.Complaint, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, complaintsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var complaints []models.Complaint
	if err := json.Unmarshal(data, &complaints); err != nil {
		return nil, fmt.Errorf("decode %s: %w", complaintsFileName, err)
	}
	return complaints, nil
}

// Clear removes all posts, complaints and images.
func (s *PostStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.UploadsDir()); err != nil {
		return err
	}
	for _, name := range []string{postsFileName, complaintsFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return os.MkdirAll(s.UploadsDir(), 0700)
}

func (s *PostStore) load() ([]models.Post, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, postsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil // File doesn't exist, that's fine
	}
	if err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", postsFileName, err)
	}
	return posts, nil
}

func (s *PostStore) write(posts []models.Post) error {
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, postsFileName), data, 0600)
}
