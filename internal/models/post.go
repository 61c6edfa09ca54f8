package models

import "time"

// Post is a lost or found pet report.
type Post struct {
	ID               string      `json:"id"`
	PetName          string      `json:"pet_name,omitempty"`
	Species          string      `json:"pet_species,omitempty"`
	Breed            string      `json:"pet_breed,omitempty"`
	Age              float64     `json:"age,omitempty"`
	Gender           string      `json:"gender,omitempty"`
	Color            string      `json:"color,omitempty"`
	Images           []string    `json:"images"`
	LocationName     string      `json:"location_name,omitempty"`
	LastSeenLocation *Coordinate `json:"last_seen_location,omitempty"`
	Description      string      `json:"description,omitempty"`
	ContactPhone     string      `json:"contact_phone,omitempty"`
	UserID           string      `json:"user_id"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	LikesCount       int         `json:"likes_count"`
	IsLiked          bool        `json:"is_liked"`
	Status           string      `json:"status"`
}

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CreatePostResponse wraps the post returned by POST /api/v1/posts/.
type CreatePostResponse struct {
	Post Post `json:"post"`
}

// ComplaintRequest is the body of POST /api/v1/posts/{id}/complaint.
type ComplaintRequest struct {
	Complaint string `json:"complaint"`
}

// Complaint is a stored report against a post.
type Complaint struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	ReporterID string    `json:"reporter_id"`
	Complaint  string    `json:"complaint"`
	CreatedAt  time.Time `json:"created_at"`
}
