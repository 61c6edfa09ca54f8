package client

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"tailtrail/internal/models"
	"tailtrail/internal/multipart"
)

const postsPath = "/api/v1/posts/"

// Field is one text part of a post form.
type Field struct {
	Name  string
	Value string
}

// Image is a photo attached to a post. An empty MIMEType is sniffed from
// Data. An empty FileName becomes image{N} with the extension of the MIME type.
type Image struct {
	FileName string
	MIMEType string
	Data     []byte
}

// UploadPost creates a post from form fields and images. Fields keep their
// slice order; a repeated name keeps its first position with the last value.
// Images become "files" parts in slice order.
func (c *Client) UploadPost(ctx context.Context, fields []Field, images []Image) (*models.Post, error) {
	enc := multipart.New()
	for _, f := range fields {
		enc.AddField(f.Name, f.Value)
	}
	for i, img := range images {
		mimeType, fileName := imagePart(i, img)
		enc.AddFile("files", fileName, mimeType, img.Data)
	}

	var out models.CreatePostResponse
	if err := c.Upload(ctx, postsPath, enc, &out); err != nil {
		return nil, fmt.Errorf("upload post: %w", err)
	}
	return &out.Post, nil
}

// imagePart resolves the content type and file name of the i-th image.
func imagePart(i int, img Image) (mimeType, fileName string) {
	var mt *mimetype.MIME
	if img.MIMEType == "" {
		mt = mimetype.Detect(img.Data)
		mimeType = mt.String()
	} else {
		mimeType = img.MIMEType
		mt = mimetype.Lookup(img.MIMEType)
	}
	fileName = img.FileName
	if fileName == "" {
		ext := ""
		if mt != nil {
			ext = mt.Extension()
		}
		fileName = fmt.Sprintf("image%d%s", i, ext)
	}
	return mimeType, fileName
}

// ListPosts returns the feed.
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.GetJSON(ctx, postsPath, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ReportPost files a complaint about the post with id.
func (c *Client) ReportPost(ctx context.Context, id, reason string) error {
	req := models.ComplaintRequest{Complaint: reason}
	if err := c.PostJSON(ctx, postsPath+id+"/complaint", req, nil); err != nil {
		return fmt.Errorf("report post %s: %w", id, err)
	}
	return nil
}
