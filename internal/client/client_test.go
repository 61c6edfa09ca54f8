package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tailtrail/internal/models"
	"tailtrail/internal/multipart"
	"tailtrail/internal/utils"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token() (string, error) { return s.token, s.err }

func TestBearerHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c"}`))
	}))
	defer srv.Close()

	var u models.User
	c := New(srv.URL+"/", staticToken{token: "abc"})
	require.NoError(t, c.GetJSON(context.Background(), "/api/v1/users/me", &u))
	require.Equal(t, "Bearer abc", got)
	require.Equal(t, "u1", u.ID)

	c = New(srv.URL, staticToken{})
	require.NoError(t, c.GetJSON(context.Background(), "/x", &u))
	require.Empty(t, got)

	c = New(srv.URL, staticToken{err: errors.New("keychain locked")})
	require.Error(t, c.GetJSON(context.Background(), "/x", &u))
}

func TestAPIErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"pet_name required"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom\n"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithLogger(utils.Discard()))

	err := c.PostJSON(context.Background(), "/json", map[string]string{"a": "b"}, nil)
	var apiErr *utils.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Code)
	require.Equal(t, "pet_name required", apiErr.Message)

	err = c.Delete(context.Background(), "/text")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "boom", apiErr.Message)
}

func TestTokenExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired!"}`))
	}))
	defer srv.Close()

	expired := 0
	c := New(srv.URL, staticToken{token: "old"}, WithExpiredHandler(func() { expired++ }))
	err := c.GetJSON(context.Background(), "/api/v1/posts/", nil)
	require.ErrorIs(t, err, ErrTokenExpired)
	var apiErr *utils.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Code)
	require.Equal(t, 1, expired)
}

func TestUploadPost(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, postsPath, r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		// fields stay in the order the caller gave them
		require.Less(t, bytes.Index(raw, []byte(`name="pet_species"`)), bytes.Index(raw, []byte(`name="pet_name"`)))

		r.Body = io.NopCloser(bytes.NewReader(raw))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Rex", r.FormValue("pet_name"))
		require.Equal(t, "dog", r.FormValue("pet_species"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 3)
		require.Equal(t, "image0.jpg", files[0].Filename)
		require.Equal(t, "image/jpeg", files[0].Header.Get("Content-Type"))
		require.Equal(t, "collar.png", files[1].Filename)
		require.Equal(t, "image/png", files[1].Header.Get("Content-Type"))
		require.Equal(t, "image2.png", files[2].Filename)
		require.Equal(t, "image/png", files[2].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"post":{"id":"p1","pet_name":"Rex","images":["/uploads/p1/0_image0.jpg"],"status":"lost"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken{token: "t"})
	post, err := c.UploadPost(context.Background(),
		[]Field{{"pet_species", "dog"}, {"pet_name", "Rex"}},
		[]Image{
			{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}},
			{FileName: "collar.png", Data: png},
			{Data: png},
		})
	require.NoError(t, err)
	require.Equal(t, "p1", post.ID)
	require.Equal(t, []string{"/uploads/p1/0_image0.jpg"}, post.Images)
}

func TestTimeoutOptions(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	c := New("http://example.test", nil, WithHTTPClient(shared), WithTimeout(time.Second))
	require.Same(t, shared, c.http)
	require.Equal(t, time.Minute, shared.Timeout)

	c = New("http://example.test", nil, WithTimeout(time.Second))
	require.Equal(t, time.Second, c.http.Timeout)

	c = New("http://example.test", nil, WithHTTPClient(nil))
	require.NotNil(t, c.http)
	require.Equal(t, 30*time.Second, c.http.Timeout)
}

func TestReportAndBlock(t *testing.T) {
	type call struct{ method, path, body string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(body)})
		require.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"u2","email":"b@example.com"}]`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL, staticToken{token: "t"})
	require.NoError(t, c.ReportPost(ctx, "p1", "not my pet"))
	require.NoError(t, c.BlockUser(ctx, "u2"))
	users, err := c.BlockedUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "b@example.com", users[0].Email)
	require.NoError(t, c.UnblockUser(ctx, "u2"))

	require.Equal(t, []call{
		{http.MethodPost, "/api/v1/posts/p1/complaint", `{"complaint":"not my pet"}`},
		{http.MethodPost, "/api/v1/users/block/", `{"blocked_id":"u2"}`},
		{http.MethodGet, "/api/v1/users/block/", ""},
		{http.MethodDelete, "/api/v1/users/block/u2", ""},
	}, calls)
}

func TestBlockUserError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"user not found"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).BlockUser(context.Background(), "ghost")
	var apiErr *utils.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestUploadRejectsInvalidUTF8(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	enc := multipart.New()
	enc.AddField("caption", "\xff")
	err := New(srv.URL, nil).Upload(context.Background(), "/upload", enc, nil)

	var encErr *multipart.EncodingError
	require.ErrorAs(t, err, &encErr)
	require.Zero(t, calls)
}
