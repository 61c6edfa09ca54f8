package main

import (
	"bytes"
	"context"
	stdmultipart "mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tailtrail/internal/api"
	"tailtrail/internal/client"
	"tailtrail/internal/files"
	"tailtrail/internal/utils"
)

func TestKVFlag(t *testing.T) {
	var f kvFlag
	require.NoError(t, f.Set("pet_name=Rex"))
	require.NoError(t, f.Set("note=a=b"))
	require.NoError(t, f.Set("pet_name=Rexy"))
	require.Error(t, f.Set("novalue"))
	require.Error(t, f.Set("=x"))

	require.Equal(t, "pet_name=Rex,note=a=b,pet_name=Rexy", f.String())
	require.Equal(t, []client.Field{
		{Name: "pet_name", Value: "Rex"},
		{Name: "note", Value: "a=b"},
		{Name: "pet_name", Value: "Rexy"},
	}, f.Fields())
}

func TestEncodeCommand(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "dog.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0600))

	o := options{cmd: "encode", out: filepath.Join(dir, "body.bin")}
	require.NoError(t, o.fields.Set("caption=Hello"))
	require.NoError(t, o.files.Set("photo="+photo))

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), utils.Config{}, o, utils.Discard(), &stdout))

	header := strings.TrimSpace(strings.TrimPrefix(stdout.String(), "Content-Type:"))
	boundary := strings.TrimPrefix(header, "multipart/form-data; boundary=")
	require.NotEqual(t, header, boundary)

	body, err := os.ReadFile(o.out)
	require.NoError(t, err)
	form, err := stdmultipart.NewReader(bytes.NewReader(body), boundary).ReadForm(1 << 20)
	require.NoError(t, err)
	defer form.RemoveAll()

	require.Equal(t, []string{"Hello"}, form.Value["caption"])
	require.Len(t, form.File["photo"], 1)
	require.Equal(t, "dog.png", form.File["photo"][0].Filename)
	require.Equal(t, "image/png", form.File["photo"][0].Header.Get("Content-Type"))
}

func TestRegisterPostAndList(t *testing.T) {
	t.Setenv(files.MasterKeyEnv, "")
	data := t.TempDir()
	users, err := files.NewUserStore(data)
	require.NoError(t, err)
	posts, err := files.NewPostStore(data)
	require.NoError(t, err)
	ts := httptest.NewServer(api.NewRouter(api.NewServer(api.Config{Users: users, Posts: posts})))
	defer ts.Close()

	var cfg utils.Config
	cfg.API.BaseURL = ts.URL
	cfg.API.Timeout = 5
	cfg.Keychain = utils.KeychainConfig{Dir: t.TempDir(), Service: "test", MasterKeyFile: "master.key"}

	ctx := context.Background()
	var out bytes.Buffer
	o := options{cmd: "register", email: "cli@example.com", password: "pw"}
	require.NoError(t, run(ctx, cfg, o, utils.Discard(), &out))
	require.Contains(t, out.String(), "cli@example.com")

	img := filepath.Join(t.TempDir(), "rex.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0600))
	o = options{cmd: "post", images: listFlag{img}}
	require.NoError(t, o.fields.Set("pet_name=Rex"))
	out.Reset()
	require.NoError(t, run(ctx, cfg, o, utils.Discard(), &out))
	require.Contains(t, out.String(), `"pet_name": "Rex"`)
	require.Contains(t, out.String(), "0_image0.jpg")

	out.Reset()
	require.NoError(t, run(ctx, cfg, options{cmd: "list"}, utils.Discard(), &out))
	require.Contains(t, out.String(), "Rex")

	var listed []struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)

	out.Reset()
	require.NoError(t, run(ctx, cfg, options{cmd: "report", id: listed[0].ID, reason: "duplicate"}, utils.Discard(), &out))
	require.Contains(t, out.String(), "Reported post")
	require.Error(t, run(ctx, cfg, options{cmd: "report", id: listed[0].ID}, utils.Discard(), &out))
	// the only other account is the caller, so blocking must fail
	require.Error(t, run(ctx, cfg, options{cmd: "block", id: listed[0].UserID}, utils.Discard(), &out))
	out.Reset()
	require.NoError(t, run(ctx, cfg, options{cmd: "blocked"}, utils.Discard(), &out))
	require.Equal(t, "[]", strings.TrimSpace(out.String()))

	require.NoError(t, run(ctx, cfg, options{cmd: "logout"}, utils.Discard(), &out))
	require.Error(t, run(ctx, cfg, options{cmd: "whoami"}, utils.Discard(), &out))
	require.Error(t, run(ctx, cfg, options{cmd: "bogus"}, utils.Discard(), &out))
}
