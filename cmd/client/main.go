package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tailtrail/internal/auth"
	"tailtrail/internal/client"
	"tailtrail/internal/files"
	"tailtrail/internal/multipart"
	"tailtrail/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	cmd      string
	email    string
	password string
	path     string
	out      string
	id       string
	reason   string
	fields   kvFlag
	files    kvFlag
	images   listFlag
}

func main() {
	var o options
	configPath := flag.String("config", "", "Config file (default: TAILTRAIL_CONFIG or ./tailtrail.toml)")
	serverFlag := flag.String("server", "", "Override API base URL (e.g. https://api.example.com)")
	flag.StringVar(&o.cmd, "cmd", "whoami", "Command: login|register|logout|whoami|delete-account|post|list|report|block|blocked|unblock|upload|encode")
	flag.StringVar(&o.email, "email", "", "Account email (login/register)")
	flag.StringVar(&o.password, "password", "", "Account password (login/register, or TAILTRAIL_PASSWORD)")
	flag.StringVar(&o.path, "path", "/api/v1/posts/", "API path for upload")
	flag.StringVar(&o.out, "out", "-", "Output file for encode")
	flag.StringVar(&o.id, "id", "", "Post id (report) or user id (block/unblock)")
	flag.StringVar(&o.reason, "reason", "", "Complaint text for report")
	flag.Var(&o.fields, "field", "Form field name=value (repeatable)")
	flag.Var(&o.files, "file", "File part field=path (repeatable)")
	flag.Var(&o.images, "image", "Image path for post (repeatable)")
	flag.Parse()

	logger := utils.New(os.Stderr)
	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.API.BaseURL = *serverFlag
	}
	if o.password == "" {
		o.password = os.Getenv("TAILTRAIL_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.API.Timeout)*time.Second)
	defer cancel()

	if err := run(ctx, cfg, o, logger, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg utils.Config, o options, logger *utils.Logger, stdout io.Writer) error {
	// encode needs neither a server nor credentials
	if o.cmd == "encode" {
		return encode(o, stdout)
	}

	m, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	switch o.cmd {
	case "login":
		if o.email == "" || o.password == "" {
			return errors.New("-email and -password required")
		}
		if err := m.Login(ctx, o.email, o.password); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Logged in as", m.CurrentUser().Email)
	case "register":
		if o.email == "" || o.password == "" {
			return errors.New("-email and -password required")
		}
		if err := m.Register(ctx, o.email, o.password); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Registered and logged in as", m.CurrentUser().Email)
	case "logout":
		if err := m.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Logged out")
	case "whoami":
		u, err := m.FetchProfile(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, u)
	case "delete-account":
		if err := m.DeleteAccount(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Account deleted")
	case "post":
		images, err := loadImages(o.images)
		if err != nil {
			return err
		}
		p, err := m.Client().UploadPost(ctx, o.fields.Fields(), images)
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "list":
		posts, err := m.Client().ListPosts(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, posts)
	case "report":
		if o.id == "" || o.reason == "" {
			return errors.New("-id and -reason required")
		}
		if err := m.Client().ReportPost(ctx, o.id, o.reason); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Reported post", o.id)
	case "block", "unblock":
		if o.id == "" {
			return errors.New("-id required")
		}
		if o.cmd == "block" {
			err = m.Client().BlockUser(ctx, o.id)
		} else {
			err = m.Client().UnblockUser(ctx, o.id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%sed user %s\n", strings.ToUpper(o.cmd[:1])+o.cmd[1:], o.id)
	case "blocked":
		users, err := m.Client().BlockedUsers(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, users)
	case "upload":
		enc, err := buildEncoder(o)
		if err != nil {
			return err
		}
		var resp map[string]any
		if err := m.Client().Upload(ctx, o.path, enc, &resp); err != nil {
			return err
		}
		return printJSON(stdout, resp)
	default:
		return fmt.Errorf("unknown command %q", o.cmd)
	}
	return nil
}

func newManager(cfg utils.Config, logger *utils.Logger) (*auth.Manager, error) {
	keyFile := cfg.Keychain.MasterKeyFile
	if !filepath.IsAbs(keyFile) {
		keyFile = filepath.Join(cfg.Keychain.Dir, keyFile)
	}
	master, err := files.LoadOrCreateMasterKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	store, err := files.NewTokenStore(files.TokenStoreConfig{
		Dir:       cfg.Keychain.Dir,
		Service:   cfg.Keychain.Service,
		MasterKey: master,
	})
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.API.Timeout) * time.Second
	return auth.NewManager(cfg.API.BaseURL, store, logger, client.WithTimeout(timeout)), nil
}

// buildEncoder turns -field and -file flags into a multipart body. File
// parts get their content type sniffed from the file contents.
func buildEncoder(o options) (*multipart.Encoder, error) {
	enc := multipart.New()
	for _, kv := range o.fields {
		enc.AddField(kv.key, kv.value)
	}
	for _, kv := range o.files {
		data, err := os.ReadFile(kv.value)
		if err != nil {
			return nil, err
		}
		enc.AddFileDetect(kv.key, filepath.Base(kv.value), data)
	}
	return enc, nil
}

func encode(o options, stdout io.Writer) error {
	enc, err := buildEncoder(o)
	if err != nil {
		return err
	}
	w := stdout
	if o.out != "-" && o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		fmt.Fprintln(stdout, "Content-Type:", enc.ContentType())
	} else {
		fmt.Fprintf(os.Stderr, "Content-Type: %s\n", enc.ContentType())
	}
	_, err = enc.WriteTo(w)
	return err
}

func loadImages(paths []string) ([]client.Image, error) {
	images := make([]client.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		images = append(images, client.Image{Data: data})
	}
	return images, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

type kv struct{ key, value string }

// kvFlag collects repeated key=value flags in order.
type kvFlag []kv

func (f *kvFlag) String() string {
	parts := make([]string, len(*f))
	for i, p := range *f {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, ",")
}

func (f *kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	*f = append(*f, kv{key: k, value: v})
	return nil
}

// Fields returns the pairs as form fields in flag order.
func (f kvFlag) Fields() []client.Field {
	out := make([]client.Field, len(f))
	for i, p := range f {
		out[i] = client.Field{Name: p.key, Value: p.value}
	}
	return out
}

type listFlag []string

func (f *listFlag) String() string { return strings.Join(*f, ",") }

func (f *listFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}
