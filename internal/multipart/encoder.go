package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	crlf            = "\r\n"
	contentTypeBase = "multipart/form-data; boundary="
)

// File is one file attachment of a multipart body.
type File struct {
	Name     string
	FileName string
	MIMEType string
	Payload  []byte
}

// EncodingError reports a part whose text cannot be written as UTF-8.
type EncodingError struct {
	Part  string // field name of the offending part
	Field string // which attribute failed: name, value, filename or content type
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("multipart: %s of part %q is not valid UTF-8", e.Field, e.Part)
}

// Encoder builds a multipart/form-data body from text fields and file
// attachments. Fields are written before files, each in insertion order.
//
// The boundary must not occur inside any value or payload. The default
// boundary is a random UUID, which makes a collision practically impossible;
// no escaping is performed.
//
// An Encoder is not safe for concurrent mutation. Use one per request.
type Encoder struct {
	boundary string
	names    []string
	values   map[string]string
	files    []File
}

// New returns an Encoder with a random UUID boundary.
func New() *Encoder {
	return NewWithBoundary(uuid.NewString())
}

// NewWithBoundary returns an Encoder that uses boundary verbatim.
func NewWithBoundary(boundary string) *Encoder {
	return &Encoder{
		boundary: boundary,
		values:   make(map[string]string),
	}
}

// Boundary returns the delimiter token.
func (e *Encoder) Boundary() string { return e.boundary }

// AddField sets the text value for name. A repeated name overwrites the
// previous value and keeps its original position.
func (e *Encoder) AddField(name, value string) {
	if _, ok := e.values[name]; !ok {
		e.names = append(e.names, name)
	}
	e.values[name] = value
}

// AddFile appends a file part. Several files may share a field name. The
// payload is copied, so the caller may reuse its buffer.
func (e *Encoder) AddFile(name, fileName, mimeType string, payload []byte) {
	e.files = append(e.files, File{
		Name:     name,
		FileName: fileName,
		MIMEType: mimeType,
		Payload:  bytes.Clone(payload),
	})
}

// AddFileDetect appends a file part whose content type is sniffed from the payload.
func (e *Encoder) AddFileDetect(name, fileName string, payload []byte) {
	e.AddFile(name, fileName, mimetype.Detect(payload).String(), payload)
}

// Len returns the number of parts the body will contain.
func (e *Encoder) Len() int { return len(e.names) + len(e.files) }

// Files returns a deep copy of the file parts in insertion order.
func (e *Encoder) Files() []File {
	out := make([]File, len(e.files))
	for i, f := range e.files {
		f.Payload = bytes.Clone(f.Payload)
		out[i] = f
	}
	return out
}

// ContentType returns the Content-Type header value matching the body.
func (e *Encoder) ContentType() string {
	return contentTypeBase + e.boundary
}

// Body serializes the current fields and files. It is a pure read of the
// encoder state; repeated calls return identical bytes.
func (e *Encoder) Body() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentLength returns the size of the serialized body.
func (e *Encoder) ContentLength() (int64, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	n := int64(len(e.closeDelimiter()))
	for _, name := range e.names {
		n += int64(len(e.fieldHeader(name)) + len(e.values[name]) + len(crlf))
	}
	for _, f := range e.files {
		n += int64(len(e.fileHeader(f)) + len(f.Payload) + len(crlf))
	}
	return n, nil
}

// WriteTo writes the body to w. Nothing is written if any part fails
// UTF-8 validation.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	for _, name := range e.names {
		cw.writeString(e.fieldHeader(name))
		cw.writeString(e.values[name])
		cw.writeString(crlf)
	}
	for _, f := range e.files {
		cw.writeString(e.fileHeader(f))
		cw.write(f.Payload)
		cw.writeString(crlf)
	}
	cw.writeString(e.closeDelimiter())
	return cw.n, cw.err
}

// Reader returns the body as an io.Reader.
func (e *Encoder) Reader() (io.Reader, error) {
	body, err := e.Body()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(body), nil
}

// NewRequest builds an HTTP request carrying the body and its Content-Type.
func (e *Encoder) NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	body, err := e.Body()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", e.ContentType())
	return req, nil
}

func (e *Encoder) fieldHeader(name string) string {
	return "--" + e.boundary + crlf +
		`Content-Disposition: form-data; name="` + name + `"` + crlf +
		crlf
}

func (e *Encoder) fileHeader(f File) string {
	return "--" + e.boundary + crlf +
		`Content-Disposition: form-data; name="` + f.Name + `"; filename="` + f.FileName + `"` + crlf +
		"Content-Type: " + f.MIMEType + crlf +
		crlf
}

func (e *Encoder) closeDelimiter() string {
	return "--" + e.boundary + "--" + crlf
}

func (e *Encoder) validate() error {
	for _, name := range e.names {
		if !utf8.ValidString(name) {
			return &EncodingError{Part: name, Field: "name"}
		}
		if !utf8.ValidString(e.values[name]) {
			return &EncodingError{Part: name, Field: "value"}
		}
	}
	for _, f := range e.files {
		switch {
		case !utf8.ValidString(f.Name):
			return &EncodingError{Part: f.Name, Field: "name"}
		case !utf8.ValidString(f.FileName):
			return &EncodingError{Part: f.Name, Field: "filename"}
		case !utf8.ValidString(f.MIMEType):
			return &EncodingError{Part: f.Name, Field: "content type"}
		}
	}
	return nil
}

// countingWriter stops writing after the first error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) write(p []byte) {
	if c.err != nil {
		return
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) writeString(s string) {
	if c.err != nil {
		return
	}
	n, err := io.WriteString(c.w, s)
	c.n += int64(n)
	c.err = err
}
