// Package filecodec turns a file into a self-describing, text-safe descriptor
// that can travel inside a single data channel message, and back.
//
// Files are buffered whole. There is no chunking, so descriptor size is bounded
// by the transport's practical message size; Codec enforces a configurable cap.
package filecodec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultMaxSize = 16 * 1024 * 1024

	dataURIPrefix = "data:"
	base64Marker  = ";base64"
)

var (
	ErrUnsupportedEnvironment = errors.New("file reading is not supported in this environment")
	ErrRead                   = errors.New("file read failed")
	ErrInvalidDescriptor      = errors.New("invalid file descriptor")
)

// FileDescriptor is the wire form of a file.
type FileDescriptor struct {
	Name        string `json:"name" validate:"required"`
	Size        int64  `json:"size" validate:"gte=0"`
	MimeType    string `json:"mimeType"`
	EncodedData string `json:"data" validate:"required,startswith=data:"`
}

// File is the decoded, in-memory form of a file.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Data     []byte
}

type Option func(*Codec)

// WithMaxSize caps the number of bytes Encode will buffer.
func WithMaxSize(n int64) Option {
	return func(c *Codec) {
		c.maxSize = n
	}
}

// WithProgress registers a sink that receives a copy of every byte read.
func WithProgress(fn func(name string, size int64) io.Writer) Option {
	return func(c *Codec) {
		c.progress = fn
	}
}

type Codec struct {
	fsys     fs.FS
	maxSize  int64
	progress func(name string, size int64) io.Writer
}

// New creates a codec reading from fsys. A nil fsys yields a codec whose
// Encode always fails with ErrUnsupportedEnvironment.
func New(fsys fs.FS, opts ...Option) *Codec {
	c := &Codec{
		fsys:    fsys,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode reads the named file fully and returns its descriptor. Cancelling ctx
// aborts the read.
func (c *Codec) Encode(ctx context.Context, name string) (FileDescriptor, error) {
	if c == nil || c.fsys == nil {
		return FileDescriptor{}, ErrUnsupportedEnvironment
	}

	f, err := c.fsys.Open(name)
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("%w: opening %s: %v", ErrRead, name, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("%w: stat %s: %v", ErrRead, name, err)
	}
	if info.IsDir() {
		return FileDescriptor{}, fmt.Errorf("%w: %s is a directory", ErrRead, name)
	}
	if c.maxSize > 0 && info.Size() > c.maxSize {
		return FileDescriptor{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrRead, name, info.Size(), c.maxSize)
	}

	var r io.Reader = &contextReader{ctx: ctx, r: f}
	if c.progress != nil {
		if w := c.progress(path.Base(name), info.Size()); w != nil {
			r = io.TeeReader(r, w)
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("%w: reading %s: %v", ErrRead, name, err)
	}
	if c.maxSize > 0 && int64(len(data)) > c.maxSize {
		return FileDescriptor{}, fmt.Errorf("%w: %s grew past %d bytes while reading", ErrRead, name, c.maxSize)
	}

	return EncodeFile(File{
		Name:     path.Base(name),
		Size:     int64(len(data)),
		MimeType: DetectMimeType(name, data),
		Data:     data,
	}), nil
}

// EncodeFile builds the descriptor for an in-memory file.
func EncodeFile(f File) FileDescriptor {
	return FileDescriptor{
		Name:        f.Name,
		Size:        f.Size,
		MimeType:    f.MimeType,
		EncodedData: dataURIPrefix + f.MimeType + base64Marker + "," + base64.StdEncoding.EncodeToString(f.Data),
	}
}

// Decode is the inverse of EncodeFile.
func Decode(d FileDescriptor) (File, error) {
	// Media type parameters may hold commas; base64 text never does.
	i := strings.LastIndex(d.EncodedData, base64Marker+",")
	if i < 0 || !strings.HasPrefix(d.EncodedData, dataURIPrefix) {
		return File{}, fmt.Errorf("%w: %s: not a base64 data URI", ErrInvalidDescriptor, d.Name)
	}
	payload := d.EncodedData[i+len(base64Marker)+1:]

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, d.Name, err)
	}
	if int64(len(data)) != d.Size {
		return File{}, fmt.Errorf("%w: %s: size %d does not match %d decoded bytes", ErrInvalidDescriptor, d.Name, d.Size, len(data))
	}

	return File{
		Name:     d.Name,
		Size:     d.Size,
		MimeType: d.MimeType,
		Data:     data,
	}, nil
}

// DetectMimeType resolves a media type from the extension, falling back to
// content sniffing. Parameters such as charset are dropped.
func DetectMimeType(name string, data []byte) string {
	if t := stripParams(mime.TypeByExtension(strings.ToLower(path.Ext(name)))); t != "" {
		return t
	}
	return stripParams(mimetype.Detect(data).String())
}

func stripParams(t string) string {
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
