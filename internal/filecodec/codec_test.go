package filecodec

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := require.New(t)
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01}
	fsys := fstest.MapFS{"pics/a.png": {Data: payload}}

	desc, err := New(fsys).Encode(context.Background(), "pics/a.png")
	req.NoError(err)
	req.Equal("a.png", desc.Name)
	req.Equal(int64(10), desc.Size)
	req.Equal("image/png", desc.MimeType)
	req.True(strings.HasPrefix(desc.EncodedData, "data:image/png;base64,"))

	file, err := Decode(desc)
	req.NoError(err)
	req.Equal(File{Name: "a.png", Size: 10, MimeType: "image/png", Data: payload}, file)
}

func TestEncodeFileRoundTripTable(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{"empty", File{Name: "empty.txt", Size: 0, MimeType: "text/plain", Data: []byte{}}},
		{"no mime", File{Name: "blob", Size: 3, MimeType: "", Data: []byte{1, 2, 3}}},
		{"binary", File{Name: "x.bin", Size: 4, MimeType: "application/octet-stream", Data: []byte{0, 255, 10, 13}}},
		{"quoted comma parameter", File{Name: "notes.txt", Size: 2, MimeType: `text/plain; x="a,b"`, Data: []byte("hi")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(EncodeFile(tt.file))
			require.NoError(t, err)
			require.Equal(t, tt.file.Name, got.Name)
			require.Equal(t, tt.file.Size, got.Size)
			require.Equal(t, tt.file.MimeType, got.MimeType)
			require.True(t, bytes.Equal(tt.file.Data, got.Data))
		})
	}
}

func TestEncodeUnsupportedEnvironment(t *testing.T) {
	_, err := New(nil).Encode(context.Background(), "a.png")
	require.ErrorIs(t, err, ErrUnsupportedEnvironment)

	var c *Codec
	_, err = c.Encode(context.Background(), "a.png")
	require.ErrorIs(t, err, ErrUnsupportedEnvironment)
}

func TestEncodeMissingFile(t *testing.T) {
	_, err := New(fstest.MapFS{}).Encode(context.Background(), "nope.txt")
	require.ErrorIs(t, err, ErrRead)
}

func TestEncodeTooLarge(t *testing.T) {
	fsys := fstest.MapFS{"big.bin": {Data: make([]byte, 64)}}

	_, err := New(fsys, WithMaxSize(32)).Encode(context.Background(), "big.bin")
	require.ErrorIs(t, err, ErrRead)
}

func TestEncodeCancelled(t *testing.T) {
	fsys := fstest.MapFS{"a.txt": {Data: []byte("hello")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fsys).Encode(ctx, "a.txt")
	require.ErrorIs(t, err, ErrRead)
}

func TestEncodeReportsProgress(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"notes.txt": {Data: []byte("some notes")}}

	var sink bytes.Buffer
	var gotName string
	var gotSize int64
	codec := New(fsys, WithProgress(func(name string, size int64) io.Writer {
		gotName, gotSize = name, size
		return &sink
	}))

	desc, err := codec.Encode(context.Background(), "notes.txt")
	req.NoError(err)
	req.Equal("text/plain", desc.MimeType)
	req.Equal("notes.txt", gotName)
	req.Equal(int64(10), gotSize)
	req.Equal("some notes", sink.String())
}

func TestDecodeRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		desc FileDescriptor
	}{
		{"no prefix", FileDescriptor{Name: "a", Size: 1, EncodedData: "AQ=="}},
		{"not base64 uri", FileDescriptor{Name: "a", Size: 1, EncodedData: "data:text/plain,a"}},
		{"bad base64", FileDescriptor{Name: "a", Size: 1, EncodedData: "data:;base64,@@@"}},
		{"size mismatch", FileDescriptor{Name: "a", Size: 5, EncodedData: "data:;base64,AQ=="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.desc)
			require.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestDetectMimeType(t *testing.T) {
	require.Equal(t, "image/png", DetectMimeType("A.PNG", nil))
	require.Equal(t, "text/plain", DetectMimeType("readme.zzq", []byte("just text")))
}
