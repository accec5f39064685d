package room

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudransh-shrivastava/peer-room/internal/filecodec"
)

func TestEncodeMessage(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeMessage(TextMessage{Payload: "hi"})
	req.NoError(err)
	req.JSONEq(`{"type":"text","payload":"hi"}`, string(raw))

	desc := filecodec.EncodeFile(filecodec.File{Name: "a.txt", Size: 2, MimeType: "text/plain", Data: []byte("ok")})
	raw, err = EncodeMessage(FileMessage{Payload: desc})
	req.NoError(err)
	req.JSONEq(`{"type":"file","payload":{"name":"a.txt","size":2,"mimeType":"text/plain","data":"data:text/plain;base64,b2s="}}`, string(raw))

	msg, err := DecodeMessage(raw)
	req.NoError(err)
	req.Equal(FileMessage{Payload: desc}, msg)
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Message
		wantErr bool
	}{
		{name: "text", raw: `{"type":"text","payload":"hi"}`, want: TextMessage{Payload: "hi"}},
		{name: "empty text", raw: `{"type":"text","payload":""}`, want: TextMessage{}},
		{name: "not json", raw: `hi`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "missing type", raw: `{"payload":"hi"}`, wantErr: true},
		{name: "unknown type", raw: `{"type":"video","payload":"hi"}`, wantErr: true},
		{name: "missing payload", raw: `{"type":"text"}`, wantErr: true},
		{name: "null text payload", raw: `{"type":"text","payload":null}`, wantErr: true},
		{name: "null file payload", raw: `{"type":"file","payload": null }`, wantErr: true},
		{name: "text with object payload", raw: `{"type":"text","payload":{"a":1}}`, wantErr: true},
		{name: "file with string payload", raw: `{"type":"file","payload":"a.png"}`, wantErr: true},
		{name: "file without data", raw: `{"type":"file","payload":{"name":"a.png","size":1}}`, wantErr: true},
		{name: "file with negative size", raw: `{"type":"file","payload":{"name":"a","size":-1,"data":"data:;base64,"}}`, wantErr: true},
		{name: "file with unknown field", raw: `{"type":"file","payload":{"name":"a","size":0,"data":"data:;base64,","extra":true}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedMessage)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
