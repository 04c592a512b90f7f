package event

import (
	"bkalan/domain"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_ChatMessage(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  domain.ChatMessage
		known bool
	}{
		{
			name:  "message",
			raw:   `{"type":"message","user":"Omar","message":"salut","timestamp":"2026-10-18T09:00:00Z"}`,
			want:  domain.NewUserMessage("Omar", "salut", "2026-10-18T09:00:00Z"),
			known: true,
		},
		{
			name:  "user joined",
			raw:   `{"type":"user_joined","user":"Omar","timestamp":"2026-10-18T09:00:00Z"}`,
			want:  domain.JoinedMessage("Omar", "2026-10-18T09:00:00Z"),
			known: true,
		},
		{
			name:  "user left",
			raw:   `{"type":"user_left","user":"Omar","timestamp":"2026-10-18T09:00:00Z"}`,
			want:  domain.LeftMessage("Omar", "2026-10-18T09:00:00Z"),
			known: true,
		},
		{
			name: "unknown type",
			raw:  `{"type":"ping","user":"server"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			frame, err := DecodeFrame([]byte(tt.raw))
			req.NoError(err)

			message, ok := frame.ChatMessage()

			req.Equal(tt.known, ok)
			req.Equal(tt.want, message)
		})
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	_, err := DecodeFrame([]byte("not json"))
	require.Error(t, err)
}

func TestMessageFrame_Wire_Format(t *testing.T) {
	req := require.New(t)
	frame := MessageFrame(domain.NewUserMessage("Amina", "hello", "2026-10-18T09:00:00Z"))

	bytes, err := json.Marshal(frame)

	req.NoError(err)
	req.JSONEq(`{"type":"message","user":"Amina","message":"hello","timestamp":"2026-10-18T09:00:00Z"}`, string(bytes))

	bytes, err = json.Marshal(JoinedFrame("Amina", "2026-10-18T09:00:00Z"))
	req.NoError(err)
	req.JSONEq(`{"type":"user_joined","user":"Amina","timestamp":"2026-10-18T09:00:00Z"}`, string(bytes))
}
