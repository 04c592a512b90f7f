package event

import (
	"bkalan/domain"
	"encoding/json"
)

type FrameType string

const (
	FrameMessage    FrameType = "message"
	FrameUserJoined FrameType = "user_joined"
	FrameUserLeft   FrameType = "user_left"
)

// Frame is one server-to-client message on the live channel.
// Type discriminates the payload, Message is only set for FrameMessage.
type Frame struct {
	Type      FrameType `json:"type"`
	User      string    `json:"user"`
	Message   string    `json:"message,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// OutboundFrame is what a client writes on the live channel. Author and
// timestamp are assigned by the server.
type OutboundFrame struct {
	Message string `json:"message"`
}

// Broadcast is a frame addressed to every live participant except the
// connection it originates from (empty Except reaches everyone).
type Broadcast struct {
	Frame  Frame  `json:"frame"`
	Except string `json:"except,omitempty"`
}

func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// ChatMessage translates a frame into its log entry.
// Unknown frame types report false and must be ignored.
func (f Frame) ChatMessage() (domain.ChatMessage, bool) {
	switch f.Type {
	case FrameMessage:
		return domain.NewUserMessage(f.User, f.Message, f.Timestamp), true
	case FrameUserJoined:
		return domain.JoinedMessage(f.User, f.Timestamp), true
	case FrameUserLeft:
		return domain.LeftMessage(f.User, f.Timestamp), true
	default:
		return domain.ChatMessage{}, false
	}
}

func MessageFrame(message domain.ChatMessage) Frame {
	return Frame{Type: FrameMessage, User: message.Author, Message: message.Body, Timestamp: message.Timestamp}
}

func JoinedFrame(user, timestamp string) Frame {
	return Frame{Type: FrameUserJoined, User: user, Timestamp: timestamp}
}

func LeftFrame(user, timestamp string) Frame {
	return Frame{Type: FrameUserLeft, User: user, Timestamp: timestamp}
}
