// Package domain contains core concepts of the chat system.
// This file defines ChatMessage values and related rules.
// Messages are immutable once created.
package domain

import (
	"fmt"
	"time"
)

// SystemAuthor is the author displayed on synthetic notifications.
const SystemAuthor = "Système"

type Kind int

const (
	KindUser Kind = iota
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "SYSTEM"
	default:
		return "USER"
	}
}

// ChatMessage is one line of the conversation.
// Timestamp is kept as the ISO-8601 string the producer emitted, the client
// never reorders on it.
type ChatMessage struct {
	Author    string `json:"user"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
	Kind      Kind   `json:"-"`
}

func NewUserMessage(author, body, timestamp string) ChatMessage {
	return ChatMessage{Author: author, Body: body, Timestamp: timestamp, Kind: KindUser}
}

func NewSystemMessage(body, timestamp string) ChatMessage {
	return ChatMessage{Author: SystemAuthor, Body: body, Timestamp: timestamp, Kind: KindSystem}
}

// JoinedMessage announces a participant arrival.
func JoinedMessage(user, timestamp string) ChatMessage {
	return NewSystemMessage(fmt.Sprintf("%s a rejoint le chat", user), timestamp)
}

// LeftMessage announces a participant departure.
func LeftMessage(user, timestamp string) ChatMessage {
	return NewSystemMessage(fmt.Sprintf("%s a quitté le chat", user), timestamp)
}

// Timestamp formats t the way the chat wire format expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
