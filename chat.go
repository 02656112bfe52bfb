package playground

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// ChatTopic is the data topic chat messages travel on.
const ChatTopic = "lk-chat-topic"

type ChatMessage struct {
	ID        string
	Timestamp time.Time
	// From is the sender identity; for local messages the local identity.
	From    string
	Local   bool
	Message string
}

type chatWire struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

func EncodeChatMessage(msg ChatMessage) ([]byte, error) {
	data, err := sonic.Marshal(chatWire{
		ID:        msg.ID,
		Timestamp: msg.Timestamp.UnixMilli(),
		Message:   msg.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat message: %w", err)
	}
	return data, nil
}

// DecodeChatMessage parses a chat payload received from sender.
func DecodeChatMessage(data []byte, sender string) (ChatMessage, error) {
	var w chatWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return ChatMessage{}, fmt.Errorf("unmarshaling chat message: %w", err)
	}
	msg := ChatMessage{
		ID:      w.ID,
		From:    sender,
		Message: w.Message,
	}
	if w.Timestamp > 0 {
		msg.Timestamp = time.UnixMilli(w.Timestamp)
	}
	return msg, nil
}
