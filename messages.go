package playground

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bt-bridge/agent-playground/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageChannel is the chat log of the current connection plus a send
// operation. Messages keep arrival order; nothing is reordered or dropped.
type MessageChannel struct {
	session *Session
	logger  shared.LoggerAdapter
	now     func() time.Time
}

func NewMessageChannel(session *Session) *MessageChannel {
	return &MessageChannel{
		session: session,
		logger:  session.logger.With(zap.String("component", "chat")),
		now:     time.Now,
	}
}

func (m *MessageChannel) Messages() []ChatMessage {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()
	return slices.Clone(m.session.messages)
}

// Send publishes text to the room and appends it to the log once the
// transport accepted it.
func (m *MessageChannel) Send(ctx context.Context, text string) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, shared.ErrEmptyMessage
	}
	local, epoch, ok := m.session.LocalParticipant()
	if !ok {
		return ChatMessage{}, shared.ErrNoActiveSession
	}
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Timestamp: m.now(),
		From:      local.Identity(),
		Local:     true,
		Message:   text,
	}
	if err := local.SendChat(ctx, msg); err != nil {
		m.logger.Error("sending chat message", err)
		return ChatMessage{}, fmt.Errorf("sending chat message: %w", err)
	}
	m.session.appendLocalMessage(epoch, msg)
	return msg, nil
}

func (s *Session) appendLocalMessage(epoch uint64, msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.messages = append(s.messages, msg)
	s.pushLocked(EventMessageReceived, &msg)
}
