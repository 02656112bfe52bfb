package playground

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bt-bridge/agent-playground/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateEnded
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Label is the capitalised form shown in the status row.
func (s ConnectionState) Label() string {
	str := s.String()
	return strings.ToUpper(str[:1]) + str[1:]
}

// Active reports whether a connection attempt or connection is underway.
func (s ConnectionState) Active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}

// Update is delivered to observers after every applied state change or
// event, in the order they were applied.
type Update struct {
	Epoch uint64
	State ConnectionState
	Agent AgentView
	Err   error
	// Event is the transport event behind the update; empty for
	// transitions caused by Start or End.
	Event   EventType
	Message *ChatMessage
}

type SessionOption func(*Session)

func WithAgentMatcher(match AgentMatcher) SessionOption {
	return func(s *Session) {
		s.tracker = NewPresenceTracker(match)
	}
}

type observer struct {
	id int
	fn func(Update)
}

// Session owns the connection lifecycle against the realtime channel. It is
// the only writer of connection state; every derived view is recomputed from
// it under mu.
type Session struct {
	logger      shared.LoggerAdapter
	credentials CredentialSource
	transport   Transport

	mu       sync.Mutex
	state    ConnectionState
	err      error
	epoch    uint64
	cancel   context.CancelCauseFunc
	room     Room
	options  *TokenFetchOptions
	tracker  *PresenceTracker
	messages []ChatMessage
	closed   bool
	// entries counts transitions into StateConnected.
	entries uint64

	obsMu     sync.Mutex
	observers []observer
	nextObsID int
	updates   *updateQueue
	done      chan struct{}
}

func NewSession(logger shared.LoggerAdapter, credentials CredentialSource, transport Transport, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if credentials == nil {
		return nil, shared.ErrNoCredentialSource
	}
	if transport == nil {
		return nil, shared.ErrNoTransport
	}
	s := &Session{
		logger:      logger,
		credentials: credentials,
		transport:   transport,
		tracker:     NewPresenceTracker(nil),
		updates:     newUpdateQueue(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s, nil
}

// Close ends the session and stops update delivery. It must not be called
// from an observer.
func (s *Session) Close() {
	s.End()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.updates.close()
	<-s.done
}

// Observe registers fn for every future Update. The returned func removes it.
func (s *Session) Observe(fn func(Update)) (cancel func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		s.observers = slices.DeleteFunc(s.observers, func(o observer) bool { return o.id == id })
	}
}

func (s *Session) dispatch() {
	defer close(s.done)
	for {
		u, ok := s.updates.pop()
		if !ok {
			return
		}
		s.obsMu.Lock()
		observers := slices.Clone(s.observers)
		s.obsMu.Unlock()
		for _, o := range observers {
			o.fn(u)
		}
	}
}

// Start connects using a snapshot of the current token fetch options. It is
// a no-op while a connection is underway or established, so concurrent
// calls collapse into one attempt. On failure the session ends with the
// error attached and the same error is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionEnded
	}
	if s.state.Active() {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("start ignored", zap.Stringer("state", state))
		return nil
	}
	s.epoch++
	epoch := s.epoch
	var opts TokenFetchOptions
	if s.options != nil {
		opts = *s.options
	}
	attemptCtx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	s.err = nil
	s.messages = nil
	s.tracker.Reset()
	s.setStateLocked(StateConnecting, "")
	s.mu.Unlock()

	attemptCtx, span := tracer.Start(attemptCtx, "session start")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("session.epoch", int64(epoch)),
		attribute.String("session.agent_name", opts.AgentName),
	)
	logger := s.logger.With(zap.Uint64("epoch", epoch))
	logger.Info("starting session", zap.String("agent_name", opts.AgentName))

	room, err := s.connect(attemptCtx, epoch, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(epoch, err)
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state != StateConnecting {
		s.mu.Unlock()
		logger.Info("discarding connection of an ended attempt")
		room.Disconnect()
		return shared.ErrSessionEnded
	}
	s.room = room
	s.cancel = nil
	s.tracker.Seed(room.RemoteParticipants())
	s.setStateLocked(StateConnected, "")
	s.mu.Unlock()
	cancel(nil)

	logger.Info("session connected", zap.String("room", room.Name()))
	return nil
}

func (s *Session) connect(ctx context.Context, epoch uint64, opts TokenFetchOptions) (Room, error) {
	cred, err := s.credentials.Fetch(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching credential: %w", err)
	}
	if cred.ServerURL == "" || cred.ParticipantToken == "" {
		return nil, shared.ErrNoCredential
	}
	room, err := s.transport.Connect(ctx, cred, func(ev Event) { s.handle(epoch, ev) })
	if err != nil {
		return nil, fmt.Errorf("joining channel: %w", err)
	}
	return room, nil
}

// fail ends the attempt identified by epoch. An attempt that was already
// superseded by End reports ErrSessionEnded instead of its own error.
func (s *Session) fail(epoch uint64, err error) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return errors.Join(shared.ErrSessionEnded, err)
	}
	cancel := s.cancel
	s.cancel = nil
	s.err = err
	s.tracker.Reset()
	s.setStateLocked(StateEnded, "")
	s.mu.Unlock()
	if cancel != nil {
		cancel(err)
	}
	s.logger.Error("session start failed", err, zap.Uint64("epoch", epoch))
	return err
}

// End tears down the current attempt or connection and leaves the session
// Disconnected. Calling it when nothing is active does nothing.
func (s *Session) End() {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return
	}
	s.epoch++
	cancel := s.cancel
	s.cancel = nil
	room := s.room
	s.room = nil
	s.tracker.Reset()
	s.setStateLocked(StateDisconnected, "")
	s.mu.Unlock()

	if cancel != nil {
		cancel(shared.ErrSessionEnded)
	}
	if room != nil {
		room.Disconnect()
	}
	s.logger.Info("session ended")
}

// handle applies a transport event from the attempt identified by epoch.
// A remote disconnect releases the room outside the lock.
func (s *Session) handle(epoch uint64, ev Event) {
	s.mu.Lock()
	room := s.applyLocked(epoch, ev)
	s.mu.Unlock()
	if room != nil {
		room.Disconnect()
		s.logger.Info("room released after remote disconnect", zap.String("reason", ev.Reason))
	}
}

// applyLocked returns the room to release, if the event ended the
// connection.
func (s *Session) applyLocked(epoch uint64, ev Event) Room {
	if epoch != s.epoch || !s.state.Active() {
		s.logger.Trace("dropping stale event", ev.logFields()...)
		return nil
	}
	s.logger.Trace("applying event", ev.logFields()...)
	switch ev.Type {
	case EventReconnecting:
		if s.state == StateConnected {
			s.setStateLocked(StateReconnecting, ev.Type)
		}
	case EventReconnected:
		if s.state == StateReconnecting {
			s.setStateLocked(StateConnected, ev.Type)
		}
	case EventDisconnected:
		room := s.room
		s.epoch++
		s.room = nil
		if s.cancel != nil {
			s.cancel(shared.ErrRemoteDisconnected)
			s.cancel = nil
		}
		s.err = fmt.Errorf("%w: %s", shared.ErrRemoteDisconnected, ev.Reason)
		s.tracker.Reset()
		s.setStateLocked(StateEnded, ev.Type)
		return room
	case EventMessageReceived:
		msg := ev.Message
		s.messages = append(s.messages, msg)
		s.pushLocked(ev.Type, &msg)
	default:
		if s.tracker.Apply(ev) {
			s.pushLocked(ev.Type, nil)
		}
	}
	return nil
}

func (s *Session) setStateLocked(state ConnectionState, cause EventType) {
	prev := s.state
	s.state = state
	if state == StateConnected && prev != StateConnected {
		s.entries++
	}
	s.logger.Trace(
		"connection state changed",
		zap.Stringer("prev", prev),
		zap.Stringer("new", state),
	)
	s.pushLocked(cause, nil)
}

func (s *Session) pushLocked(cause EventType, msg *ChatMessage) {
	s.updates.push(Update{
		Epoch:   s.epoch,
		State:   s.state,
		Agent:   s.agentLocked(),
		Err:     s.err,
		Event:   cause,
		Message: msg,
	})
}

func (s *Session) agentLocked() AgentView {
	if s.state != StateConnected && s.state != StateReconnecting {
		return AgentView{}
	}
	return s.tracker.View()
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the error that ended the last attempt, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Epoch identifies the current connection attempt.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Session) Agent() AgentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentLocked()
}

// RoomName is empty unless the session is connected.
func (s *Session) RoomName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.room == nil {
		return ""
	}
	return s.room.Name()
}

// LocalParticipant returns the local participant of the established
// connection together with its epoch.
func (s *Session) LocalParticipant() (LocalParticipant, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || (s.state != StateConnected && s.state != StateReconnecting) {
		return nil, s.epoch, false
	}
	return s.room.LocalParticipant(), s.epoch, true
}

// deviceTarget reads the local participant, the state and the connected
// entry count together.
func (s *Session) deviceTarget() (LocalParticipant, ConnectionState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil, s.state, s.entries
	}
	return s.room.LocalParticipant(), s.state, s.entries
}

func (s *Session) agentAttributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil
	}
	agent, ok := s.tracker.Agent()
	if !ok {
		return nil
	}
	return maps.Clone(agent.Attributes)
}

// rpcTarget resolves the agent identity and the local participant in one
// step so they belong to the same connection.
func (s *Session) rpcTarget() (LocalParticipant, AgentView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.agentLocked()
	if s.room == nil {
		return nil, view
	}
	return s.room.LocalParticipant(), view
}
