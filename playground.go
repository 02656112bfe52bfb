package playground

import (
	"context"
	"fmt"
	"sync"

	"github.com/bt-bridge/agent-playground/shared"
	"go.uber.org/zap"
)

type Option func(*Playground)

// WithAgentDispatch supplies the initial agent name and metadata.
func WithAgentDispatch(initial *AgentDispatch) Option {
	return func(p *Playground) {
		p.initial = initial
	}
}

func WithPalette(palette Palette) Option {
	return func(p *Playground) {
		p.palette = palette
	}
}

func WithSessionOptions(opts ...SessionOption) Option {
	return func(p *Playground) {
		p.sessionOpts = append(p.sessionOpts, opts...)
	}
}

// Playground is the session context every front end operation goes through:
// one session, its derived views and the user settings it was started with.
type Playground struct {
	logger      shared.LoggerAdapter
	session     *Session
	devices     *DeviceReconciler
	messages    *MessageChannel
	rpc         *RPCInvoker
	attributes  *AttributeInspector
	palette     Palette
	initial     *AgentDispatch
	sessionOpts []SessionOption

	ctx           context.Context
	cancel        context.CancelFunc
	stopObserving func()

	mu           sync.Mutex
	settings     shared.UserSettings
	hasConnected bool
	lastState    ConnectionState
}

func New(logger shared.LoggerAdapter, credentials CredentialSource, transport Transport, settings shared.UserSettings, opts ...Option) (*Playground, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	p := &Playground{
		logger:   logger,
		palette:  DefaultPalette,
		settings: settings,
	}
	for _, opt := range opts {
		opt(p)
	}
	session, err := NewSession(logger.With(zap.String("component", "session")), credentials, transport, p.sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	p.session = session
	p.session.InitFetchOptions(p.initial)
	p.devices = NewDeviceReconciler(logger)
	p.messages = NewMessageChannel(session)
	p.rpc = NewRPCInvoker(session)
	p.attributes = NewAttributeInspector(session)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.stopObserving = session.Observe(p.onUpdate)
	return p, nil
}

func (p *Playground) Session() *Session               { return p.session }
func (p *Playground) Messages() *MessageChannel       { return p.messages }
func (p *Playground) RPC() *RPCInvoker                { return p.rpc }
func (p *Playground) Attributes() *AttributeInspector { return p.attributes }

func (p *Playground) Close() {
	p.stopObserving()
	p.cancel()
	p.session.Close()
}

// onUpdate applies the device intents each time the session enters
// Connected, however it got there.
func (p *Playground) onUpdate(u Update) {
	p.mu.Lock()
	entered := u.State == StateConnected && p.lastState != StateConnected
	p.lastState = u.State
	p.mu.Unlock()
	if !entered {
		return
	}
	if err := p.reconcile(p.ctx); err != nil {
		p.logger.Warn("device settings not applied", zap.Error(err))
	}
}

// Start opens the session unless one is already connected, then applies the
// configured device intents. A device failure is returned but leaves the
// session connected.
func (p *Playground) Start(ctx context.Context) error {
	p.mu.Lock()
	p.hasConnected = true
	p.mu.Unlock()
	if err := p.session.Start(ctx); err != nil {
		return err
	}
	return p.reconcile(ctx)
}

func (p *Playground) End() {
	p.session.End()
}

// AutoConnect starts the session the first time it is called, unless a
// session was already started by hand.
func (p *Playground) AutoConnect(ctx context.Context) error {
	p.mu.Lock()
	if p.hasConnected {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.Start(ctx)
}

// Toggle is the connect button: start when idle, end when connected, and
// nothing while a transition is in progress.
func (p *Playground) Toggle(ctx context.Context) error {
	switch p.session.State() {
	case StateDisconnected, StateEnded:
		return p.Start(ctx)
	case StateConnected:
		p.End()
	}
	return nil
}

func (p *Playground) Settings() shared.UserSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// UpdateSettings replaces the settings and re-applies device intents if they
// changed while connected.
func (p *Playground) UpdateSettings(ctx context.Context, settings shared.UserSettings) error {
	p.mu.Lock()
	p.settings = settings
	p.mu.Unlock()
	return p.reconcile(ctx)
}

func (p *Playground) reconcile(ctx context.Context) error {
	if _, err := p.devices.Reconcile(ctx, p.deviceTarget); err != nil {
		return fmt.Errorf("applying device settings: %w", err)
	}
	return nil
}

func (p *Playground) deviceTarget() DeviceTarget {
	local, state, entry := p.session.deviceTarget()
	return DeviceTarget{
		Local:  local,
		State:  state,
		Entry:  entry,
		Inputs: p.Settings().Inputs,
	}
}

// SetMicrophoneEnabled is the manual mute control. It does not change the
// configured intent.
func (p *Playground) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	local, _, ok := p.session.LocalParticipant()
	if !ok {
		return shared.ErrNoActiveSession
	}
	return local.SetMicrophoneEnabled(ctx, enabled)
}

func (p *Playground) SetCameraEnabled(ctx context.Context, enabled bool) error {
	local, _, ok := p.session.LocalParticipant()
	if !ok {
		return shared.ErrNoActiveSession
	}
	return local.SetCameraEnabled(ctx, enabled)
}

// LocalMicrophoneTrack is the local microphone publication, if any.
func (p *Playground) LocalMicrophoneTrack() *TrackRef {
	local, _, ok := p.session.LocalParticipant()
	if !ok {
		return nil
	}
	return local.MicrophoneTrack()
}

func (p *Playground) ThemeColor() string {
	return ResolveThemeColor(p.palette, p.Settings().ThemeColor)
}
