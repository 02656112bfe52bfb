package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	playground "github.com/bt-bridge/agent-playground"
	"github.com/bt-bridge/agent-playground/shared"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// Compile-time interface checks.
var (
	_ playground.Transport        = (*Transport)(nil)
	_ playground.Room             = (*room)(nil)
	_ playground.LocalParticipant = (*localParticipant)(nil)
)

// AudioSource feeds encoded Opus samples into a published track until ctx
// is done. Open acquires the device so failures surface before publishing.
type AudioSource interface {
	Open() error
	Stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error
}

type TransportOption func(*Transport)

// WithMicrophone sets the source published when the microphone is enabled.
// Without one, enabling the microphone fails with ErrDeviceUnavailable.
func WithMicrophone(source AudioSource) TransportOption {
	return func(t *Transport) {
		t.microphone = source
	}
}

// Transport joins LiveKit rooms.
type Transport struct {
	logger     shared.LoggerAdapter
	microphone AudioSource
}

func NewTransport(logger shared.LoggerAdapter, opts ...TransportOption) (*Transport, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	t := &Transport{logger: logger.With(zap.String("component", "livekit"))}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Transport) Connect(ctx context.Context, cred playground.Credential, sink playground.EventSink) (playground.Room, error) {
	r := &room{logger: t.logger}
	cb := t.callbacks(r, sink)

	type result struct {
		room *lksdk.Room
		err  error
	}
	resC := make(chan result, 1)
	go func() {
		lkRoom, err := lksdk.ConnectToRoomWithToken(
			cred.ServerURL,
			cred.ParticipantToken,
			cb,
			lksdk.WithAutoSubscribe(false),
		)
		resC <- result{room: lkRoom, err: err}
	}()

	select {
	case <-ctx.Done():
		// The SDK call cannot be interrupted; drop the room once it lands.
		go func() {
			if res := <-resC; res.room != nil {
				r.closing.Store(true)
				res.room.Disconnect()
			}
		}()
		return nil, context.Cause(ctx)
	case res := <-resC:
		if res.err != nil {
			return nil, fmt.Errorf("connecting to room: %w", res.err)
		}
		r.room = res.room
		r.local = &localParticipant{
			logger:     t.logger,
			lp:         res.room.LocalParticipant,
			microphone: t.microphone,
		}
		t.logger.Info("joined room",
			zap.String("room", res.room.Name()),
			zap.String("identity", res.room.LocalParticipant.Identity()),
		)
		return r, nil
	}
}

func (t *Transport) callbacks(r *room, sink playground.EventSink) *lksdk.RoomCallback {
	cb := lksdk.NewRoomCallback()
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		sink(playground.ParticipantJoined(toParticipant(rp)))
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		sink(playground.ParticipantLeft(toParticipant(rp)))
	}
	cb.OnReconnecting = func() {
		sink(playground.Event{Type: playground.EventReconnecting})
	}
	cb.OnReconnected = func() {
		sink(playground.Event{Type: playground.EventReconnected})
	}
	cb.OnDisconnected = func() {
		if r.closing.Load() {
			return
		}
		r.remoteClosed.Store(true)
		sink(playground.Disconnected("room disconnected by server"))
	}
	cb.OnTrackPublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		sink(playground.TrackPublished(toParticipant(rp), toTrack(pub)))
	}
	cb.OnTrackUnpublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		sink(playground.TrackUnpublished(toParticipant(rp), toTrack(pub)))
	}
	cb.OnAttributesChanged = func(changed map[string]string, p lksdk.Participant) {
		rp, ok := p.(*lksdk.RemoteParticipant)
		if !ok {
			return
		}
		sink(playground.AttributesChanged(toParticipant(rp)))
	}
	cb.OnDataPacket = func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
		user, ok := data.(*lksdk.UserDataPacket)
		if !ok || user.Topic != playground.ChatTopic {
			return
		}
		msg, err := playground.DecodeChatMessage(user.Payload, params.SenderIdentity)
		if err != nil {
			t.logger.Warn("dropping malformed chat message",
				zap.String("sender", params.SenderIdentity),
				zap.Error(err),
			)
			return
		}
		sink(playground.MessageReceived(msg))
	}
	return cb
}

type room struct {
	logger  shared.LoggerAdapter
	room    *lksdk.Room
	local   *localParticipant
	closing atomic.Bool
	// remoteClosed is set once the server dropped the room; the SDK has
	// already torn it down.
	remoteClosed atomic.Bool
}

func (r *room) Name() string {
	return r.room.Name()
}

func (r *room) LocalParticipant() playground.LocalParticipant {
	return r.local
}

func (r *room) RemoteParticipants() []playground.Participant {
	var out []playground.Participant
	for _, rp := range r.room.GetRemoteParticipants() {
		out = append(out, toParticipant(rp))
	}
	return out
}

func (r *room) Disconnect() {
	if r.closing.Swap(true) {
		return
	}
	r.local.stopMicrophone()
	if r.remoteClosed.Load() {
		r.logger.Info("released room closed by server")
		return
	}
	r.room.Disconnect()
	r.logger.Info("left room")
}

type localParticipant struct {
	logger     shared.LoggerAdapter
	lp         *lksdk.LocalParticipant
	microphone AudioSource

	mu        sync.Mutex
	micPub    *lksdk.LocalTrackPublication
	micRef    *playground.TrackRef
	micCancel context.CancelFunc
}

func (l *localParticipant) Identity() string {
	return l.lp.Identity()
}

// SetCameraEnabled only supports turning the camera off: this client has no
// video capture.
func (l *localParticipant) SetCameraEnabled(ctx context.Context, enabled bool) error {
	if !enabled {
		return nil
	}
	return fmt.Errorf("camera: %w", shared.ErrDeviceUnavailable)
}

// SetMicrophoneEnabled publishes the microphone on first enable and mutes or
// unmutes the publication afterwards.
func (l *localParticipant) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.micPub != nil {
		l.micPub.SetMuted(!enabled)
		l.micRef.Track.Muted = !enabled
		return nil
	}
	if !enabled {
		return nil
	}
	if l.microphone == nil {
		return fmt.Errorf("microphone: %w", shared.ErrDeviceUnavailable)
	}
	if err := l.microphone.Open(); err != nil {
		return fmt.Errorf("opening microphone: %w", err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		"audio",
		"microphone",
	)
	if err != nil {
		return fmt.Errorf("creating local audio track: %w", err)
	}
	pub, err := l.lp.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "microphone",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return fmt.Errorf("publishing microphone track: %w", err)
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := l.microphone.Stream(streamCtx, track); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("streaming microphone", err)
		}
	}()
	l.micPub = pub
	l.micCancel = cancel
	l.micRef = &playground.TrackRef{
		ParticipantIdentity: l.lp.Identity(),
		Track: playground.TrackInfo{
			SID:    pub.SID(),
			Name:   "microphone",
			Kind:   playground.TrackKindAudio,
			Source: playground.TrackSourceMicrophone,
		},
	}
	l.logger.Info("microphone published", zap.String("sid", pub.SID()))
	return nil
}

func (l *localParticipant) stopMicrophone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.micCancel != nil {
		l.micCancel()
		l.micCancel = nil
	}
}

func (l *localParticipant) MicrophoneTrack() *playground.TrackRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.micRef == nil {
		return nil
	}
	ref := *l.micRef
	return &ref
}

// PerformRPC waits for the SDK call or ctx, whichever finishes first. The
// SDK applies its own response timeout.
func (l *localParticipant) PerformRPC(ctx context.Context, req playground.RPCRequest) (string, error) {
	type result struct {
		payload *string
		err     error
	}
	resC := make(chan result, 1)
	go func() {
		payload, err := l.lp.PerformRpc(lksdk.PerformRpcParams{
			DestinationIdentity: req.DestinationIdentity,
			Method:              req.Method,
			Payload:             req.Payload,
		})
		resC <- result{payload: payload, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resC:
		if res.err != nil {
			return "", res.err
		}
		if res.payload == nil {
			return "", nil
		}
		return *res.payload, nil
	}
}

func (l *localParticipant) SendChat(ctx context.Context, msg playground.ChatMessage) error {
	data, err := playground.EncodeChatMessage(msg)
	if err != nil {
		return err
	}
	return l.lp.PublishDataPacket(
		lksdk.UserData(data),
		lksdk.WithDataPublishTopic(playground.ChatTopic),
		lksdk.WithDataPublishReliable(true),
	)
}
