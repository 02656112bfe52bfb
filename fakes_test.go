package playground

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bt-bridge/agent-playground/shared"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	mu    sync.Mutex
	calls int
	opts  []TokenFetchOptions
	err   error
	gate  chan struct{}
}

func (f *fakeCredentials) Fetch(ctx context.Context, opts TokenFetchOptions) (Credential, error) {
	f.mu.Lock()
	f.calls++
	f.opts = append(f.opts, opts)
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Credential{}, context.Cause(ctx)
		}
	}
	if err != nil {
		return Credential{}, err
	}
	return Credential{ServerURL: "wss://playground.test", ParticipantToken: "token"}, nil
}

func (f *fakeCredentials) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCredentials) LastOptions() TokenFetchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts[len(f.opts)-1]
}

type fakeTransport struct {
	mu       sync.Mutex
	entered  int
	connects int
	sink     EventSink
	room     *fakeRoom
	err      error
	// gate holds Connect regardless of ctx, so a result can land after End.
	gate chan struct{}
}

func (t *fakeTransport) Connect(ctx context.Context, cred Credential, sink EventSink) (Room, error) {
	t.mu.Lock()
	t.entered++
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	if t.err != nil {
		return nil, t.err
	}
	t.sink = sink
	t.room = newFakeRoom()
	return t.room, nil
}

func (t *fakeTransport) emit(ev Event) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	sink(ev)
}

func (t *fakeTransport) Entered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entered
}

func (t *fakeTransport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

func (t *fakeTransport) Room() *fakeRoom {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room
}

type fakeRoom struct {
	name        string
	local       *fakeLocal
	remotes     []Participant
	disconnects atomic.Int32
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{name: "room-1", local: &fakeLocal{identity: "human-1"}}
}

func (r *fakeRoom) Name() string                       { return r.name }
func (r *fakeRoom) LocalParticipant() LocalParticipant { return r.local }
func (r *fakeRoom) RemoteParticipants() []Participant  { return r.remotes }
func (r *fakeRoom) Disconnect()                        { r.disconnects.Add(1) }

type fakeLocal struct {
	identity string

	mu       sync.Mutex
	camera   []bool
	mic      []bool
	camErr   error
	micErr   error
	rpcCalls []RPCRequest
	rpcResp  string
	rpcErr   error
	sent     []ChatMessage
	sendErr  error
}

func (l *fakeLocal) Identity() string { return l.identity }

func (l *fakeLocal) SetCameraEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.camera = append(l.camera, enabled)
	return l.camErr
}

func (l *fakeLocal) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mic = append(l.mic, enabled)
	return l.micErr
}

func (l *fakeLocal) MicrophoneTrack() *TrackRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.mic) == 0 {
		return nil
	}
	return &TrackRef{
		ParticipantIdentity: l.identity,
		Track:               TrackInfo{SID: "TR_local", Kind: TrackKindAudio, Source: TrackSourceMicrophone, Muted: !l.mic[len(l.mic)-1]},
	}
}

func (l *fakeLocal) PerformRPC(ctx context.Context, req RPCRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rpcCalls = append(l.rpcCalls, req)
	return l.rpcResp, l.rpcErr
}

func (l *fakeLocal) SendChat(ctx context.Context, msg ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, msg)
	return nil
}

func (l *fakeLocal) devices() (camera, mic []bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.camera...), append([]bool(nil), l.mic...)
}

func agentParticipant(identity string, attrs map[string]string) Participant {
	return Participant{Identity: identity, Kind: ParticipantKindAgent, Attributes: attrs}
}

func humanParticipant(identity string) Participant {
	return Participant{Identity: identity, Kind: ParticipantKindStandard}
}

func audioTrack(sid string) TrackInfo {
	return TrackInfo{SID: sid, Name: "agent-mic", Kind: TrackKindAudio, Source: TrackSourceMicrophone}
}

func newTestSession(t *testing.T, opts ...SessionOption) (*Session, *fakeCredentials, *fakeTransport) {
	t.Helper()
	creds := &fakeCredentials{}
	transport := &fakeTransport{}
	s, err := NewSession(shared.NewNopLogger(), creds, transport, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, creds, transport
}

// recordUpdates collects every update delivered to observers.
type updateRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func recordUpdates(s *Session) *updateRecorder {
	r := &updateRecorder{}
	s.Observe(func(u Update) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.updates = append(r.updates, u)
	})
	return r
}

func (r *updateRecorder) states() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ConnectionState
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.State {
			out = append(out, u.State)
		}
	}
	return out
}

const waitFor = time.Second
const tick = 5 * time.Millisecond
