package playground

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bt-bridge/agent-playground/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_RequiresCollaborators(t *testing.T) {
	logger := shared.NewNopLogger()
	_, err := NewSession(nil, &fakeCredentials{}, &fakeTransport{})
	assert.ErrorIs(t, err, shared.ErrNoLogger)
	_, err = NewSession(logger, nil, &fakeTransport{})
	assert.ErrorIs(t, err, shared.ErrNoCredentialSource)
	_, err = NewSession(logger, &fakeCredentials{}, nil)
	assert.ErrorIs(t, err, shared.ErrNoTransport)
}

func TestConnectionState_Label(t *testing.T) {
	assert.Equal(t, "Disconnected", StateDisconnected.Label())
	assert.Equal(t, "Connecting", StateConnecting.Label())
	assert.Equal(t, "Reconnecting", StateReconnecting.Label())
	assert.True(t, StateReconnecting.Active())
	assert.False(t, StateEnded.Active())
}

func TestSession_StartAndEnd(t *testing.T) {
	s, creds, transport := newTestSession(t)
	rec := recordUpdates(s)

	assert.Equal(t, StateDisconnected, s.State())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, "room-1", s.RoomName())
	assert.Equal(t, 1, creds.Calls())

	s.End()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, s.RoomName())
	assert.NoError(t, s.Err())
	assert.EqualValues(t, 1, transport.Room().disconnects.Load())

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(
			[]ConnectionState{StateConnecting, StateConnected, StateDisconnected},
			rec.states(),
		)
	}, waitFor, tick)
}

func TestSession_StartWhileConnectedIsNoop(t *testing.T) {
	s, creds, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	epoch := s.Epoch()

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, epoch, s.Epoch())
	assert.Equal(t, 1, creds.Calls())
	assert.Equal(t, 1, transport.Connects())
}

func TestSession_ConcurrentStartsCollapse(t *testing.T) {
	s, creds, transport := newTestSession(t)
	creds.gate = make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Start(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return creds.Calls() == 1 }, waitFor, tick)
	close(creds.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, creds.Calls())
	assert.Equal(t, 1, transport.Connects())
}

func TestSession_EndDuringCredentialFetch(t *testing.T) {
	s, creds, transport := newTestSession(t)
	creds.gate = make(chan struct{})

	errC := make(chan error, 1)
	go func() { errC <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return creds.Calls() == 1 }, waitFor, tick)
	assert.Equal(t, StateConnecting, s.State())

	s.End()
	err := <-errC
	assert.ErrorIs(t, err, shared.ErrSessionEnded)
	assert.Equal(t, StateDisconnected, s.State())
	assert.NoError(t, s.Err())
	assert.Zero(t, transport.Entered())
}

func TestSession_EndDuringJoinDiscardsRoom(t *testing.T) {
	s, _, transport := newTestSession(t)
	transport.gate = make(chan struct{})

	errC := make(chan error, 1)
	go func() { errC <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return transport.Entered() == 1 }, waitFor, tick)

	s.End()
	assert.Equal(t, StateDisconnected, s.State())
	close(transport.gate)

	assert.ErrorIs(t, <-errC, shared.ErrSessionEnded)
	assert.Equal(t, StateDisconnected, s.State())
	assert.EqualValues(t, 1, transport.Room().disconnects.Load())
	_, _, ok := s.LocalParticipant()
	assert.False(t, ok)
}

func TestSession_CredentialFailureEnds(t *testing.T) {
	s, creds, transport := newTestSession(t)
	boom := errors.New("token endpoint unavailable")
	creds.err = boom

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateEnded, s.State())
	assert.ErrorIs(t, s.Err(), boom)
	assert.Zero(t, transport.Entered())

	creds.mu.Lock()
	creds.err = nil
	creds.mu.Unlock()
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateConnected, s.State())
	assert.NoError(t, s.Err())
}

func TestSession_JoinFailureEnds(t *testing.T) {
	s, _, transport := newTestSession(t)
	boom := errors.New("signal connection refused")
	transport.err = boom

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateEnded, s.State())
	assert.Equal(t, AgentView{}, s.Agent())
}

func TestSession_EmptyCredentialRejected(t *testing.T) {
	transport := &fakeTransport{}
	creds := CredentialSourceFunc(func(context.Context, TokenFetchOptions) (Credential, error) {
		return Credential{ServerURL: "wss://playground.test"}, nil
	})
	s, err := NewSession(shared.NewNopLogger(), creds, transport)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	assert.ErrorIs(t, s.Start(context.Background()), shared.ErrNoCredential)
	assert.Equal(t, StateEnded, s.State())
}

func TestSession_EndWhenIdleIsNoop(t *testing.T) {
	s, _, _ := newTestSession(t)
	epoch := s.Epoch()
	s.End()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, epoch, s.Epoch())
}

func TestSession_AgentJoinsAfterConnect(t *testing.T) {
	s, _, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, AgentView{}, s.Agent())

	agent := agentParticipant("agent-1", nil)
	transport.emit(ParticipantJoined(agent))
	transport.emit(TrackPublished(agent, audioTrack("TR_a")))

	view := s.Agent()
	assert.True(t, view.IsConnected)
	assert.Equal(t, "agent-1", view.Identity)
	require.NotNil(t, view.MicrophoneTrack)
	assert.Equal(t, "TR_a", view.MicrophoneTrack.Track.SID)

	s.End()
	assert.Equal(t, AgentView{}, s.Agent())
}

func TestSession_SeedsExistingParticipants(t *testing.T) {
	creds := &fakeCredentials{}
	transport := &seededTransport{participants: []Participant{agentParticipant("agent-1", nil)}}
	s, err := NewSession(shared.NewNopLogger(), creds, transport)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, "agent-1", s.Agent().Identity)
}

type seededTransport struct {
	participants []Participant
}

func (t *seededTransport) Connect(ctx context.Context, cred Credential, sink EventSink) (Room, error) {
	room := newFakeRoom()
	room.remotes = t.participants
	return room, nil
}

func TestSession_StaleEventsDropped(t *testing.T) {
	s, _, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	transport.mu.Lock()
	staleSink := transport.sink
	transport.mu.Unlock()

	s.End()
	require.NoError(t, s.Start(context.Background()))

	staleSink(ParticipantJoined(agentParticipant("agent-old", nil)))
	staleSink(Disconnected("old room closed"))
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, AgentView{}, s.Agent())
}

func TestSession_RemoteDisconnectEnds(t *testing.T) {
	s, _, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	transport.emit(ParticipantJoined(agentParticipant("agent-1", nil)))

	transport.emit(Disconnected("room deleted"))
	assert.Equal(t, StateEnded, s.State())
	require.ErrorIs(t, s.Err(), shared.ErrRemoteDisconnected)
	assert.Contains(t, s.Err().Error(), "room deleted")
	assert.Equal(t, AgentView{}, s.Agent())

	transport.emit(ParticipantJoined(agentParticipant("agent-2", nil)))
	assert.Equal(t, AgentView{}, s.Agent())
}

func TestSession_RemoteDisconnectReleasesRoom(t *testing.T) {
	s, _, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	room := transport.Room()

	transport.emit(Disconnected("server shutdown"))
	assert.Equal(t, StateEnded, s.State())
	assert.EqualValues(t, 1, room.disconnects.Load())

	s.End()
	assert.EqualValues(t, 1, room.disconnects.Load())

	require.NoError(t, s.Start(context.Background()))
	assert.NotSame(t, room, transport.Room())
	assert.EqualValues(t, 1, room.disconnects.Load())
}

func TestSession_Reconnecting(t *testing.T) {
	s, _, transport := newTestSession(t)
	require.NoError(t, s.Start(context.Background()))
	transport.emit(ParticipantJoined(agentParticipant("agent-1", nil)))

	transport.emit(Event{Type: EventReconnecting})
	assert.Equal(t, StateReconnecting, s.State())
	assert.True(t, s.Agent().IsConnected)
	assert.Empty(t, s.RoomName())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateReconnecting, s.State())

	transport.emit(Event{Type: EventReconnected})
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, transport.Connects())
}

func TestSession_UpdatesCarryEpochAndAgent(t *testing.T) {
	s, _, transport := newTestSession(t)
	rec := recordUpdates(s)
	require.NoError(t, s.Start(context.Background()))
	transport.emit(ParticipantJoined(agentParticipant("agent-1", nil)))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.updates) == 3
	}, waitFor, tick)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	last := rec.updates[2]
	assert.Equal(t, EventParticipantJoined, last.Event)
	assert.Equal(t, s.Epoch(), last.Epoch)
	assert.Equal(t, "agent-1", last.Agent.Identity)
}

func TestSession_ObserveCancel(t *testing.T) {
	s, _, _ := newTestSession(t)
	var mu sync.Mutex
	calls := 0
	cancel := s.Observe(func(Update) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})
	cancel()
	require.NoError(t, s.Start(context.Background()))
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestSession_StartAfterClose(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Close()
	assert.ErrorIs(t, s.Start(context.Background()), shared.ErrSessionEnded)
}
