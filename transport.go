package playground

import "context"

// Credential is what a CredentialSource hands out for one connection attempt.
type Credential struct {
	ServerURL        string
	ParticipantToken string
}

// CredentialSource fetches a connection credential for the given options.
type CredentialSource interface {
	Fetch(ctx context.Context, opts TokenFetchOptions) (Credential, error)
}

// CredentialSourceFunc adapts a function to CredentialSource.
type CredentialSourceFunc func(ctx context.Context, opts TokenFetchOptions) (Credential, error)

func (f CredentialSourceFunc) Fetch(ctx context.Context, opts TokenFetchOptions) (Credential, error) {
	return f(ctx, opts)
}

// EventSink receives transport events. Implementations of Transport call it
// from any goroutine; the session serialises them.
type EventSink func(Event)

// Transport joins the realtime channel. Connect blocks until the room is
// joined or ctx is done.
type Transport interface {
	Connect(ctx context.Context, cred Credential, sink EventSink) (Room, error)
}

type Room interface {
	Name() string
	LocalParticipant() LocalParticipant
	// RemoteParticipants is the set of participants already in the room
	// when Connect returned.
	RemoteParticipants() []Participant
	Disconnect()
}

type LocalParticipant interface {
	Identity() string
	SetCameraEnabled(ctx context.Context, enabled bool) error
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	// MicrophoneTrack is the local microphone publication, nil when the
	// microphone has never been published.
	MicrophoneTrack() *TrackRef
	PerformRPC(ctx context.Context, req RPCRequest) (string, error)
	SendChat(ctx context.Context, msg ChatMessage) error
}

type ParticipantKind int

const (
	ParticipantKindStandard ParticipantKind = iota
	ParticipantKindIngress
	ParticipantKindEgress
	ParticipantKindSIP
	ParticipantKindAgent
)

func (k ParticipantKind) String() string {
	switch k {
	case ParticipantKindStandard:
		return "standard"
	case ParticipantKindIngress:
		return "ingress"
	case ParticipantKindEgress:
		return "egress"
	case ParticipantKindSIP:
		return "sip"
	case ParticipantKindAgent:
		return "agent"
	default:
		return "unknown"
	}
}

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

type TrackSource string

const (
	TrackSourceUnknown     TrackSource = "unknown"
	TrackSourceMicrophone  TrackSource = "microphone"
	TrackSourceCamera      TrackSource = "camera"
	TrackSourceScreenShare TrackSource = "screen_share"
)

type TrackInfo struct {
	SID    string
	Name   string
	Kind   TrackKind
	Source TrackSource
	Muted  bool
}

// TrackRef points at a track owned by a participant. The session never owns
// the media behind it.
type TrackRef struct {
	ParticipantIdentity string
	Track               TrackInfo
}

// Participant is a snapshot of a remote participant as seen by the transport.
type Participant struct {
	Identity   string
	Name       string
	Kind       ParticipantKind
	Attributes map[string]string
	Tracks     []TrackInfo
}
