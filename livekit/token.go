package livekit

import (
	"context"
	"fmt"
	"time"

	playground "github.com/bt-bridge/agent-playground"
	"github.com/bt-bridge/agent-playground/shared"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
)

var _ playground.CredentialSource = (*TokenSource)(nil)

const defaultTokenTTL = 15 * time.Minute

// TokenSource mints participant tokens locally from an API key and secret.
// It suits development setups where no token endpoint is deployed.
type TokenSource struct {
	serverURL       string
	apiKey          string
	apiSecret       string
	roomName        string
	participantID   string
	participantName string
	ttl             time.Duration
}

type TokenSourceOption func(*TokenSource)

func WithRoomName(name string) TokenSourceOption {
	return func(s *TokenSource) { s.roomName = name }
}

func WithParticipant(identity, name string) TokenSourceOption {
	return func(s *TokenSource) {
		s.participantID = identity
		s.participantName = name
	}
}

func WithTokenTTL(ttl time.Duration) TokenSourceOption {
	return func(s *TokenSource) { s.ttl = ttl }
}

func NewTokenSource(serverURL, apiKey, apiSecret string, opts ...TokenSourceOption) (*TokenSource, error) {
	if serverURL == "" {
		return nil, shared.ErrMissingServerURL
	}
	if apiKey == "" || apiSecret == "" {
		return nil, shared.ErrMissingAPIKey
	}
	s := &TokenSource{
		serverURL: serverURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch mints a token for a fresh room unless a room name was configured.
// A non-empty agent name or metadata becomes an explicit agent dispatch.
func (s *TokenSource) Fetch(ctx context.Context, opts playground.TokenFetchOptions) (playground.Credential, error) {
	if err := ctx.Err(); err != nil {
		return playground.Credential{}, err
	}
	roomName := s.roomName
	if roomName == "" {
		roomName = "playground-" + uuid.NewString()[:8]
	}
	identity := s.participantID
	if identity == "" {
		identity = "human-" + uuid.NewString()[:8]
	}
	name := s.participantName
	if name == "" {
		name = identity
	}

	at := auth.NewAccessToken(s.apiKey, s.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{RoomJoin: true, Room: roomName})
	at.SetIdentity(identity)
	at.SetName(name)
	at.SetValidFor(s.ttl)
	if dispatch := agentDispatch(opts); dispatch != nil {
		at.SetRoomConfig(&livekit.RoomConfiguration{
			Agents: []*livekit.RoomAgentDispatch{dispatch},
		})
	}
	token, err := at.ToJWT()
	if err != nil {
		return playground.Credential{}, fmt.Errorf("signing participant token: %w", err)
	}
	return playground.Credential{ServerURL: s.serverURL, ParticipantToken: token}, nil
}

func agentDispatch(opts playground.TokenFetchOptions) *livekit.RoomAgentDispatch {
	if opts.AgentName == "" && opts.AgentMetadata == "" {
		return nil
	}
	return &livekit.RoomAgentDispatch{
		AgentName: opts.AgentName,
		Metadata:  opts.AgentMetadata,
	}
}
