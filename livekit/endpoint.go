package livekit

import (
	"context"
	"fmt"
	"time"

	playground "github.com/bt-bridge/agent-playground"
	"github.com/bt-bridge/agent-playground/shared"
	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

var _ playground.CredentialSource = (*EndpointSource)(nil)

// EndpointSource requests credentials from a token endpoint, the way the
// LiveKit sandbox token server and self-hosted token services expect.
type EndpointSource struct {
	url             string
	headers         map[string]string
	roomName        string
	participantName string
	client          *fasthttp.Client
}

type EndpointOption func(*EndpointSource)

func WithHeader(key, value string) EndpointOption {
	return func(s *EndpointSource) { s.headers[key] = value }
}

// WithSandboxID authenticates against a LiveKit Cloud sandbox token server.
func WithSandboxID(id string) EndpointOption {
	return WithHeader("X-Sandbox-ID", id)
}

func WithEndpointRoom(roomName, participantName string) EndpointOption {
	return func(s *EndpointSource) {
		s.roomName = roomName
		s.participantName = participantName
	}
}

func WithHTTPClient(client *fasthttp.Client) EndpointOption {
	return func(s *EndpointSource) { s.client = client }
}

func NewEndpointSource(url string, opts ...EndpointOption) (*EndpointSource, error) {
	if url == "" {
		return nil, shared.ErrMissingEndpointURL
	}
	s := &EndpointSource{
		url:     url,
		headers: make(map[string]string),
		client: &fasthttp.Client{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type endpointAgent struct {
	AgentName string `json:"agent_name,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
}

type endpointRoomConfig struct {
	Agents []endpointAgent `json:"agents,omitempty"`
}

type endpointRequest struct {
	RoomName        string              `json:"room_name,omitempty"`
	ParticipantName string              `json:"participant_name,omitempty"`
	RoomConfig      *endpointRoomConfig `json:"room_config,omitempty"`
}

type endpointResponse struct {
	ServerURL        string `json:"server_url"`
	ParticipantToken string `json:"participant_token"`
}

func (s *EndpointSource) Fetch(ctx context.Context, opts playground.TokenFetchOptions) (playground.Credential, error) {
	body := endpointRequest{
		RoomName:        s.roomName,
		ParticipantName: s.participantName,
	}
	if opts.AgentName != "" || opts.AgentMetadata != "" {
		body.RoomConfig = &endpointRoomConfig{
			Agents: []endpointAgent{{AgentName: opts.AgentName, Metadata: opts.AgentMetadata}},
		}
	}
	reqBody, err := sonic.Marshal(body)
	if err != nil {
		return playground.Credential{}, fmt.Errorf("marshaling token request: %w", err)
	}

	type result struct {
		status int
		body   []byte
		err    error
	}
	resC := make(chan result, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(s.url)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}
		req.SetBody(reqBody)

		err := s.client.Do(req, resp)
		resC <- result{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
			err:    err,
		}
	}()

	var res result
	select {
	case <-ctx.Done():
		return playground.Credential{}, ctx.Err()
	case res = <-resC:
	}
	if res.err != nil {
		return playground.Credential{}, fmt.Errorf("performing token request: %w", res.err)
	}
	if res.status != fasthttp.StatusOK && res.status != fasthttp.StatusCreated {
		return playground.Credential{}, fmt.Errorf("unexpected status code: %d, body: %s", res.status, string(res.body))
	}
	var out endpointResponse
	if err := sonic.Unmarshal(res.body, &out); err != nil {
		return playground.Credential{}, fmt.Errorf("unmarshaling token response: %w", err)
	}
	return playground.Credential{ServerURL: out.ServerURL, ParticipantToken: out.ParticipantToken}, nil
}
