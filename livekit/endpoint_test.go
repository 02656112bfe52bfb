package livekit

import (
	"context"
	"net"
	"testing"

	playground "github.com/bt-bridge/agent-playground"
	"github.com/bt-bridge/agent-playground/shared"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type capturedRequest struct {
	method    string
	sandboxID string
	body      endpointRequest
}

func startTokenServer(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestEndpointSource_Fetch(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	client := startTokenServer(t, func(ctx *fasthttp.RequestCtx) {
		c := capturedRequest{
			method:    string(ctx.Method()),
			sandboxID: string(ctx.Request.Header.Peek("X-Sandbox-ID")),
		}
		_ = sonic.Unmarshal(ctx.PostBody(), &c.body)
		captured <- c
		ctx.SetStatusCode(fasthttp.StatusCreated)
		ctx.SetBodyString(`{"server_url":"wss://sandbox.livekit.test","participant_token":"jwt"}`)
	})

	src, err := NewEndpointSource("http://token.test/api/token",
		WithHTTPClient(client),
		WithSandboxID("sandbox-123"),
		WithEndpointRoom("support", "Ana"),
	)
	require.NoError(t, err)

	cred, err := src.Fetch(context.Background(), playground.TokenFetchOptions{
		AgentName:     "concierge",
		AgentMetadata: `{"lang":"pt"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, playground.Credential{ServerURL: "wss://sandbox.livekit.test", ParticipantToken: "jwt"}, cred)

	req := <-captured
	assert.Equal(t, fasthttp.MethodPost, req.method)
	assert.Equal(t, "sandbox-123", req.sandboxID)
	assert.Equal(t, "support", req.body.RoomName)
	assert.Equal(t, "Ana", req.body.ParticipantName)
	require.NotNil(t, req.body.RoomConfig)
	assert.Equal(t, []endpointAgent{{AgentName: "concierge", Metadata: `{"lang":"pt"}`}}, req.body.RoomConfig.Agents)
}

func TestEndpointSource_NoDispatchWithoutAgent(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	client := startTokenServer(t, func(ctx *fasthttp.RequestCtx) {
		var c capturedRequest
		_ = sonic.Unmarshal(ctx.PostBody(), &c.body)
		captured <- c
		ctx.SetBodyString(`{"server_url":"wss://a","participant_token":"b"}`)
	})
	src, err := NewEndpointSource("http://token.test/", WithHTTPClient(client))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), playground.TokenFetchOptions{})
	require.NoError(t, err)
	assert.Nil(t, (<-captured).body.RoomConfig)
}

func TestEndpointSource_ErrorStatus(t *testing.T) {
	client := startTokenServer(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("bad sandbox id")
	})
	src, err := NewEndpointSource("http://token.test/", WithHTTPClient(client))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), playground.TokenFetchOptions{})
	assert.ErrorContains(t, err, "unexpected status code: 401")
	assert.ErrorContains(t, err, "bad sandbox id")
}

func TestEndpointSource_Canceled(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	client := startTokenServer(t, func(ctx *fasthttp.RequestCtx) { <-block })
	src, err := NewEndpointSource("http://token.test/", WithHTTPClient(client))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, playground.TokenFetchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEndpointSource_RequiresURL(t *testing.T) {
	_, err := NewEndpointSource("")
	assert.ErrorIs(t, err, shared.ErrMissingEndpointURL)
}
