package playground

import (
	"context"
	"fmt"

	"github.com/bt-bridge/agent-playground/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RPCRequest is a single call addressed to the agent.
type RPCRequest struct {
	DestinationIdentity string
	Method              string
	Payload             string
}

// RPCInvoker performs one-shot calls against the resolved agent. It never
// retries and never touches session state.
type RPCInvoker struct {
	session *Session
	logger  shared.LoggerAdapter
}

func NewRPCInvoker(session *Session) *RPCInvoker {
	return &RPCInvoker{
		session: session,
		logger:  session.logger.With(zap.String("component", "rpc")),
	}
}

// Invoke calls method on the agent and returns its response unmodified.
func (i *RPCInvoker) Invoke(ctx context.Context, method, payload string) (string, error) {
	ctx, span := tracer.Start(ctx, "rpc invoke", trace.WithAttributes(
		attribute.String("rpc.method", method),
	))
	defer span.End()

	local, agent := i.session.rpcTarget()
	if !agent.IsConnected || agent.Identity == "" {
		span.SetStatus(codes.Error, shared.ErrNoAgent.Error())
		return "", shared.ErrNoAgent
	}
	if local == nil {
		span.SetStatus(codes.Error, shared.ErrNoActiveSession.Error())
		return "", shared.ErrNoActiveSession
	}
	if method == "" {
		return "", shared.ErrEmptyRPCMethod
	}
	req := RPCRequest{
		DestinationIdentity: agent.Identity,
		Method:              method,
		Payload:             payload,
	}
	span.SetAttributes(attribute.String("rpc.destination", req.DestinationIdentity))
	i.logger.Debug("performing rpc",
		zap.String("destination", req.DestinationIdentity),
		zap.String("method", method),
	)
	resp, err := local.PerformRPC(ctx, req)
	if err != nil {
		err = fmt.Errorf("performing rpc %q: %w", method, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return resp, nil
}
