package playground

import "go.opentelemetry.io/otel"

const scopeName = "github.com/bt-bridge/agent-playground"

var tracer = otel.Tracer(scopeName)
