//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package telemetry provides tracing for chain execution and transforms.
// Exporter wiring is left to the embedding application; this package only
// creates spans against the globally registered provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentName identifies this library to the tracer provider.
const InstrumentName = "github.com/gptgram/chaincore"

// Span operation names.
const (
	OperationExecuteChain  = "execute_chain"
	OperationExecuteNode   = "execute_node"
	OperationSynthesize    = "synthesize"
	OperationCallAgent     = "call_agent"
)

// Tracer is the tracer used across chaincore.
var Tracer = otel.Tracer(InstrumentName)

// StartSpan starts a span for the named operation.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) on the span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
