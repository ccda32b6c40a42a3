//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package chain

import (
	"time"

	"github.com/gptgram/chaincore/schema"
	"github.com/gptgram/chaincore/transform"
)

// Executor defaults. The thresholds match the product's historical constants
// and are tunable, not hard requirements.
const (
	defaultDirectThreshold = 0.85
	defaultWorkerPoolSize  = 4
	defaultAgentTimeout    = 30 * time.Second
	defaultLLMTimeout      = 90 * time.Second
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMatcher overrides the Schema Matcher.
func WithMatcher(m *schema.Matcher) ExecutorOption {
	return func(e *Executor) {
		e.matcher = m
	}
}

// WithMapper overrides the deterministic mapper.
func WithMapper(m *transform.Mapper) ExecutorOption {
	return func(e *Executor) {
		e.mapper = m
	}
}

// WithRecommender attaches a recipe recommender. Without one, the recipe
// strategy is skipped.
func WithRecommender(r *transform.Recommender) ExecutorOption {
	return func(e *Executor) {
		e.recommender = r
	}
}

// WithSynthesizer attaches an LLM synthesizer. Without one, the LLM strategy
// is skipped.
func WithSynthesizer(s *transform.Synthesizer) ExecutorOption {
	return func(e *Executor) {
		e.synthesizer = s
	}
}

// WithRecorder overrides the transform audit recorder.
func WithRecorder(r transform.Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = r
	}
}

// WithRunSaver attaches a persistence collaborator that receives run updates.
func WithRunSaver(s RunSaver) ExecutorOption {
	return func(e *Executor) {
		e.saver = s
	}
}

// WithDirectThreshold overrides the direct-connect score threshold (default 0.85).
func WithDirectThreshold(threshold float64) ExecutorOption {
	return func(e *Executor) {
		e.directThreshold = threshold
	}
}

// WithWorkerPoolSize bounds how many independent branches execute
// concurrently (default 4).
func WithWorkerPoolSize(size int) ExecutorOption {
	return func(e *Executor) {
		if size > 0 {
			e.workers = size
		}
	}
}

// WithAgentTimeout bounds each agent call (default 30s).
func WithAgentTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.agentTimeout = d
	}
}

// WithLLMTimeout bounds each synthesis call (default 90s).
func WithLLMTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.llmTimeout = d
	}
}
