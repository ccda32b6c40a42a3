//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gptgram/chaincore/internal/telemetry"
	"github.com/gptgram/chaincore/log"
	"github.com/gptgram/chaincore/model"
	"github.com/gptgram/chaincore/schema"
)

const (
	// defaultMaxOutputTokens caps synthesized output size.
	defaultMaxOutputTokens = 512
	// defaultCostRate is the billing rate in cost units per thousand tokens.
	defaultCostRate = 10
	// promptBytesPerToken is the rough prompt-size heuristic used to
	// pre-charge the budget before token usage is known.
	promptBytesPerToken = 4
)

const synthesisSystemPrompt = `You convert data between JSON formats.
Produce a single JSON object that conforms exactly to the target schema below.
Use only data present in the source payload. Do not invent facts.
Respond with JSON only: no prose, no markdown fences.

Target schema:
%s`

// SynthesisRequest asks the Synthesizer to produce a payload for a target
// schema from combined upstream data.
type SynthesisRequest struct {
	// ChainRunID tags the audit records.
	ChainRunID string
	// IdempotencyKey deduplicates paid model calls. A repeated call with the
	// same key and same input returns the cached prior result.
	IdempotencyKey string
	// Combined is the merged upstream payload.
	Combined map[string]any
	// Target is the downstream node's input schema.
	Target *schema.Schema
	// FewShotExamples are optional example target payloads.
	FewShotExamples []map[string]any
}

// SynthesisResult is the outcome of one synthesis attempt (including its
// internal validation retry).
type SynthesisResult struct {
	// Payload is the synthesized payload, nil when no parseable output came back.
	Payload map[string]any
	// Valid reports whether Payload validates against the target schema.
	// An invalid result is a hard failure for the edge.
	Valid bool
	// Score is the Schema Matcher score of the synthesized payload.
	Score float64
	// CostUnits is the total billed cost across model calls.
	CostUnits int
	// Tokens aggregates token usage across model calls.
	Tokens model.Usage
}

// Synthesizer is the last-resort transform: it asks an LLM to restructure the
// combined payload into the target schema, temperature 0, strict JSON.
type Synthesizer struct {
	model    model.Model
	recorder Recorder
	budget   *Budget
	matcher  *schema.Matcher

	maxOutputTokens int
	costRate        int

	mu    sync.Mutex
	cache map[string]cachedSynthesis
}

type cachedSynthesis struct {
	inputHash string
	result    SynthesisResult
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithMaxOutputTokens overrides the output token budget (default 512).
func WithMaxOutputTokens(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.maxOutputTokens = n
	}
}

// WithBudget attaches a shared spend cap. Nil means unlimited.
func WithBudget(b *Budget) SynthesizerOption {
	return func(s *Synthesizer) {
		s.budget = b
	}
}

// WithCostRate sets the billing rate in cost units per thousand tokens.
func WithCostRate(unitsPerThousandTokens int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.costRate = unitsPerThousandTokens
	}
}

// NewSynthesizer creates a Synthesizer over the given model. Every invocation
// is logged to the recorder regardless of outcome.
func NewSynthesizer(m model.Model, recorder Recorder, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		model:           m,
		recorder:        recorder,
		matcher:         schema.NewMatcher(),
		maxOutputTokens: defaultMaxOutputTokens,
		costRate:        defaultCostRate,
		cache:           make(map[string]cachedSynthesis),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize runs at most two model calls (initial plus one error-correction
// retry) and validates the output against the target schema. Budget and
// transport failures return an error; a schema-invalid result returns
// Valid=false with a nil error, which callers must treat as a hard failure
// for the edge.
func (s *Synthesizer) Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error) {
	inputHash := hashInput(req.Combined)
	if req.IdempotencyKey != "" {
		if cached, ok := s.lookupCache(req.IdempotencyKey, inputHash); ok {
			log.Debugf("synthesizer: idempotency hit for key %s", req.IdempotencyKey)
			return &cached, nil
		}
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.OperationSynthesize,
		attribute.String("chain_run_id", req.ChainRunID),
		attribute.String("model", s.model.Info().Name),
	)

	result, err := s.synthesize(ctx, req, inputHash)
	telemetry.EndSpan(span, err)
	return result, err
}

func (s *Synthesizer) synthesize(ctx context.Context, req *SynthesisRequest, inputHash string) (*SynthesisResult, error) {
	messages, err := s.buildMessages(req)
	if err != nil {
		return nil, err
	}

	result := SynthesisResult{}
	var lastValidation error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			messages = append(messages, model.NewUserMessage(fmt.Sprintf(
				"The previous response failed schema validation: %v\n"+
					"Return a corrected JSON object that conforms to the target schema.",
				lastValidation)))
		}

		response, callErr := s.call(ctx, req, messages, &result)
		if callErr != nil {
			s.record(ctx, req, result, nil, RecordStatusFailed)
			return nil, callErr
		}

		payload, parseErr := parseJSONObject(response.Text)
		if parseErr != nil {
			lastValidation = parseErr
			s.record(ctx, req, result, nil, RecordStatusFailed)
			continue
		}
		result.Payload = payload

		if validationErr := req.Target.Validate(payload); validationErr != nil {
			lastValidation = validationErr
			s.record(ctx, req, result, payload, RecordStatusFailed)
			continue
		}

		result.Valid = true
		result.Score = s.matcher.Score(payload, req.Target).Score
		s.record(ctx, req, result, payload, RecordStatusSuccess)
		s.storeCache(req.IdempotencyKey, inputHash, result)
		return &result, nil
	}

	// Both attempts failed validation; the edge outcome is governed by the
	// node's failure policy.
	s.storeCache(req.IdempotencyKey, inputHash, result)
	return &result, nil
}

// call performs one budget-guarded model invocation and folds its usage into
// the running result.
func (s *Synthesizer) call(
	ctx context.Context,
	req *SynthesisRequest,
	messages []model.Message,
	result *SynthesisResult,
) (*model.Response, error) {
	estimate := s.estimateCost(messages)
	if err := s.budget.Charge(estimate); err != nil {
		return nil, err
	}

	response, err := s.model.GenerateContent(ctx, &model.Request{
		Messages: messages,
		GenerationConfig: model.GenerationConfig{
			Temperature: 0,
			MaxTokens:   s.maxOutputTokens,
			JSONMode:    true,
		},
	})
	if err != nil {
		s.budget.Adjust(-estimate)
		return nil, fmt.Errorf("synthesize: model call: %w", err)
	}

	actual := s.costOf(response.Usage)
	s.budget.Adjust(actual - estimate)

	result.CostUnits += actual
	result.Tokens.PromptTokens += response.Usage.PromptTokens
	result.Tokens.CompletionTokens += response.Usage.CompletionTokens
	result.Tokens.TotalTokens += response.Usage.TotalTokens
	return response, nil
}

func (s *Synthesizer) buildMessages(req *SynthesisRequest) ([]model.Message, error) {
	schemaJSON, err := json.MarshalIndent(req.Target.Spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("synthesize: marshal target schema: %w", err)
	}
	payloadJSON, err := json.MarshalIndent(req.Combined, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("synthesize: marshal source payload: %w", err)
	}

	messages := []model.Message{
		model.NewSystemMessage(fmt.Sprintf(synthesisSystemPrompt, schemaJSON)),
	}
	for _, example := range req.FewShotExamples {
		if exampleJSON, err := json.Marshal(example); err == nil {
			messages = append(messages, model.NewUserMessage(
				"Example of a conforming payload:\n"+string(exampleJSON)))
		}
	}
	messages = append(messages, model.NewUserMessage("Source payload:\n"+string(payloadJSON)))
	return messages, nil
}

func (s *Synthesizer) estimateCost(messages []model.Message) int {
	promptBytes := 0
	for _, msg := range messages {
		promptBytes += len(msg.Content)
	}
	estimatedTokens := promptBytes/promptBytesPerToken + s.maxOutputTokens
	return s.costOfTokens(estimatedTokens)
}

func (s *Synthesizer) costOf(usage model.Usage) int {
	return s.costOfTokens(usage.TotalTokens)
}

// costOfTokens rounds up so partial thousands still bill one unit of rate.
func (s *Synthesizer) costOfTokens(tokens int) int {
	return (tokens*s.costRate + 999) / 1000
}

func (s *Synthesizer) record(
	ctx context.Context,
	req *SynthesisRequest,
	result SynthesisResult,
	payloadAfter map[string]any,
	status RecordStatus,
) {
	if s.recorder == nil {
		return
	}
	rec := Record{
		TransformID:        uuid.NewString(),
		ChainRunID:         req.ChainRunID,
		Method:             MethodLLM,
		PayloadBefore:      req.Combined,
		PayloadAfter:       payloadAfter,
		CompatibilityScore: result.Score,
		CostUnits:          result.CostUnits,
		IdempotencyKey:     req.IdempotencyKey,
		Status:             status,
		Timestamp:          time.Now().UTC(),
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		log.Warnf("synthesizer: append transform record: %v", err)
	}
}

func (s *Synthesizer) lookupCache(key, inputHash string) (SynthesisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.cache[key]
	if !ok || cached.inputHash != inputHash {
		return SynthesisResult{}, false
	}
	return cached.result, true
}

func (s *Synthesizer) storeCache(key, inputHash string, result SynthesisResult) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedSynthesis{inputHash: inputHash, result: result}
}

func hashInput(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// parseJSONObject decodes a model response as a JSON object, tolerating
// markdown code fences some models emit despite instructions.
func parseJSONObject(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return payload, nil
}
