//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI-compatible model implementation.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/gptgram/chaincore/model"
)

// Model implements model.Model over the OpenAI chat completions API. It also
// works against OpenAI-compatible endpoints via WithBaseURL.
type Model struct {
	name   string
	client openai.Client
}

// New creates an OpenAI model adapter for the named model.
func New(name string, opts ...Option) *Model {
	options := options{}
	for _, opt := range opts {
		opt(&options)
	}

	var clientOpts []openaiopt.RequestOption
	if options.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(options.apiKey))
	}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(options.baseURL))
	}
	if options.httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(options.httpClient))
	}

	return &Model{
		name:   name,
		client: openai.NewClient(clientOpts...),
	}
}

// Info returns basic information about the model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent performs one chat completion request. The caller supplies
// the deadline via ctx; no unbounded awaits.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("openai: request is nil")
	}
	chatRequest := m.buildChatRequest(req)
	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return nil, errors.New("openai: completion returned no choices")
	}
	return &model.Response{
		Text: chatCompletion.Choices[0].Message.Content,
		Usage: model.Usage{
			PromptTokens:     int(chatCompletion.Usage.PromptTokens),
			CompletionTokens: int(chatCompletion.Usage.CompletionTokens),
			TotalTokens:      int(chatCompletion.Usage.TotalTokens),
		},
	}, nil
}

func (m *Model) buildChatRequest(req *model.Request) openai.ChatCompletionNewParams {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(req.Messages),
		// MaxTokens is deprecated and not compatible with o-series models.
		// Use MaxCompletionTokens instead.
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
	}
	if req.JSONMode {
		chatRequest.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return chatRequest
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
