//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package model abstracts the LLM providers consumed by the transform
// pipeline.
package model

import "context"

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Message represents a single message in a completion request.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the message content.
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// GenerationConfig controls decoding behavior of a completion request.
type GenerationConfig struct {
	// Temperature is the sampling temperature. The synthesizer always
	// requests 0 for reproducible output.
	Temperature float64 `json:"temperature"`
	// MaxTokens caps the number of generated tokens.
	MaxTokens int `json:"max_tokens"`
	// JSONMode asks the provider for a strict-JSON response body.
	JSONMode bool `json:"json_mode"`
}

// Request is a completion request to an LLM provider.
type Request struct {
	// Messages is the conversation to complete.
	Messages []Message `json:"messages"`
	// GenerationConfig contains the generation parameters.
	GenerationConfig `json:",inline"`
}

// Usage reports provider token accounting for one completion.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens is the number of generated tokens.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the total number of tokens consumed.
	TotalTokens int `json:"total_tokens"`
}

// Response is a completed (non-streaming) model response.
type Response struct {
	// Text is the generated text.
	Text string `json:"text"`
	// Usage is the token accounting reported by the provider.
	Usage Usage `json:"usage"`
}

// Info describes a model instance.
type Info struct {
	// Name is the provider-side model name.
	Name string
}

// Model is the interface every LLM provider adapter implements. Callers are
// expected to pass a context with a bounded deadline; adapters never impose
// their own.
type Model interface {
	// GenerateContent performs one completion request.
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
	// Info returns basic information about the model.
	Info() Info
}
