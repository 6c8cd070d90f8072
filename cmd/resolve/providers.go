package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/anthropic"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/gemini"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/openai"
)

// newAnalyzer builds the model client for provider. An empty key yields
// ai.ErrNotConfigured.
func newAnalyzer(ctx context.Context, provider, key, model string) (ai.Analyzer, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ai.ErrNotConfigured
	}
	var (
		a   ai.Analyzer
		err error
	)
	// jangan return typed nil sebagai interface
	switch strings.ToLower(provider) {
	case "", "gemini", "google":
		var c *gemini.Client
		if c, err = gemini.NewClient(ctx, key, model); err == nil {
			a = c
		}
	case "openai":
		var c *openai.Client
		if c, err = openai.NewClient(key, model); err == nil {
			a = c
		}
	case "anthropic", "claude":
		var c *anthropic.Client
		if c, err = anthropic.NewClient(key, model); err == nil {
			a = c
		}
	default:
		return nil, eris.Errorf("unknown ai provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
