// Package enhance rewrites caller prompts through the local inference
// service, governed by per-client rules. The whole pipeline is
// fail-open: whatever goes wrong, the caller gets a usable prompt back,
// worst case their own.
package enhance

import (
	"context"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

const promptTemplate = "Enhance this prompt:\n\n"

type Enhancer struct {
	rules     *domain.EnhanceRules
	cache     ports.PromptCache
	inference ports.InferenceClient
	logger    logger.StyledLogger
}

func NewEnhancer(rules *domain.EnhanceRules, cache ports.PromptCache, inference ports.InferenceClient, log logger.StyledLogger) *Enhancer {
	if rules == nil {
		rules = domain.PassthroughRules()
	}
	return &Enhancer{
		rules:     rules,
		cache:     cache,
		inference: inference,
		logger:    log,
	}
}

// Enhance resolves the client's rule and runs the pipeline: cache probe,
// then the preferred model, then the fallback chain. A nil chain entry
// means stop trying and hand the original prompt back.
func (e *Enhancer) Enhance(ctx context.Context, prompt, clientName string) domain.EnhanceResult {
	rule := e.rules.RuleFor(clientName)
	if !rule.IsEnabled() {
		return passthrough(prompt, rule.Model)
	}

	if entry, ok := e.cache.Get(ctx, prompt); ok {
		return domain.EnhanceResult{
			Original: prompt,
			Enhanced: entry.Enhanced,
			Model:    entry.Model,
			Cached:   true,
		}
	}

	for _, candidate := range e.candidates(rule) {
		if candidate == nil {
			e.logger.Debug("fallback chain exhausted, returning original prompt", "client", clientName)
			break
		}
		model := *candidate

		if !fitsModel(prompt, model) {
			e.logger.Debug("prompt too large for model, trying next", "model", model, "prompt_bytes", len(prompt))
			continue
		}

		enhanced, err := e.inference.Generate(ctx, model, rule.SystemPrompt, promptTemplate+prompt)
		if err != nil {
			e.logger.Warn("enhancement attempt failed", "model", model, "error", err)
			continue
		}
		if enhanced == "" {
			e.logger.Warn("model returned an empty enhancement", "model", model)
			continue
		}

		e.cache.Put(ctx, prompt, enhanced, model)
		return domain.EnhanceResult{
			Original: prompt,
			Enhanced: enhanced,
			Model:    model,
			Cached:   false,
		}
	}

	return passthrough(prompt, rule.Model)
}

// candidates lists the models to try in order: the rule's own model
// first, then the shared fallback chain verbatim, nil sentinels
// included.
func (e *Enhancer) candidates(rule domain.EnhanceRule) []*string {
	model := rule.Model
	out := make([]*string, 0, len(e.rules.FallbackChain)+1)
	out = append(out, &model)
	out = append(out, e.rules.FallbackChain...)
	return out
}

func passthrough(prompt, model string) domain.EnhanceResult {
	return domain.EnhanceResult{
		Original: prompt,
		Enhanced: prompt,
		Model:    model,
		Cached:   false,
	}
}
