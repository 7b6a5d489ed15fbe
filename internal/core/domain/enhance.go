package domain

// EnhanceRule selects the model and system prompt applied to one calling
// client's prompts. A disabled rule passes prompts through untouched.
type EnhanceRule struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

// IsEnabled defaults to true when the rules file omits the field.
func (r EnhanceRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// EnhanceRules is the full rule set loaded at startup. FallbackChain entries
// are tried in order when the preferred model fails; a nil entry is the
// give-up sentinel meaning "return the original prompt".
type EnhanceRules struct {
	Default       EnhanceRule            `json:"default"`
	Clients       map[string]EnhanceRule `json:"clients,omitempty"`
	FallbackChain []*string              `json:"fallback_chain,omitempty"`
}

// RuleFor resolves the rule for a client name, falling back to Default.
func (er *EnhanceRules) RuleFor(clientName string) EnhanceRule {
	if clientName != "" {
		if rule, ok := er.Clients[clientName]; ok {
			return rule
		}
	}
	return er.Default
}

// PassthroughRules is what the gateway runs with when no rules file exists:
// enhancement disabled, every prompt returned unchanged.
func PassthroughRules() *EnhanceRules {
	disabled := false
	return &EnhanceRules{
		Default: EnhanceRule{Enabled: &disabled},
	}
}

// EnhanceResult is the outcome of one enhancement pass. Enhanced equals
// Original whenever the pipeline degraded to passthrough.
type EnhanceResult struct {
	Original string `json:"original"`
	Enhanced string `json:"enhanced"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached"`
}
