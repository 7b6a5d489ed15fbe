package enhance

// modelTokenLimits covers the models the enhancement chain is normally
// configured with. Anything else gets the conservative default.
var modelTokenLimits = map[string]int{
	"llama3.2:3b":      128000,
	"llama3":           8000,
	"deepseek-r1:14b":  64000,
	"deepseek-r1":      64000,
	"qwen2.5-coder:7b": 128000,
	"phi3:mini":        128000,
	"nomic-embed-text": 8000,
}

const defaultTokenLimit = 4096

// fitsModel estimates tokens at four characters apiece and keeps ten
// percent headroom for the system prompt and the model's answer. The
// estimate is rough on purpose; anything that slips through still
// degrades to passthrough rather than an error.
func fitsModel(prompt, model string) bool {
	limit, ok := modelTokenLimits[model]
	if !ok {
		limit = defaultTokenLimit
	}
	estimated := len(prompt) / 4
	return float64(estimated) < float64(limit)*0.9
}
