package llm

// ModelInfo carries the pricing and context window for a known model.
// Unknown models fall back to the default model's numbers, so cost
// estimates stay rough but never zero.
type ModelInfo struct {
	DisplayName   string
	ContextWindow int
	InputCost     float64 // dollars per input token
	OutputCost    float64 // dollars per output token
}

const DefaultModel = "claude-3-5-haiku-latest"

var models = map[string]ModelInfo{
	"claude-3-5-haiku-latest": {
		DisplayName:   "Claude 3.5 Haiku",
		ContextWindow: 200000,
		InputCost:     0.00000080,
		OutputCost:    0.00000400,
	},
	"claude-sonnet-4-0": {
		DisplayName:   "Claude 4 Sonnet",
		ContextWindow: 200000,
		InputCost:     0.000003,
		OutputCost:    0.000015,
	},
	"claude-opus-4-0": {
		DisplayName:   "Claude 4 Opus",
		ContextWindow: 200000,
		InputCost:     0.000015,
		OutputCost:    0.000075,
	},
	"claude-3-haiku-20240307": {
		DisplayName:   "Claude 3 Haiku",
		ContextWindow: 200000,
		InputCost:     0.00000025,
		OutputCost:    0.00000125,
	},
}

func GetModelInfo(model string) ModelInfo {
	if info, ok := models[model]; ok {
		return info
	}
	return models[DefaultModel]
}

// EstimateCost prices a completion in dollars.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	info := GetModelInfo(model)
	return float64(inputTokens)*info.InputCost + float64(outputTokens)*info.OutputCost
}

// EstimateTokens approximates the token count of raw text at four characters
// per token plus fixed prompt overhead.
func EstimateTokens(texts ...string) int {
	chars := 0
	for _, t := range texts {
		chars += len(t)
	}
	return chars/4 + 500
}

// ContextUsagePercent reports how much of the model's usable context the
// given token count occupies. A reserve is held back for the response.
func ContextUsagePercent(model string, tokens int) float64 {
	const responseReserve = 4000
	available := GetModelInfo(model).ContextWindow - responseReserve
	return float64(tokens) / float64(available) * 100
}

// ShouldCompact reports whether the conversation is close enough to the
// context limit that older turns should be summarized away.
func ShouldCompact(model string, tokens int) bool {
	return ContextUsagePercent(model, tokens) >= 75
}
