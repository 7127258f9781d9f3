package chat

import (
	"regexp"
	"strings"
)

// intentPatterns maps each intent to the regexps that signal it. Order
// matters: the first matching intent wins.
var intentOrder = []string{"question", "greeting", "request", "information", "goodbye", "clarification", "feedback"}

var intentPatterns = map[string][]*regexp.Regexp{
	"question": {
		regexp.MustCompile(`\?`),
		regexp.MustCompile(`^(what|how|why|when|where|who)`),
		regexp.MustCompile(`tell me|explain`),
	},
	"greeting": {
		regexp.MustCompile(`^(hi|hello|hey)`),
		regexp.MustCompile(`good morning|good afternoon`),
		regexp.MustCompile(`greetings`),
	},
	"request": {
		regexp.MustCompile(`can you|could you|please`),
		regexp.MustCompile(`help me|assist`),
		regexp.MustCompile(`i need|i want`),
	},
	"information": {
		regexp.MustCompile(`about|regarding|concerning`),
		regexp.MustCompile(`information|details|facts`),
	},
	"goodbye": {
		regexp.MustCompile(`bye|goodbye|farewell`),
		regexp.MustCompile(`see you|talk later`),
	},
	"clarification": {
		regexp.MustCompile(`what do you mean|clarify|explain that`),
		regexp.MustCompile(`i don't understand|confused`),
	},
	"feedback": {
		regexp.MustCompile(`good job|well done|excellent`),
		regexp.MustCompile(`not good|wrong|incorrect`),
	},
}

func classifyIntent(text string) string {
	text = strings.ToLower(text)
	for _, intent := range intentOrder {
		for _, re := range intentPatterns[intent] {
			if re.MatchString(text) {
				return intent
			}
		}
	}
	return "general"
}

// intentConfidence scores how clear the intent looks. Longer, more
// specific text scores higher.
func intentConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	confidence := 0.5
	switch {
	case len(text) > 50:
		confidence += 0.2
	case len(text) < 10:
		confidence -= 0.2
	}
	lower := strings.ToLower(text)
	for _, word := range []string{"specific", "exactly", "precisely", "detailed", "particular"} {
		if strings.Contains(lower, word) {
			confidence += 0.1
			break
		}
	}
	if strings.Contains(text, "?") {
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

var entityPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"number", regexp.MustCompile(`\b\d+\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"url", regexp.MustCompile(`https?://\S+`)},
	{"capitalized", regexp.MustCompile(`\b[A-Z][a-z]+\b`)},
}

func extractEntities(text string) []Entity {
	var entities []Entity
	for _, p := range entityPatterns {
		for _, match := range p.re.FindAllString(text, -1) {
			entities = append(entities, Entity{Type: p.kind, Value: match})
		}
	}
	return entities
}

var contextIndicators = []string{
	"that", "it", "this", "previous", "before", "earlier",
	"what we discussed", "as mentioned", "continue", "also",
}

// needsContext reports whether the input refers back to earlier turns.
func needsContext(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range contextIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
