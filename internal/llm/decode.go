package llm

import (
	"encoding/json"
	"strings"
)

// StripFences removes a ```json code fence wrapper the model sometimes adds
// around structured output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeInto parses a model reply into out after stripping code fences. It
// reports whether the reply was usable; on malformed output the caller keeps
// its fallback value. Parse failures are recovered locally and never surface
// as errors.
func DecodeInto(raw string, out any) bool {
	return json.Unmarshal([]byte(StripFences(raw)), out) == nil
}
