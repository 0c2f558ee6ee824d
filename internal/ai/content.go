package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseContent parses the assistant's reply into a JSON object. A surrounding
// markdown code fence is tolerated; anything other than an object is rejected.
func ParseContent(text string) (map[string]any, error) {
	raw := stripCodeFence(strings.TrimSpace(text))
	if raw == "" {
		return nil, errors.New("empty reply")
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("reply is %T, want a JSON object", v)
	}
	return obj, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
