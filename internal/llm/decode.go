package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONArray is returned when a completion holds no decodable JSON array
var ErrNoJSONArray = errors.New("no JSON array in completion")

// DecodeArray turns completion text into typed elements. The whole text is
// tried first; failing that, the span from the first '[' to the last ']' is
// decoded, which covers prose or code fences around the array.
func DecodeArray[T any](text string) ([]T, error) {
	var out []T
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end <= start {
		return nil, ErrNoJSONArray
	}

	out = nil
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONArray, err)
	}
	return out, nil
}
