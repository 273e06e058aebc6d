package utils

import (
	"encoding/json"
	"fmt"
)

// Pretty renders v as indented JSON, falling back to %v.
func Pretty(v any) string {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			v = decoded
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
