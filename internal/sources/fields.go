package sources

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// splitKey separates an adapter key into its primary identifier and an
// optional '#'-delimited field path. Only the first '#' splits; the field
// path may itself contain '#'.
func splitKey(key string) (primary, field string) {
	if idx := strings.Index(key, "#"); idx != -1 {
		return key[:idx], key[idx+1:]
	}
	return key, ""
}

// extractField walks a dot-separated path into decoded structured data and
// stringifies the leaf.
func extractField(data interface{}, path string) (string, error) {
	current := data
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("cannot navigate into non-object at %q", part)
		}
		next, exists := m[part]
		if !exists {
			return "", fmt.Errorf("field %q not found", part)
		}
		current = next
	}
	return stringify(current)
}

// stringify converts a decoded scalar or subtree to its string form.
// Complex subtrees come back as compact JSON.
func stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case nil:
		return "", nil
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("failed to convert value to string: %w", err)
		}
		return string(out), nil
	}
}

// decodeDocument parses structured file or response content. JSON is
// decoded as JSON; everything else goes through the YAML decoder, which
// also accepts JSON input.
func decodeDocument(content []byte, preferJSON bool) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if preferJSON {
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return doc, nil
}

// Settings accessors for the inline per-source config maps.

func settingString(settings map[string]interface{}, key string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}

func settingBool(settings map[string]interface{}, key string) bool {
	v, _ := settings[key].(bool)
	return v
}

func settingInt(settings map[string]interface{}, key string) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func settingStringSlice(settings map[string]interface{}, key string) []string {
	raw, ok := settings[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func settingStringMap(settings map[string]interface{}, key string) map[string]string {
	raw, ok := settings[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
