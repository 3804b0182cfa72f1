package vault

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func settingString(settings map[string]interface{}, key string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}

// splitKey separates the vault path from an optional field selector.
func splitKey(key string) (path, field string) {
	if i := strings.Index(key, "#"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// unwrapKVv2 unwraps a KV v2 read, which nests the payload under "data"
// next to a "metadata" object. KV v1 payloads pass through unchanged.
func unwrapKVv2(data map[string]interface{}) map[string]interface{} {
	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		return data
	}
	if _, ok := data["metadata"]; !ok {
		return data
	}
	return inner
}

// fieldValue selects a field from the secret payload, or serializes the
// whole payload as JSON when no field is given.
func fieldValue(data map[string]interface{}, field string) (string, error) {
	if field == "" {
		out, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("field %q not present", field)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}
