package adapters

// GetString returns the first non-empty string value found under any of keys
func GetString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// GetMap returns the first nested object found under any of keys
func GetMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		if v, ok := m[key].(map[string]interface{}); ok {
			return v
		}
	}
	return nil
}

// GetValue returns the first non-nil value found under any of keys
func GetValue(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}
