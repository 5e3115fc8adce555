package trace

import "strings"

// Mask replaces secret values in redacted snapshots.
const Mask = "••••••••"

var secretFragments = []string{"key", "token", "auth"}

// Redact returns a copy of the snapshot with every value whose key contains
// "key", "token" or "auth" (case-insensitive) replaced by Mask. Nested maps
// are walked; the input is never modified.
func Redact(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		if secretKey(k) {
			out[k] = Mask
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func secretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range secretFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
