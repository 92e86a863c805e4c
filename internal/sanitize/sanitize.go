// Package sanitize implements the input-hardening contract every
// untrusted string and object must pass through before it reaches a
// Tool or a log line: endpoint validation, recursive string/object
// sanitation, and secret redaction for logs.
//
// The rules here are behavioral contracts, not style choices — the
// exact substrings stripped and the exact truncation length are part
// of the system's test scenarios, not implementation detail.
package sanitize

import (
	"regexp"
	"strings"
)

const maxStringLen = 10000
const maxEndpointLen = 1000

var (
	scriptTagRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	javascriptURIRe = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	endpointBodyRe = regexp.MustCompile(`^/[A-Za-z0-9_\-/]*$`)

	// sqlKeywords are removed as whole-word matches, case-insensitive.
	sqlKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "EXEC", "UNION"}
	sqlKeywordRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(sqlKeywords, "|") + `)\b`)

	// protoPollutionKeys are dropped when they appear as object keys.
	protoPollutionKeys = map[string]struct{}{
		"__proto__":   {},
		"constructor": {},
		"prototype":   {},
	}

	// secretKeyMarkers trigger log redaction when contained (case-insensitively)
	// in a parameter's key name.
	secretKeyMarkers = []string{"password", "token", "secret", "key", "auth", "credential"}
)

const redactedPlaceholder = "[REDACTED]"

// controlCharsToDrop enumerates the exact control-character set spec.md §4.5
// calls out: null bytes plus the ASCII control range minus \t\n\r, which are
// left alone because they're legitimate in free text.
func isDroppedControlChar(r rune) bool {
	switch r {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x0B, 0x0C,
		0x0E, 0x0F, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19,
		0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F,
		0x7F:
		return true
	}
	return false
}

// String applies the four-step string sanitation contract:
// drop control chars, strip script/js/event-handler constructs, remove
// SQL keywords as whole words, then truncate to 10,000 characters.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isDroppedControlChar(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()

	out = scriptTagRe.ReplaceAllString(out, "")
	out = javascriptURIRe.ReplaceAllString(out, "")
	out = eventHandlerRe.ReplaceAllString(out, "")
	out = sqlKeywordRe.ReplaceAllString(out, "")

	if len(out) > maxStringLen {
		if runes := []rune(out); len(runes) > maxStringLen {
			out = string(runes[:maxStringLen])
		}
	}
	return out
}

// Object recursively sanitizes a decoded JSON-like value (maps, slices,
// scalars). Map keys in the prototype-pollution set are dropped; keys
// are themselves string-sanitized, and an empty sanitized key drops the
// pair. A string value that becomes empty after sanitation is reported
// as nil so callers can choose to reject an empty key.
func Object(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			if _, banned := protoPollutionKeys[strings.ToLower(k)]; banned {
				continue
			}
			cleanKey := String(k)
			if cleanKey == "" {
				continue
			}
			cleanKey = stripNonIdentifierPunct(cleanKey)
			if cleanKey == "" {
				continue
			}
			out[cleanKey] = sanitizeValue(sub)
		}
		return out
	default:
		return sanitizeValue(val)
	}
}

// sanitizeValue dispatches on concrete value kind for array/scalar members.
func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		cleaned := String(val)
		if cleaned == "" {
			return nil
		}
		return cleaned
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				trimmed := strings.TrimSpace(s)
				cleaned := String(trimmed)
				if cleaned == "" {
					continue
				}
				out = append(out, cleaned)
				continue
			}
			out = append(out, sanitizeValue(item))
		}
		return out
	case map[string]any:
		return Object(val)
	default:
		return val
	}
}

// stripNonIdentifierPunct removes characters that would make a map key
// an awkward/unsafe parameter name (e.g. "key!@#$%" -> "key"), mirroring
// the literal scenario in spec.md §8.2.
var nonIdentifierRe = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

func stripNonIdentifierPunct(k string) string {
	return nonIdentifierRe.ReplaceAllString(k, "")
}

// ValidEndpoint applies the §4.5 endpoint-validation rules. It does not
// check the `/[A-Za-z0-9_\-/]*$` shape — use StrictEndpointShape for
// that, since the spec calls it out as a separate, reusable predicate.
func ValidEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if !strings.HasPrefix(endpoint, "/") {
		return false
	}
	if len(endpoint) > maxEndpointLen {
		return false
	}
	if strings.Contains(endpoint, "..") || strings.Contains(endpoint, "//") {
		return false
	}
	lower := strings.ToLower(endpoint)
	if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") {
		return false
	}
	for _, r := range endpoint {
		if r <= 0x1f {
			return false
		}
	}
	return true
}

// StrictEndpointShape enforces the registration-time body pattern
// ^/[A-Za-z0-9_\-/]*$, usable at route time too.
func StrictEndpointShape(endpoint string) bool {
	return endpointBodyRe.MatchString(endpoint)
}

// Endpoint is the full endpoint-validation contract used at both
// registration and route time: the §4.5 rule set plus the stricter
// character-shape predicate.
func Endpoint(endpoint string) bool {
	return ValidEndpoint(endpoint) && StrictEndpointShape(endpoint)
}

// RedactForLog returns a shallow copy of params with any value whose key
// (case-insensitively) contains a secret marker replaced by the literal
// "[REDACTED]". The original map is never mutated — Tool.execute always
// receives the real values; redaction is for logs only.
//
// Key-name redaction is mandatory and runs first. String values that
// survive it are then passed through the default SecretScanner
// (SPEC_FULL.md §6), catching a secret that leaked through a param
// whose key name doesn't mention password/token/secret/key/auth/
// credential.
func RedactForLog(params map[string]any) map[string]any {
	scanner := defaultSecretScanner()
	out := make(map[string]any, len(params))
	for k, v := range params {
		if looksSecret(k) {
			out[k] = redactedPlaceholder
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = scanner.Scan(s)
			continue
		}
		out[k] = v
	}
	return out
}

func looksSecret(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
