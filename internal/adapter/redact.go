package adapter

import "regexp"

// Redacted replaces sensitive values in event payloads and error
// details.
const Redacted = "[REDACTED]"

// sensitiveKey matches argument keys whose values must never reach the
// event log.
var sensitiveKey = regexp.MustCompile(
	`(?i)(token|secret|password|passwd|api[_-]?key|auth|credential|cookie|private[_-]?key|session)`,
)

// sensitiveText patterns cover credentials embedded in free text
// (command output, error messages).
var sensitiveText = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/-]+=*`),
	regexp.MustCompile(`(?i)(api[_-]?key\s*[=:]\s*)['"]?[^\s'"]+['"]?`),
	regexp.MustCompile(`(?i)((?:password|passwd|token|secret)\s*[=:]\s*)['"]?[^\s'"]+['"]?`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9]{8,}\b`),
	regexp.MustCompile(`\bghp_[A-Za-z0-9]{20,}\b`),
}

// RedactArgs returns a deep copy of args with values under sensitive
// keys replaced. The input is never mutated.
func RedactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	return redactMap(args)
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKey.MatchString(k) {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return redactMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = redactValue(item)
		}
		return out
	case string:
		return RedactText(vv)
	default:
		return v
	}
}

// RedactText removes credential-shaped substrings from free text.
func RedactText(text string) string {
	out := text
	for _, re := range sensitiveText {
		out = re.ReplaceAllStringFunc(out, func(match string) string {
			groups := re.FindStringSubmatch(match)
			if len(groups) > 1 && groups[1] != "" {
				return groups[1] + Redacted
			}
			return Redacted
		})
	}
	return out
}
