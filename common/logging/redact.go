package logging

import "strings"

// RedactedValue replaces the value of every redacted key.
const RedactedValue = "[REDACTED]"

// DefaultMaskFields are the key fragments redacted when none are configured.
var DefaultMaskFields = []string{"password", "token", "secret", "key"}

// Redactor removes sensitive values from decoded JSON before it is logged.
// A key is sensitive when it contains one of the configured fragments,
// compared case-insensitively. Keys registered with MaskValues keep their
// shape but every string below them goes through the mask function.
type Redactor struct {
	fragments []string
	masked    map[string]struct{}
	mask      func(string) string
}

// NewRedactor returns a Redactor for fields. Nil selects DefaultMaskFields.
func NewRedactor(fields []string) *Redactor {
	if fields == nil {
		fields = DefaultMaskFields
	}
	fragments := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fragments = append(fragments, f)
		}
	}
	return &Redactor{fragments: fragments}
}

// MaskValues returns a copy of r that also masks the values stored under
// keys (exact, case-insensitive match) with mask.
func (r *Redactor) MaskValues(keys []string, mask func(string) string) *Redactor {
	out := &Redactor{fragments: r.fragments, masked: make(map[string]struct{}, len(keys)), mask: mask}
	for k := range r.masked {
		out.masked[k] = struct{}{}
	}
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out.masked[k] = struct{}{}
		}
	}
	return out
}

// Redact returns a copy of v with sensitive keys replaced at any depth.
// v itself is never modified.
func (r *Redactor) Redact(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			switch {
			case r.sensitive(k):
				out[k] = RedactedValue
			case r.maskedKey(k):
				out[k] = r.maskAll(val)
			default:
				out[k] = r.Redact(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = r.Redact(typed[i])
		}
		return out
	default:
		return v
	}
}

// maskAll masks every non-empty string in v. OpenPhone sends "to" as a list.
func (r *Redactor) maskAll(v any) any {
	switch typed := v.(type) {
	case string:
		if typed == "" {
			return typed
		}
		return r.mask(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = r.maskAll(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = r.maskAll(typed[i])
		}
		return out
	default:
		return v
	}
}

func (r *Redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, f := range r.fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func (r *Redactor) maskedKey(key string) bool {
	if r.mask == nil {
		return false
	}
	_, ok := r.masked[strings.ToLower(key)]
	return ok
}

// RedactPayload redacts payload with DefaultMaskFields.
func RedactPayload(payload any) any {
	return NewRedactor(nil).Redact(payload)
}
