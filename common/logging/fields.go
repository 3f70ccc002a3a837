package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldUserAgent = "user_agent"
	FieldBodySize  = "body_size"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for a webhook event ID. Provider ids are
// opaque JSON values, so any type is accepted.
func EventID(id any) slog.Attr {
	return slog.Any(FieldEventID, id)
}

// EventType returns a slog attribute for a webhook event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// UserAgent returns a slog attribute for the client user agent.
func UserAgent(ua string) slog.Attr {
	return slog.String(FieldUserAgent, ua)
}

// BodySize returns a slog attribute for a request body size in bytes.
func BodySize(n int) slog.Attr {
	return slog.Int(FieldBodySize, n)
}
