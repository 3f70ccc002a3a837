package openphone

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedInput is returned by a handler whose payload is structurally
// unusable even though it passed validation.
var ErrMalformedInput = errors.New("malformed event data")

// ValidationError reports an event whose data lacks required fields or is not
// a JSON object.
type ValidationError struct {
	EventType string
	Missing   []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid event data for %s", e.EventType)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	return msg
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
