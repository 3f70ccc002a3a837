package openphone

// baseRequiredFields are required on every event regardless of type.
var baseRequiredFields = []string{"id"}

// Rules maps an event type to the fields it requires on top of the base set.
// Event types without an entry only require the base set.
type Rules map[EventType][]string

// DefaultRules returns the required-field extensions for OpenPhone events.
func DefaultRules() Rules {
	return Rules{
		MessageReceived: {"from", "to", "body"},
		MessageSent:     {"from", "to"},
		CallStarted:     {"from", "to", "direction"},
		ContactCreated:  {"name", "phone"},
	}
}

// clone copies r so that later changes by the caller are not observed.
func (r Rules) clone() Rules {
	out := make(Rules, len(r))
	for t, fields := range r {
		out[t] = append([]string(nil), fields...)
	}
	return out
}

// Validator checks that event payloads carry the fields their type requires.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	rules Rules
}

// NewValidator returns a Validator bound to a copy of rules.
// A nil rules value selects DefaultRules.
func NewValidator(rules Rules) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Validator{rules: rules.clone()}
}

// RequiredFields returns the full required-field list for eventType.
func (v *Validator) RequiredFields(eventType string) []string {
	fields := append([]string(nil), baseRequiredFields...)
	return append(fields, v.rules[EventType(eventType)]...)
}

// Validate reports whether data is a JSON object holding every field required
// for eventType. Fields count as present whatever their value, null included.
func (v *Validator) Validate(data any, eventType string) bool {
	payload, ok := asPayload(data)
	if !ok {
		return false
	}
	return len(v.missing(payload, eventType)) == 0
}

// Missing lists the required fields absent from data. When data is not a JSON
// object every required field is reported.
func (v *Validator) Missing(data any, eventType string) []string {
	payload, ok := asPayload(data)
	if !ok {
		return v.RequiredFields(eventType)
	}
	return v.missing(payload, eventType)
}

func (v *Validator) missing(payload Payload, eventType string) []string {
	var missing []string
	for _, field := range v.RequiredFields(eventType) {
		if _, present := payload[field]; !present {
			missing = append(missing, field)
		}
	}
	return missing
}

var defaultValidator = NewValidator(nil)

// Validate checks data against DefaultRules.
func Validate(data any, eventType string) bool {
	return defaultValidator.Validate(data, eventType)
}
