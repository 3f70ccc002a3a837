package openphone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		eventType string
		required  []string
	}{
		{"message.received", []string{"id", "from", "to", "body"}},
		{"message.sent", []string{"id", "from", "to"}},
		{"call.started", []string{"id", "from", "to", "direction"}},
		{"call.ended", []string{"id"}},
		{"contact.created", []string{"id", "name", "phone"}},
		{"contact.updated", []string{"id"}},
		{"unknown.type", []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			full := map[string]any{}
			for _, f := range tt.required {
				full[f] = "value"
			}
			assert.True(t, Validate(full, tt.eventType))
			assert.Equal(t, tt.required, defaultValidator.RequiredFields(tt.eventType))

			for _, drop := range tt.required {
				partial := map[string]any{}
				for _, f := range tt.required {
					if f != drop {
						partial[f] = "value"
					}
				}
				assert.False(t, Validate(partial, tt.eventType), "missing %s", drop)
				assert.Equal(t, []string{drop}, defaultValidator.Missing(partial, tt.eventType))
			}
		})
	}
}

func TestValidate_PresenceNotTruthiness(t *testing.T) {
	data := map[string]any{
		"id":   0,
		"from": nil,
		"to":   "",
		"body": false,
	}
	assert.True(t, Validate(data, "message.received"))
}

func TestValidate_ExtraFieldsAllowed(t *testing.T) {
	data := map[string]any{"id": "call_1", "duration": 42, "status": "completed"}
	assert.True(t, Validate(data, "call.ended"))
}

func TestValidate_NonObject(t *testing.T) {
	inputs := map[string]any{
		"nil":         nil,
		"nil map":     map[string]any(nil),
		"nil payload": Payload(nil),
		"string":      "id",
		"number":      42.0,
		"bool":        true,
		"array":       []any{map[string]any{"id": "x"}},
	}

	for name, data := range inputs {
		for _, eventType := range append(KnownEventTypes(), "unknown.type") {
			assert.False(t, Validate(data, string(eventType)), "%s / %s", name, eventType)
		}
	}
}

func TestValidate_Examples(t *testing.T) {
	assert.False(t, Validate(map[string]any{}, "message.received"))
	assert.True(t, Validate(map[string]any{"id": "x"}, "call.ended"))
	assert.True(t, Validate(Payload{"id": "x"}, "contact.updated"))
}

func TestMissing_NonObjectReportsAllFields(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "phone"}, defaultValidator.Missing(nil, "contact.created"))
	assert.Nil(t, defaultValidator.Missing(map[string]any{"id": "c"}, "contact.updated"))
}

func TestNewValidator_CustomRules(t *testing.T) {
	rules := Rules{CallEnded: {"duration"}}
	v := NewValidator(rules)

	// Later changes to the caller's map are not observed.
	rules[CallEnded] = append(rules[CallEnded], "status")
	rules[MessageReceived] = []string{"nope"}

	assert.Equal(t, []string{"id", "duration"}, v.RequiredFields("call.ended"))
	assert.Equal(t, []string{"id"}, v.RequiredFields("message.received"))
	assert.True(t, v.Validate(map[string]any{"id": "c", "duration": 3}, "call.ended"))
	assert.False(t, v.Validate(map[string]any{"id": "c"}, "call.ended"))
}

func TestRequiredFields_ReturnsCopy(t *testing.T) {
	fields := defaultValidator.RequiredFields("message.sent")
	fields[0] = "mutated"
	assert.Equal(t, []string{"id", "from", "to"}, defaultValidator.RequiredFields("message.sent"))
	assert.Equal(t, []string{"id"}, baseRequiredFields)
}

func TestEventType_IsKnown(t *testing.T) {
	for _, et := range KnownEventTypes() {
		assert.True(t, et.IsKnown(), et)
	}
	assert.False(t, EventType("message.deleted").IsKnown())
	assert.False(t, EventType("").IsKnown())
}
