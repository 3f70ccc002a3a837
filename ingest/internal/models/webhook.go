package models

import (
	"strings"

	"github.com/workwhile/automation/ingest/internal/openphone"
)

// Envelope is the body OpenPhone posts to a webhook endpoint. ID is passed
// through as sent.
type Envelope struct {
	ID         any          `json:"id"`
	Object     string       `json:"object"`
	APIVersion string       `json:"apiVersion"`
	CreatedAt  string       `json:"createdAt"`
	Type       string       `json:"type"`
	Data       EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Object any `json:"object"`
}

// Payload returns the data object when it is a JSON object.
func (d EnvelopeData) Payload() (openphone.Payload, bool) {
	obj, ok := d.Object.(map[string]any)
	return openphone.Payload(obj), ok
}

// Complete reports whether the envelope names an event type and carries a
// non-empty data object value.
func (e *Envelope) Complete() bool {
	return e.Type != "" && truthy(e.Data.Object)
}

// IsCall reports whether the event is one of the call.* types.
func (e *Envelope) IsCall() bool {
	return strings.HasPrefix(e.Type, "call.")
}

// CallData is the call summary echoed back for call.* events.
type CallData struct {
	CallID         any `json:"callId"`
	From           any `json:"from"`
	To             any `json:"to"`
	Direction      any `json:"direction"`
	Status         any `json:"status"`
	CreatedAt      any `json:"createdAt"`
	AnsweredAt     any `json:"answeredAt"`
	CompletedAt    any `json:"completedAt"`
	UserID         any `json:"userId"`
	PhoneNumberID  any `json:"phoneNumberId"`
	ConversationID any `json:"conversationId"`
	Voicemail      any `json:"voicemail"`
	Media          any `json:"media"`
}

// ExtractCallData copies the call fields out of a call object. Missing
// voicemail is null and missing media is an empty list.
func ExtractCallData(call openphone.Payload) *CallData {
	cd := &CallData{
		CallID:         call["id"],
		From:           call["from"],
		To:             call["to"],
		Direction:      call["direction"],
		Status:         call["status"],
		CreatedAt:      call["createdAt"],
		AnsweredAt:     call["answeredAt"],
		CompletedAt:    call["completedAt"],
		UserID:         call["userId"],
		PhoneNumberID:  call["phoneNumberId"],
		ConversationID: call["conversationId"],
		Voicemail:      call["voicemail"],
		Media:          call["media"],
	}
	if !truthy(cd.Voicemail) {
		cd.Voicemail = nil
	}
	if !truthy(cd.Media) {
		cd.Media = []any{}
	}
	return cd
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}

// WebhookResponse is returned for every event the dispatcher accepted.
type WebhookResponse struct {
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	EventID        any              `json:"eventId,omitempty"`
	EventType      string           `json:"eventType"`
	EventCreatedAt string           `json:"eventCreatedAt,omitempty"`
	CallData       *CallData        `json:"callData"`
	Result         openphone.Result `json:"result"`
	ProcessedAt    string           `json:"processedAt"`
}

// MissingFieldsResponse is returned when the envelope lacks a type or data object.
type MissingFieldsResponse struct {
	Error    string `json:"error"`
	Received any    `json:"received"`
}
