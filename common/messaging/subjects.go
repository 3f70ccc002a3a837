package messaging

import "strings"

// Subjects follow the pattern {source}.{kind}.{event type}.
const (
	// SubjectOpenPhoneEvents prefixes every accepted OpenPhone event.
	SubjectOpenPhoneEvents = "openphone.events"

	// SubjectOpenPhoneEventsAll matches every OpenPhone event subject.
	SubjectOpenPhoneEventsAll = SubjectOpenPhoneEvents + ".>"
)

// Metadata header keys set on published events.
const (
	HeaderEventType = "Event-Type"
	HeaderEventID   = "Event-Id"
	HeaderRequestID = "Request-Id"
)

// EventSubject returns the subject an event of eventType is published on.
// Example: openphone.events.message.received
func EventSubject(eventType string) string {
	token := subjectToken(eventType)
	if token == "" {
		token = "unknown"
	}
	return SubjectOpenPhoneEvents + "." + token
}

// subjectToken strips characters NATS treats specially so a provider label
// cannot widen or break the subject.
func subjectToken(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
	return strings.Trim(s, ".")
}

const (
	// SubjectOpenPhoneDLQ prefixes events whose delivery failed.
	SubjectOpenPhoneDLQ = "openphone.dlq"

	// SubjectOpenPhoneDLQAll matches every dead-lettered event.
	SubjectOpenPhoneDLQAll = SubjectOpenPhoneDLQ + ".>"
)

// DeadLetterSubject returns the subject a failed event of eventType is
// dead-lettered on.
func DeadLetterSubject(eventType string) string {
	token := subjectToken(eventType)
	if token == "" {
		token = "unknown"
	}
	return SubjectOpenPhoneDLQ + "." + token
}
