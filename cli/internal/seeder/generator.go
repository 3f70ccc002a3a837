package seeder

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// EventTypes are the OpenPhone event types the generator can produce.
var EventTypes = []string{
	"message.received",
	"message.sent",
	"call.started",
	"call.ended",
	"contact.created",
	"contact.updated",
}

const timeLayout = "2006-01-02T15:04:05.000Z"

// Generator builds realistic OpenPhone event objects.
type Generator struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator returns a Generator. A zero seed picks a random one.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), now: time.Now}
}

// Object returns a data.object for eventType. Unknown types get only an id.
func (g *Generator) Object(eventType string) map[string]any {
	now := g.now().UTC()

	switch eventType {
	case "message.received", "message.sent":
		direction, status := "incoming", "received"
		if eventType == "message.sent" {
			direction = "outgoing"
			status = g.faker.RandomString([]string{"queued", "sent", "delivered"})
		}
		return map[string]any{
			"id":             g.id("AC"),
			"object":         "message",
			"from":           g.phone(),
			"to":             []any{g.phone()},
			"body":           g.faker.Sentence(g.faker.Number(3, 20)),
			"direction":      direction,
			"status":         status,
			"media":          []any{},
			"userId":         g.id("US"),
			"phoneNumberId":  g.id("PN"),
			"conversationId": g.id("CN"),
			"createdAt":      stamp(now),
		}

	case "call.started":
		return map[string]any{
			"id":             g.id("AC"),
			"object":         "call",
			"from":           g.phone(),
			"to":             g.phone(),
			"direction":      g.faker.RandomString([]string{"incoming", "outgoing"}),
			"status":         "ringing",
			"userId":         g.id("US"),
			"phoneNumberId":  g.id("PN"),
			"conversationId": g.id("CN"),
			"createdAt":      stamp(now),
		}

	case "call.ended":
		duration := g.faker.Number(5, 900)
		started := now.Add(-time.Duration(duration) * time.Second)
		return map[string]any{
			"id":          g.id("AC"),
			"object":      "call",
			"from":        g.phone(),
			"to":          g.phone(),
			"direction":   g.faker.RandomString([]string{"incoming", "outgoing"}),
			"status":      g.faker.RandomString([]string{"completed", "no-answer", "busy"}),
			"duration":    duration,
			"media":       []any{},
			"voicemail":   nil,
			"createdAt":   stamp(started.Add(-5 * time.Second)),
			"answeredAt":  stamp(started),
			"completedAt": stamp(now),
		}

	case "contact.created":
		return map[string]any{
			"id":        g.id("CT"),
			"object":    "contact",
			"name":      g.faker.Name(),
			"phone":     g.phone(),
			"email":     g.faker.Email(),
			"company":   g.faker.Company(),
			"createdAt": stamp(now),
		}

	case "contact.updated":
		changes := map[string]any{}
		for _, field := range []string{"name", "email", "company", "role"} {
			if g.faker.Bool() {
				changes[field] = map[string]any{"old": g.faker.Word(), "new": g.faker.Word()}
			}
		}
		if len(changes) == 0 {
			changes["email"] = map[string]any{"old": g.faker.Email(), "new": g.faker.Email()}
		}
		return map[string]any{
			"id":        g.id("CT"),
			"object":    "contact",
			"changes":   changes,
			"updatedAt": stamp(now),
		}
	}

	return map[string]any{"id": g.id("EV"), "createdAt": stamp(now)}
}

// Pick returns one of types at random.
func (g *Generator) Pick(types []string) string {
	return g.faker.RandomString(types)
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	return p > 0 && g.faker.Float64Range(0, 1) < p
}

func (g *Generator) id(prefix string) string {
	return prefix + strings.ReplaceAll(g.faker.UUID(), "-", "")[:30]
}

func (g *Generator) phone() string {
	return fmt.Sprintf("+1%s", g.faker.Phone())
}

func stamp(t time.Time) string {
	return t.Format(timeLayout)
}
