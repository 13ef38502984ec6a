package ingest

import (
	"fmt"
	"strings"
)

// Platform tags for inbound events and message channels.
const (
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
)

// Event types seen on the wire. Anything else is treated like a plain
// inbound message.
const (
	EventMessage       = "message"
	EventAIResponse    = "ai_response"
	EventMessageCreate = "message_create"
)

// Sender roles for persisted messages.
const (
	SenderLead = "lead"
	SenderTeam = "team"
)

// PhoneCandidate is one phone-like identifier extracted from a payload,
// tagged with the sender role a match on it implies.
type PhoneCandidate struct {
	Value string
	Role  string
}

// InboundEvent is the canonical record one webhook delivery normalizes to.
// It lives only for the duration of the request.
type InboundEvent struct {
	Platform   string
	EventType  string
	Text       string
	ExternalID string

	MediaURL      string
	MediaFileName string
	MediaMIME     string
	MediaType     string

	ContactName string
	Candidates  []PhoneCandidate

	Raw map[string]any
}

// IsAIResponse reports whether the event is an automated team-side reply.
func (e *InboundEvent) IsAIResponse() bool {
	return e.EventType == EventAIResponse
}

// LeadCandidate returns the first lead-tagged candidate, falling back to
// any candidate at all.
func (e *InboundEvent) LeadCandidate() (PhoneCandidate, bool) {
	for _, c := range e.Candidates {
		if c.Role == SenderLead {
			return c, true
		}
	}
	if len(e.Candidates) > 0 {
		return e.Candidates[0], true
	}
	return PhoneCandidate{}, false
}

// NormalizePhone strips provider suffixes (@c.us, @s.whatsapp.net), a
// leading +, whitespace, and formatting separators. Matching against stored phones is
// substring-based on the result, so formatting differences like country
// codes still resolve to the same lead.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimSuffix(phone, "@c.us")
	phone = strings.TrimSuffix(phone, "@s.whatsapp.net")
	phone = strings.TrimPrefix(phone, "+")
	for _, sep := range []string{" ", "-", "(", ")", "."} {
		phone = strings.ReplaceAll(phone, sep, "")
	}
	return strings.TrimSpace(phone)
}

// InferChannel classifies an identifier: Instagram scoped IDs are long
// numeric strings, real phone numbers are not.
func InferChannel(normalizedPhone string) string {
	if len(normalizedPhone) > 15 {
		return PlatformInstagram
	}
	return PlatformWhatsApp
}

// SourceLabel names the platform for placeholder lead names.
func SourceLabel(normalizedPhone string) string {
	if len(normalizedPhone) >= 15 {
		return "Instagram"
	}
	return "WhatsApp"
}

// PlaceholderName synthesizes the auto-generated display name used until a
// real contact name is discovered.
func PlaceholderName(normalizedPhone string) string {
	return fmt.Sprintf("Nuevo Lead %s %s", SourceLabel(normalizedPhone), normalizedPhone)
}

// IsPlaceholderName reports whether a display name still looks
// auto-generated and is therefore safe to backfill.
func IsPlaceholderName(name string) bool {
	return name == "" || strings.HasPrefix(name, "Nuevo Lead ")
}

// AssembleContent builds the persisted message body from the normalized
// text and the effective media URL (relocated when relocation succeeded,
// the original otherwise). Media-typed events without any URL still yield
// non-empty content.
func AssembleContent(text, mediaURL, mediaType string) string {
	switch {
	case mediaURL != "" && text != "":
		return text + " \n" + mediaURL
	case mediaURL != "":
		return mediaURL
	case text != "":
		return text
	case mediaType != "":
		return fmt.Sprintf("[%s recibido - sin URL pública]", mediaType)
	default:
		return ""
	}
}
