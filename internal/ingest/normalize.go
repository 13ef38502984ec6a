package ingest

import (
	"encoding/json"
	"strings"
)

// Alias ladders for the heterogeneous provider payloads. Each list is
// tried in order against the inner data object first, then the root
// payload; the first non-empty hit wins.
var (
	textAliases       = []string{"body", "text"}
	externalIDAliases = []string{"id", "messageId", "message_id"}
	rootMediaAliases  = []string{"mediaUrl", "fileUrl", "url", "publicUrl"}
	mediaObjectKeys   = []string{"url", "link", "file", "publicUrl", "downloadUrl"}
	recipientAliases  = []string{"to", "recipient", "chatId", "remoteJid", "phone", "conversationId"}
)

// mediaTypes are the declared types for which a bare URL in the text field
// is treated as the attachment itself.
var mediaTypes = map[string]bool{
	"image":    true,
	"video":    true,
	"audio":    true,
	"document": true,
	"ptt":      true,
}

// Normalize flattens a provider payload into the canonical inbound event.
// The payload has no fixed schema: the real content may sit under a `data`
// field that is an object or a JSON-encoded string, and most fields have
// several aliases.
func Normalize(payload map[string]any) *InboundEvent {
	data := innerData(payload)

	evt := &InboundEvent{
		Platform:   firstString([]map[string]any{payload, data}, "platform"),
		EventType:  firstString([]map[string]any{data, payload}, "event"),
		ExternalID: firstString([]map[string]any{data, payload}, externalIDAliases...),
		Raw:        payload,
	}
	if evt.EventType == "" {
		evt.EventType = EventMessage
	}

	// Text resolution order: data.body, payload.body, data.text, payload.text.
	for _, key := range textAliases {
		if evt.Text = firstString([]map[string]any{data, payload}, key); evt.Text != "" {
			break
		}
	}

	declaredType := strings.ToLower(firstString([]map[string]any{data, payload}, "type"))
	if mediaTypes[declaredType] {
		evt.MediaType = declaredType
	}
	evt.MediaMIME = firstString([]map[string]any{data, payload}, "mimetype", "mimeType")
	evt.MediaFileName = firstString([]map[string]any{data, payload}, "fileName", "filename")

	resolveMedia(evt, data, payload)
	extractCandidates(evt, data, payload)
	evt.ContactName = contactName(data, payload)

	return evt
}

// resolveMedia walks the media URL ladder: provider file object, a
// string-typed media field, a media object, root-level aliases, and
// finally the text itself when it is a URL on a media-typed event.
func resolveMedia(evt *InboundEvent, data, payload map[string]any) {
	for _, m := range []map[string]any{data, payload} {
		if file := mapField(m, "file"); file != nil {
			if url := firstString([]map[string]any{file}, "downloadUrl", "url"); url != "" {
				evt.MediaURL = url
				if name := firstString([]map[string]any{file}, "fileName", "filename"); name != "" {
					evt.MediaFileName = name
				}
				if mime := firstString([]map[string]any{file}, "mimetype", "mimeType"); mime != "" {
					evt.MediaMIME = mime
				}
				return
			}
		}
	}

	for _, m := range []map[string]any{data, payload} {
		switch media := m["media"].(type) {
		case string:
			if strings.HasPrefix(media, "http") {
				evt.MediaURL = media
				return
			}
		case map[string]any:
			if url := firstString([]map[string]any{media}, mediaObjectKeys...); url != "" {
				evt.MediaURL = url
				return
			}
			if links := mapField(media, "links"); links != nil {
				if url := firstString([]map[string]any{links}, "download"); url != "" {
					evt.MediaURL = url
					return
				}
			}
		}
	}

	if url := firstString([]map[string]any{data, payload}, rootMediaAliases...); url != "" {
		evt.MediaURL = url
		return
	}

	// A media-typed event whose text is itself a URL carries the
	// attachment in the text field.
	if evt.MediaType != "" && strings.HasPrefix(evt.Text, "http") {
		evt.MediaURL = evt.Text
		evt.Text = ""
	}
}

// extractCandidates builds the ordered phone candidate list. Automated
// team-side events match leads by the recipient identifiers; everything
// except ai_response additionally contributes the sender.
func extractCandidates(evt *InboundEvent, data, payload map[string]any) {
	seen := map[string]bool{}
	add := func(value, role string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		evt.Candidates = append(evt.Candidates, PhoneCandidate{Value: value, Role: role})
	}

	if evt.EventType == EventAIResponse || evt.EventType == EventMessageCreate {
		for _, key := range recipientAliases {
			add(firstString([]map[string]any{data, payload}, key), SenderTeam)
		}
	}
	if evt.EventType != EventAIResponse {
		add(firstString([]map[string]any{data, payload}, "from"), SenderLead)
	}
}

// VerificationIdentifiers collects every sender and recipient identifier
// present in the payload. The signature-fallback phone check matches
// these against the configured production number, so recipients count
// even on plain message events where lead matching only uses the sender.
func VerificationIdentifiers(payload map[string]any) []string {
	data := innerData(payload)
	seen := map[string]bool{}
	var ids []string
	for _, key := range append([]string{"from"}, recipientAliases...) {
		for _, m := range []map[string]any{data, payload} {
			v, ok := m[key].(string)
			if !ok {
				continue
			}
			if v = strings.TrimSpace(v); v != "" && !seen[v] {
				seen[v] = true
				ids = append(ids, v)
			}
		}
	}
	return ids
}

func contactName(data, payload map[string]any) string {
	for _, m := range []map[string]any{data, payload} {
		if contact := mapField(m, "contact"); contact != nil {
			if name := firstString([]map[string]any{contact}, "name"); name != "" {
				return name
			}
		}
	}
	return firstString([]map[string]any{data, payload}, "fromUsername")
}

// innerData returns the payload's `data` field as a map, parsing it when
// it arrives JSON-encoded. Parse failures yield an empty map.
func innerData(payload map[string]any) map[string]any {
	switch data := payload["data"].(type) {
	case map[string]any:
		return data
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(data), &parsed); err == nil {
			return parsed
		}
	}
	return map[string]any{}
}

func firstString(maps []map[string]any, keys ...string) string {
	for _, key := range keys {
		for _, m := range maps {
			if m == nil {
				continue
			}
			if v, ok := m[key].(string); ok {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}
