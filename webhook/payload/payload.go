package payload

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Unknown is the event type recorded when nothing in the request names one
const Unknown = "unknown"

// eventTypePattern accepts provider event names such as "orders/create", "deal.propertyChange" or "pull_request"
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+([./:][a-zA-Z0-9_\-]+)*$`)

// typeHeaders are consulted in order before the body
var typeHeaders = []string{"X-Shopify-Topic", "X-GitHub-Event", "X-WC-Webhook-Topic", "X-Event-Type"}

// typeFields are top-level body fields consulted in order
var typeFields = []string{"type", "event_type", "event", "topic", "subscriptionType"}

/* EventType extracts the event type of an inbound webhook
 * Headers win over the body; a JSON array body (HubSpot batches) is read from its first element
 */
func EventType(headers http.Header, body []byte) string {
	for _, h := range typeHeaders {
		if v := strings.TrimSpace(headers.Get(h)); v != "" {
			return v
		}
	}

	doc := firstObject(body)
	for _, f := range typeFields {
		raw, ok := doc[f]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	return Unknown
}

func firstObject(body []byte) map[string]json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err == nil {
		return doc
	}
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return nil
}

// Records counts the records carried by a payload: array length, or 1 for an object
func Records(body []byte) int {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return len(list)
	}
	return 1
}

// Matches checks if eventType matches any of the patterns
// Supports "*", exact matching and prefix matching (e.g., "orders/*" or "deal.*")
func Matches(eventType string, patterns []string) bool {
	if len(patterns) == 0 {
		// No filter means accept all
		return true
	}

	for _, p := range patterns {
		if p == "*" || p == eventType {
			return true
		}

		if len(p) > 2 && p[len(p)-1] == '*' {
			sep := p[len(p)-2]
			if sep != '.' && sep != '/' {
				continue
			}
			prefix := p[:len(p)-1]
			if len(eventType) > len(prefix) && strings.HasPrefix(eventType, prefix) {
				return true
			}
		}
	}

	return false
}

// ValidateEventType validates an event type or subscription pattern
func ValidateEventType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if eventType == "*" {
		return nil
	}

	// Allow wildcard suffix for filtering
	if strings.HasSuffix(eventType, ".*") || strings.HasSuffix(eventType, "/*") {
		eventType = eventType[:len(eventType)-2]
	}

	if !eventTypePattern.MatchString(eventType) {
		return fmt.Errorf("invalid event type: %s", eventType)
	}

	return nil
}
